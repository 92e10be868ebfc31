package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"liquidityRouter/internal/model"
)

func TestJsonlRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "ops.jsonl")
	rec := NewJsonlRecorder(path)

	first := model.OperationRecord{Kind: "open", Pool: "0xabc", Status: "success"}
	second := model.OperationRecord{Kind: "close", Pool: "0xdef", Status: "partial", AmountOut: "123"}

	if err := rec.Record(context.Background(), []model.OperationRecord{first}); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := rec.Record(context.Background(), []model.OperationRecord{second}); err != nil {
		t.Fatalf("second record: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var got []model.OperationRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r model.OperationRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		got = append(got, r)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("journal lines = %d, want 2", len(got))
	}
	if got[0].Kind != "open" || got[1].Kind != "close" {
		t.Fatalf("kinds = %s, %s; want open, close", got[0].Kind, got[1].Kind)
	}
	if got[1].AmountOut != "123" {
		t.Fatalf("amount_out = %q, want 123", got[1].AmountOut)
	}
}

func TestJsonlRecorderEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	rec := NewJsonlRecorder(path)

	if err := rec.Record(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("empty batch must not create the journal file")
	}
}
