// Package journal persists completed operation records.
package journal

import (
	"context"

	"liquidityRouter/internal/model"
)

// Recorder defines a sink for operation records.
type Recorder interface {
	Record(ctx context.Context, records []model.OperationRecord) error
}

// Nop discards all records.
type Nop struct{}

func (Nop) Record(ctx context.Context, records []model.OperationRecord) error {
	return nil
}
