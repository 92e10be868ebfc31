// Package postgres provides Postgres persistence for operation records.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityRouter/internal/model"
)

// Store writes operation records to an operations table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Record inserts a batch of operation records.
func (s *Store) Record(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO operations (
				kind, pool_address, position_id, token0, token1,
				tick_lower, tick_upper, funding, amount0, amount1,
				amount_out, liquidity, slippage_bps, status, completed_at, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
		`,
			r.Kind,
			r.Pool,
			r.PositionID,
			r.Token0,
			r.Token1,
			r.TickLower,
			r.TickUpper,
			r.Funding,
			r.Amount0,
			r.Amount1,
			r.AmountOut,
			r.Liquidity,
			int64(r.SlippageBps),
			r.Status,
			r.CompletedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
