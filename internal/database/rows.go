package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RowRepository appends tabular rows to the sink_rows table.
type RowRepository struct {
	db *DB
}

func NewRowRepository(db *DB) *RowRepository {
	return &RowRepository{db: db}
}

// Append inserts all rows of one batch in a single transaction.
func (r *RowRepository) Append(ctx context.Context, destination string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(
				`INSERT INTO sink_rows (id, destination, cells, created_at) VALUES ($1, $2, $3, $4)`,
				uuid.New(), destination, row, now,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert %s row: %w", destination, err)
			}
		}
		return results.Close()
	})
}
