package sink

import "context"

// RowStore is satisfied by database.RowRepository.
type RowStore interface {
	Append(ctx context.Context, destination string, rows [][]string) error
}

// Database forwards rows to a relational row store.
type Database struct {
	store RowStore
}

func NewDatabase(store RowStore) *Database {
	return &Database{store: store}
}

func (d *Database) Write(ctx context.Context, destination string, rows [][]string) error {
	return d.store.Append(ctx, destination, rows)
}
