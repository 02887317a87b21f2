package core

import (
	"context"
	"database/sql"

	"github.com/printsmart/printd/internal/db"
)

type sqlFileStore struct {
	db *sql.DB
}

// NewFileStore returns a FileStore backed by the files table.
func NewFileStore(database *sql.DB) FileStore {
	return sqlFileStore{db: database}
}

func (s sqlFileStore) GetFile(ctx context.Context, id string) (*db.File, error) {
	return db.GetFile(ctx, s.db, id)
}
