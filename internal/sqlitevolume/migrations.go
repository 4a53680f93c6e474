package sqlitevolume

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		num        INTEGER PRIMARY KEY,
		data       BLOB    NOT NULL,
		written_at TEXT    NOT NULL,
		seq        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_seq ON blocks(seq)`,
	`CREATE TABLE IF NOT EXISTS volume_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
