// Package sqlitevolume stores blocks in a SQLite database. Every write carries
// a commit sequence number so the order in which blocks became durable can be
// inspected afterwards.
package sqlitevolume

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/specialistvlad/blockorder/internal/volume"

	_ "modernc.org/sqlite"
)

// Volume implements volume.Volume using SQLite.
type Volume struct {
	db        *sql.DB
	blockSize int
	logger    *slog.Logger
}

// Open opens (or creates) a SQLite database at dbPath. Use ":memory:" for a
// throwaway volume. A database created with a different block size is
// rejected.
func Open(ctx context.Context, dbPath string, blockSize int, logger *slog.Logger) (*Volume, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	v := &Volume{
		db:        db,
		blockSize: blockSize,
		logger:    logger.With("component", "sqlitevolume"),
	}
	if err := v.checkBlockSize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return v, nil
}

func (v *Volume) checkBlockSize(ctx context.Context) error {
	var stored string
	err := v.db.QueryRowContext(ctx, `SELECT value FROM volume_meta WHERE key = 'block_size'`).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = v.db.ExecContext(ctx,
			`INSERT INTO volume_meta (key, value) VALUES ('block_size', ?)`, strconv.Itoa(v.blockSize))
		return err
	}
	if err != nil {
		return fmt.Errorf("read block size: %w", err)
	}
	if stored != strconv.Itoa(v.blockSize) {
		return fmt.Errorf("volume was created with block size %s, opened with %d: %w", stored, v.blockSize, volume.ErrBlockSize)
	}
	return nil
}

func (v *Volume) BlockSize() int { return v.blockSize }

func (v *Volume) ReadBlock(ctx context.Context, n uint64) ([]byte, error) {
	v.logger.Debug("sql", "op", "select", "table", "blocks", "num", n)

	var data []byte
	err := v.db.QueryRowContext(ctx, `SELECT data FROM blocks WHERE num = ?`, int64(n)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("block %d: %w", n, volume.ErrBlockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read block %d: %w", n, err)
	}
	return data, nil
}

func (v *Volume) WriteBlock(ctx context.Context, n uint64, data []byte) error {
	if err := volume.CheckSize(v, data); err != nil {
		return fmt.Errorf("block %d: %w", n, err)
	}
	v.logger.Debug("sql", "op", "upsert", "table", "blocks", "num", n)

	_, err := v.db.ExecContext(ctx,
		`INSERT INTO blocks (num, data, written_at, seq)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM blocks))
		 ON CONFLICT(num) DO UPDATE SET
		   data = excluded.data,
		   written_at = excluded.written_at,
		   seq = excluded.seq`,
		int64(n), data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write block %d: %w", n, err)
	}
	return nil
}

// WriteLog returns every stored block number ordered by its last commit.
func (v *Volume) WriteLog(ctx context.Context) ([]uint64, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT num FROM blocks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query write log: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, uint64(n))
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (v *Volume) Close() error {
	return v.db.Close()
}

var _ volume.Volume = (*Volume)(nil)
