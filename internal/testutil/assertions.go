package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/blockorder/internal/sqlitevolume"
	"github.com/stretchr/testify/require"
)

// ReadWriteLog opens the sqlite volume at path and returns its blocks in
// commit order.
func ReadWriteLog(t *testing.T, path string, blockSize int) []uint64 {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	v, err := sqlitevolume.Open(context.Background(), path, blockSize, logger)
	require.NoError(t, err)
	defer v.Close()

	log, err := v.WriteLog(context.Background())
	require.NoError(t, err)
	return log
}

// AssertWrittenBefore checks that block first was committed before block then.
func AssertWrittenBefore(t *testing.T, log []uint64, first, then uint64) {
	t.Helper()
	pos := func(n uint64) int {
		for i, b := range log {
			if b == n {
				return i
			}
		}
		return -1
	}
	i, j := pos(first), pos(then)
	require.NotEqual(t, -1, i, "block %d was never written", first)
	require.NotEqual(t, -1, j, "block %d was never written", then)
	require.Less(t, i, j, "block %d must be written before block %d, log %v", first, then, log)
}
