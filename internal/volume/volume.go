// Package volume defines the block device a write-back cache flushes to.
package volume

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBlockNotFound is returned when reading a block that was never written.
	ErrBlockNotFound = errors.New("block not found")
	// ErrBlockSize is returned when a buffer does not fit the volume's block size.
	ErrBlockSize = errors.New("invalid block size")
)

// Volume is a fixed block size store. Implementations are safe for
// concurrent use.
type Volume interface {
	BlockSize() int
	ReadBlock(ctx context.Context, n uint64) ([]byte, error)
	WriteBlock(ctx context.Context, n uint64, data []byte) error
	Close() error
}

// Pad returns data zero-filled to size. Data longer than size is rejected.
func Pad(data []byte, size int) ([]byte, error) {
	if len(data) > size {
		return nil, fmt.Errorf("%d bytes exceed block size %d: %w", len(data), size, ErrBlockSize)
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

// CheckSize verifies that data is exactly one block of v.
func CheckSize(v Volume, data []byte) error {
	if len(data) != v.BlockSize() {
		return fmt.Errorf("got %d bytes, block size is %d: %w", len(data), v.BlockSize(), ErrBlockSize)
	}
	return nil
}
