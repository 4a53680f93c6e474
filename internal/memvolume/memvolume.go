// Package memvolume is an in-memory volume.Volume that records the order in
// which blocks reach it.
package memvolume

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/blockorder/internal/volume"
)

// Volume keeps blocks in a map.
type Volume struct {
	mu        sync.RWMutex
	blockSize int
	blocks    map[uint64][]byte
	writes    []uint64
	failures  map[uint64]error
}

// New creates an empty volume.
func New(blockSize int) *Volume {
	return &Volume{
		blockSize: blockSize,
		blocks:    make(map[uint64][]byte),
		failures:  make(map[uint64]error),
	}
}

func (v *Volume) BlockSize() int { return v.blockSize }

func (v *Volume) ReadBlock(ctx context.Context, n uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	b, ok := v.blocks[n]
	if !ok {
		return nil, fmt.Errorf("block %d: %w", n, volume.ErrBlockNotFound)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (v *Volume) WriteBlock(ctx context.Context, n uint64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := volume.CheckSize(v, data); err != nil {
		return fmt.Errorf("block %d: %w", n, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err, ok := v.failures[n]; ok {
		return fmt.Errorf("block %d: %w", n, err)
	}
	b := make([]byte, len(data))
	copy(b, data)
	v.blocks[n] = b
	v.writes = append(v.writes, n)
	return nil
}

func (v *Volume) Close() error { return nil }

// FailOn makes every later write of block n fail with err. A nil err clears
// the failure.
func (v *Volume) FailOn(n uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		delete(v.failures, n)
		return
	}
	v.failures[n] = err
}

// Writes returns the block numbers in the order they were written.
func (v *Volume) Writes() []uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]uint64, len(v.writes))
	copy(out, v.writes)
	return out
}

var _ volume.Volume = (*Volume)(nil)
