package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/specialistvlad/blockorder/internal/depgraph"
	"github.com/specialistvlad/blockorder/internal/jobtable"
	"github.com/specialistvlad/blockorder/internal/walk"
)

// Config sizes a Scheduler and supplies its default behaviour.
type Config struct {
	// MaxJobCnt is the capacity of the job table.
	MaxJobCnt int
	// MaxOrderingLinkCnt is the capacity of the edge pool.
	MaxOrderingLinkCnt int
	// ExecFunc runs jobs that carry no callback of their own. Required.
	ExecFunc ExecFunc
	// Observer receives edge events. Defaults to NopObserver.
	Observer Observer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Validate checks the sizing and mandatory fields.
func (c Config) Validate() error {
	if c.MaxJobCnt <= 0 {
		return fmt.Errorf("MaxJobCnt must be positive, got %d", c.MaxJobCnt)
	}
	if c.MaxJobCnt > math.MaxInt32 {
		return fmt.Errorf("MaxJobCnt %d does not fit a job index", c.MaxJobCnt)
	}
	if c.MaxOrderingLinkCnt < 0 || c.MaxOrderingLinkCnt > math.MaxInt32 {
		return fmt.Errorf("MaxOrderingLinkCnt out of range, got %d", c.MaxOrderingLinkCnt)
	}
	if c.ExecFunc == nil {
		return errors.New("ExecFunc is a required configuration field")
	}
	return nil
}

// Footprint returns the bytes New allocates for cfg. Nothing is allocated
// after New returns.
func Footprint(cfg Config) uintptr {
	return unsafe.Sizeof(Scheduler{}) +
		jobtable.Footprint(cfg.MaxJobCnt) +
		depgraph.Footprint(cfg.MaxJobCnt, cfg.MaxOrderingLinkCnt) +
		walk.Footprint(cfg.MaxJobCnt) +
		listFootprint(cfg.MaxJobCnt)
}
