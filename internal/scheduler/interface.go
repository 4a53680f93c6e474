package scheduler

import (
	"github.com/specialistvlad/blockorder/internal/errors"
	"github.com/specialistvlad/blockorder/internal/jobid"
)

// Handle re-exports the job handle type for callers.
type Handle = jobid.Handle

// Void is the handle meaning "no predecessor".
var Void = jobid.Void

// Status errors returned by the scheduler.
var (
	ErrCapacityExceeded = errors.ErrCapacityExceeded
	ErrInvalidHandle    = errors.ErrInvalidHandle
	ErrCycleDetected    = errors.ErrCycleDetected
	ErrNotReady         = errors.ErrNotReady
)

// ExecFunc runs one job. data and dbgData are the payloads the job was added
// with and arg is the argument bound to the job or passed to Exec. An error is
// reported back to the Exec caller; the job is released either way.
type ExecFunc func(data, dbgData, arg any) error

// Observer is told about every ordering edge created or removed. It must not
// call back into the scheduler and has no influence on scheduling decisions.
type Observer interface {
	// OnOrderAdd is called after the edge prev -> next is created.
	OnOrderAdd(prev, next Handle)
	// OnOrderRem is called after the edge prev -> next is removed, while both
	// handles are still valid.
	OnOrderRem(prev, next Handle)
}
