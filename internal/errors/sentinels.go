package errors

import stderrors "errors"

// Status errors shared by the job table, the dependency graph and the
// scheduler. Callers match them with errors.Is.
var (
	// ErrCapacityExceeded means the job table or the edge pool is exhausted.
	// It is recoverable: drain some jobs and retry.
	ErrCapacityExceeded = stderrors.New("capacity exceeded")
	// ErrInvalidHandle means a stale or out of range handle was used. It is
	// always a caller bug.
	ErrInvalidHandle = stderrors.New("invalid job handle")
	// ErrCycleDetected means the requested ordering would close a cycle.
	ErrCycleDetected = stderrors.New("ordering would create a cycle")
	// ErrNotReady means a job still has predecessors that have not executed.
	ErrNotReady = stderrors.New("job has unresolved predecessors")
)
