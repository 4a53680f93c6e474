// Package blockcache is a write-back block cache that defers writes to a
// volume and lets callers state which writes must reach the volume first.
//
// Every dirty block is one scheduler job. Rewriting a block that is still
// dirty coalesces into its pending job. Writes are flushed by Sync, which runs
// ready jobs until the scheduler is empty, or by Flush, which forces a single
// block out together with everything it was ordered after.
//
// A failed write leaves its block dirty. The entry gets a fresh job that the
// failed job's dependents are ordered after, so nothing written after the
// block reaches the volume before it. Handles of the failed job keep working
// as ordering targets.
//
// The scheduler is not synchronized; Cache holds one mutex for the duration
// of every scheduler call, including the write-back callbacks it triggers.
package blockcache
