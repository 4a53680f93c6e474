// Package scheduler enforces a partial execution order over deferred
// write-back jobs.
//
// # Why Scheduler Exists
//
// A write-back cache may coalesce, batch or reorder writes for throughput, yet
// some writes are causally dependent: a metadata block must reach durable
// storage only after the data block it references. The scheduler records those
// dependencies as ordering edges and reports which jobs may run, without ever
// performing I/O itself.
//
// # How It Works
//
// The Scheduler composes three parts, all sized once by New:
//   - **Job table** (internal/jobtable): slots with generation-checked handles.
//   - **Dependency graph** (internal/depgraph): predecessor and successor lists
//     built from a bounded pool of edge adapters.
//   - **Walk engine** (internal/walk): depth-first traversal used to reject
//     orderings that would close a cycle and to find the jobs a forced flush
//     has to run first.
//
// On top of them it keeps the ordering list: every live job, with the jobs
// that have no pending predecessor gathered in a ready prefix.
//
//	Add(prev) ──► job table ──► Order(prev, new) ──► walk (cycle?) ──► graph
//	Exec(job) ──► callback ──► release edges ──► promote ready successors
//
// # Thread-Safety
//
// None. A Scheduler is a passive structure; callers must serialize every call,
// typically with one lock held for the duration of a scheduler call (see
// internal/blockcache).
//
// # Ordering Guarantee
//
// If edge A -> B exists when Exec(B) is requested, Exec refuses B with
// ErrNotReady. ExecChain is the forced path: it runs every pending ancestor of
// a job in dependency order before the job itself.
package scheduler
