package blockcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/blockorder/internal/ctxlog"
	"github.com/specialistvlad/blockorder/internal/scheduler"
	"github.com/specialistvlad/blockorder/internal/volume"
)

// Handle identifies a pending write or anchor.
type Handle = scheduler.Handle

// entry is the payload of a write job.
type entry struct {
	block uint64
	data  []byte
	h     Handle
	// prior holds the handles of earlier jobs for this entry whose write
	// failed and was requeued as h.
	prior []Handle
}

// failure is a write-back that failed during the current Exec.
type failure struct {
	e     *entry
	succs []Handle
}

// Options sizes the cache.
type Options struct {
	MaxJobs  int
	MaxLinks int
	Observer scheduler.Observer
}

// Stats are cumulative cache counters.
type Stats struct {
	Dirty         int
	Writes        uint64
	Coalesced     uint64
	Flushed       uint64
	BytesWritten  uint64
	ForcedFlushes uint64
	BackPressure  uint64
	FailedWrites  uint64
	Scheduler     scheduler.Stats
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	vol     volume.Volume
	sched   *scheduler.Scheduler
	pending map[uint64]*entry
	stats   Stats
	logger  *slog.Logger

	// failed is filled by writeBack and drained right after the Exec that
	// produced it.
	failed []failure
	// retried holds the requeued jobs of the running drain; they wait for the
	// next one.
	retried map[Handle]struct{}
	// moved maps the handle of a failed job to its replacement.
	moved map[Handle]Handle
}

// New creates a cache in front of vol.
func New(vol volume.Volume, opts Options, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		vol:     vol,
		pending: make(map[uint64]*entry),
		logger:  logger.With("component", "blockcache"),
		retried: make(map[Handle]struct{}),
		moved:   make(map[Handle]Handle),
	}
	s, err := scheduler.New(scheduler.Config{
		MaxJobCnt:          opts.MaxJobs,
		MaxOrderingLinkCnt: opts.MaxLinks,
		ExecFunc:           c.writeBack,
		Observer:           opts.Observer,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	c.sched = s
	return c, nil
}

func (c *Cache) log(ctx context.Context) *slog.Logger {
	return ctxlog.FromContextOr(ctx, c.logger)
}

// writeBack is the scheduler callback for every job. arg carries the context
// of the call that triggered the flush. Anchors have no payload and write
// nothing. A failed write keeps the block dirty; run requeues it once the
// failed job is released.
func (c *Cache) writeBack(data, _ any, arg any) error {
	e, ok := data.(*entry)
	if !ok || e == nil {
		return nil
	}
	ctx, ok := arg.(context.Context)
	if !ok {
		ctx = context.Background()
	}

	if err := c.vol.WriteBlock(ctx, e.block, e.data); err != nil {
		c.stats.FailedWrites++
		succs, _ := c.sched.Successors(e.h)
		c.failed = append(c.failed, failure{e: e, succs: succs})
		c.log(ctx).Warn("Write-back failed.", "block", e.block, "dependents", len(succs), "error", err)
		return err
	}

	if cur, ok := c.pending[e.block]; ok && cur == e {
		delete(c.pending, e.block)
	}
	for _, old := range e.prior {
		delete(c.moved, old)
	}
	c.stats.Flushed++
	c.stats.BytesWritten += uint64(len(e.data))
	return nil
}

// run executes h and requeues the write if it failed.
func (c *Cache) run(ctx context.Context, h Handle) error {
	err := c.sched.Exec(h, nil, ctx)
	for _, f := range c.failed {
		if rqErr := c.requeue(f); rqErr != nil {
			err = multierror.Append(err, rqErr)
		}
	}
	c.failed = c.failed[:0]
	return err
}

// requeue gives a failed entry a fresh job and puts it back in front of the
// jobs that were waiting for it. The failed job has just been released, so
// its slot and edges are free again.
func (c *Cache) requeue(f failure) error {
	old := f.e.h
	h, err := c.sched.Add(scheduler.Void, f.e, fmt.Sprintf("block %d (retry)", f.e.block), nil, nil)
	if err != nil {
		return fmt.Errorf("requeue block %d: %w", f.e.block, err)
	}
	f.e.h = h
	f.e.prior = append(f.e.prior, old)
	c.moved[old] = h
	c.retried[h] = struct{}{}

	for _, next := range f.succs {
		if !c.sched.Valid(next) {
			continue
		}
		if err := c.sched.Order(h, next, nil, nil); err != nil {
			return fmt.Errorf("requeue block %d: %w", f.e.block, err)
		}
	}
	return nil
}

// current follows h through requeued writes to the job standing in for it.
func (c *Cache) current(h Handle) Handle {
	for {
		next, ok := c.moved[h]
		if !ok {
			return h
		}
		h = next
	}
}

// Write stores data as the new content of block and returns the handle of the
// pending job. The block reaches the volume only after every job in after.
// Handles in after that were already flushed are ignored.
func (c *Cache) Write(ctx context.Context, block uint64, data []byte, after ...Handle) (Handle, error) {
	buf, err := volume.Pad(data, c.vol.BlockSize())
	if err != nil {
		return scheduler.Void, fmt.Errorf("write block %d: %w", block, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.write(ctx, block, buf, after)
	if errors.Is(err, scheduler.ErrCapacityExceeded) {
		c.stats.BackPressure++
		c.log(ctx).Debug("Scheduler full, draining.", "block", block)
		if syncErr := c.sync(ctx); syncErr != nil {
			return scheduler.Void, fmt.Errorf("write block %d: drain: %w", block, syncErr)
		}
		h, err = c.write(ctx, block, buf, after)
	}
	if err != nil {
		return scheduler.Void, fmt.Errorf("write block %d: %w", block, err)
	}
	c.stats.Writes++
	return h, nil
}

func (c *Cache) write(ctx context.Context, block uint64, buf []byte, after []Handle) (Handle, error) {
	if e, ok := c.pending[block]; ok {
		err := c.orderAfter(e.h, after)
		if err == nil {
			e.data = buf
			c.stats.Coalesced++
			return e.h, nil
		}
		if !errors.Is(err, scheduler.ErrCycleDetected) {
			return scheduler.Void, err
		}
		// The old content has to land before something the new content
		// must follow. Push it out and start over with a fresh job.
		c.stats.ForcedFlushes++
		c.log(ctx).Debug("Coalescing would close a cycle, flushing pending write.", "block", block)
		if err := c.flushChain(ctx, e.h); err != nil {
			return scheduler.Void, err
		}
	}

	e := &entry{block: block, data: buf}
	h, err := c.sched.Add(scheduler.Void, e, fmt.Sprintf("block %d", block), nil, nil)
	if err != nil {
		return scheduler.Void, err
	}
	e.h = h
	if err := c.orderAfter(h, after); err != nil {
		// Discard the fresh job; it has no successors yet.
		_, _ = c.sched.StubJobTryRem(h)
		return scheduler.Void, err
	}
	c.pending[block] = e
	return h, nil
}

func (c *Cache) orderAfter(h Handle, after []Handle) error {
	for _, prev := range after {
		prev = c.current(prev)
		if prev.IsVoid() || !c.sched.Valid(prev) {
			continue
		}
		if err := c.sched.Order(prev, h, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// Anchor creates a placeholder job ordered after the given jobs, or after
// every pending write when none are given. Later writes can be ordered after
// the anchor to follow all of them.
func (c *Cache) Anchor(ctx context.Context, after ...Handle) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(after) == 0 {
		for _, e := range c.pending {
			after = append(after, e.h)
		}
	}
	h, err := c.sched.Add(scheduler.Void, nil, "anchor", nil, nil)
	if err != nil {
		return scheduler.Void, fmt.Errorf("anchor: %w", err)
	}
	if err := c.orderAfter(h, after); err != nil {
		_, _ = c.sched.StubJobTryRem(h)
		return scheduler.Void, fmt.Errorf("anchor: %w", err)
	}
	c.log(ctx).Debug("Anchor created.", "job", h.String(), "after", len(after))
	return h, nil
}

// ReleaseAnchor prunes an anchor nothing was ordered after. It reports false
// when the anchor still has dependents; it is then flushed as a no-op job.
// An anchor that was already flushed reports true.
func (c *Cache) ReleaseAnchor(h Handle) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sched.Valid(h) {
		return true, nil
	}
	return c.sched.StubJobTryRem(h)
}

// Flush forces block, and every write it was ordered after, to the volume.
func (c *Cache) Flush(ctx context.Context, block uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.pending[block]
	if !ok {
		return nil
	}
	if err := c.flushChain(ctx, e.h); err != nil {
		return fmt.Errorf("flush block %d: %w", block, err)
	}
	return nil
}

// flushChain runs the ready ancestors of h until none is left, then h. A
// write that fails on the way keeps h waiting and is reported.
func (c *Cache) flushChain(ctx context.Context, h Handle) error {
	clear(c.retried)
	var result *multierror.Error
	for {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		blockers, err := c.sched.Blockers(h)
		if err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		next := scheduler.Void
		for _, b := range blockers {
			if _, skip := c.retried[b]; !skip {
				next = b
				break
			}
		}
		if next.IsVoid() {
			break
		}
		if err := c.run(ctx, next); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if ready, _ := c.sched.IsReady(h); !ready {
		return multierror.Append(result, fmt.Errorf("%s held back by failed writes: %w", h, scheduler.ErrNotReady)).ErrorOrNil()
	}
	if err := c.run(ctx, h); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Sync flushes every pending write in dependency order. Write failures do not
// stop the drain; they are returned together. A block whose write failed stays
// dirty, the writes ordered after it stay pending, and the next Sync retries
// it.
func (c *Cache) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync(ctx)
}

func (c *Cache) sync(ctx context.Context) error {
	clear(c.retried)
	var result *multierror.Error
	for {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		h, ok := c.nextRunnable()
		if !ok {
			break
		}
		if err := c.run(ctx, h); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if n := c.sched.Len(); n > 0 && len(c.retried) == 0 {
		// Unreachable while the graph stays acyclic.
		result = multierror.Append(result, fmt.Errorf("%d jobs left blocked", n))
	}
	return result.ErrorOrNil()
}

// nextRunnable returns the oldest ready job that was not requeued by the
// running drain.
func (c *Cache) nextRunnable() (Handle, bool) {
	h, ok := c.sched.NextReady()
	if !ok {
		return scheduler.Void, false
	}
	if _, skip := c.retried[h]; !skip {
		return h, true
	}
	for _, h := range c.sched.Ready() {
		if _, skip := c.retried[h]; !skip {
			return h, true
		}
	}
	return scheduler.Void, false
}

// Read returns the newest content of block, dirty or durable.
func (c *Cache) Read(ctx context.Context, block uint64) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.pending[block]; ok {
		out := make([]byte, len(e.data))
		copy(out, e.data)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()
	return c.vol.ReadBlock(ctx, block)
}

// Dirty reports whether block has a pending write.
func (c *Cache) Dirty(block uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[block]
	return ok
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Dirty = len(c.pending)
	st.Scheduler = c.sched.Stats()
	return st
}
