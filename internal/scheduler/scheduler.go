package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/blockorder/internal/depgraph"
	"github.com/specialistvlad/blockorder/internal/errors"
	"github.com/specialistvlad/blockorder/internal/jobtable"
	"github.com/specialistvlad/blockorder/internal/walk"
)

// Scheduler is the ordered job scheduler. See the package documentation for
// the concurrency contract.
type Scheduler struct {
	cfg      Config
	jobs     *jobtable.Table
	graph    *depgraph.Graph
	engine   *walk.Engine
	list     orderList
	observer Observer
	logger   *slog.Logger
	stats    Stats
}

// Stats are running counters and current occupancy.
type Stats struct {
	Jobs, MaxJobs   int
	Edges, MaxEdges int
	Ready           int

	Added          uint64
	Executed       uint64
	OrdersAdded    uint64
	OrdersRemoved  uint64
	CyclesRejected uint64
	StubsRemoved   uint64
}

// New builds a scheduler, allocating every table it will ever use.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := depgraph.New(cfg.MaxJobCnt, cfg.MaxOrderingLinkCnt)
	s := &Scheduler{
		cfg:      cfg,
		jobs:     jobtable.New(cfg.MaxJobCnt),
		graph:    g,
		engine:   walk.New(g),
		list:     newOrderList(cfg.MaxJobCnt),
		observer: cfg.Observer,
		logger:   cfg.Logger.With("component", "scheduler"),
	}
	s.logger.Debug("Scheduler initialized.",
		"max_jobs", cfg.MaxJobCnt,
		"max_links", cfg.MaxOrderingLinkCnt,
		"footprint", humanize.Bytes(uint64(Footprint(cfg))),
	)
	return s, nil
}

func (s *Scheduler) check(h Handle) error {
	if !s.jobs.Validate(h) {
		return errors.WithStackTraceAndPrefix(ErrInvalidHandle, "%s", h)
	}
	return nil
}

func (s *Scheduler) handleAt(idx int32) Handle {
	h, _ := s.jobs.HandleAt(idx)
	return h
}

func bindingOf(exec ExecFunc) any {
	if exec == nil {
		return nil
	}
	return exec
}

// Add creates a job. When prev is not Void the new job is ordered after it.
// exec and arg are bound to the job; a nil exec means Config.ExecFunc. On
// failure nothing is allocated and the graph is unchanged.
func (s *Scheduler) Add(prev Handle, data, dbgData any, exec ExecFunc, arg any) (Handle, error) {
	if !prev.IsVoid() {
		if err := s.check(prev); err != nil {
			return Void, err
		}
		if s.graph.Free() == 0 {
			return Void, fmt.Errorf("add job after %s: edge pool: %w", prev, ErrCapacityExceeded)
		}
	}

	h, err := s.jobs.Allocate()
	if err != nil {
		return Void, fmt.Errorf("add job: job table: %w", err)
	}
	// Set and Bind cannot fail on a handle just allocated.
	_ = s.jobs.Set(h, data, dbgData)
	_ = s.jobs.Bind(h, bindingOf(exec), arg)
	s.list.pushReady(h.Index)

	if !prev.IsVoid() {
		if err := s.order(prev, h, nil, nil); err != nil {
			s.list.remove(h.Index)
			_ = s.jobs.Release(h)
			return Void, err
		}
	}

	s.stats.Added++
	seq, _ := s.jobs.Seq(h)
	s.logger.Debug("Job added.", "job", h.String(), "seq", seq, "prev", prev.String())
	return h, nil
}

// Order records that prev must execute before next. Ordering a pair that is
// already ordered adds no edge; a non-nil exec then only rebinds next. A
// failed call leaves the graph exactly as it was.
func (s *Scheduler) Order(prev, next Handle, exec ExecFunc, arg any) error {
	if err := s.check(prev); err != nil {
		return err
	}
	if err := s.check(next); err != nil {
		return err
	}
	return s.order(prev, next, exec, arg)
}

func (s *Scheduler) order(prev, next Handle, exec ExecFunc, arg any) error {
	if prev.Index == next.Index {
		s.stats.CyclesRejected++
		return fmt.Errorf("order %s -> %s: %w", prev, next, ErrCycleDetected)
	}

	if s.graph.FindEdge(prev.Index, next.Index) != depgraph.NoEdge {
		if exec != nil {
			_ = s.jobs.Bind(next, exec, arg)
		}
		return nil
	}

	// A path next -> ... -> prev means next is an ancestor of prev.
	if s.engine.Reaches(prev.Index, next.Index, walk.Bwd) {
		s.stats.CyclesRejected++
		return fmt.Errorf("order %s -> %s: %w", prev, next, ErrCycleDetected)
	}

	if _, err := s.graph.AddEdge(prev.Index, next.Index); err != nil {
		return fmt.Errorf("order %s -> %s: edge pool: %w", prev, next, err)
	}
	s.list.demote(next.Index)
	if exec != nil {
		_ = s.jobs.Bind(next, exec, arg)
	}

	s.stats.OrdersAdded++
	s.observer.OnOrderAdd(prev, next)
	return nil
}

// resolve picks the callback for h: the one passed to Exec, else the one
// bound to the job, else Config.ExecFunc.
func (s *Scheduler) resolve(h Handle, exec ExecFunc, arg any) (ExecFunc, any) {
	if exec != nil {
		return exec, arg
	}
	b, _ := s.jobs.BindingOf(h)
	if fn, ok := b.Fn.(ExecFunc); ok && fn != nil {
		return fn, b.Arg
	}
	if arg == nil {
		arg = b.Arg
	}
	return s.cfg.ExecFunc, arg
}

// Exec runs h synchronously, then releases it and every incident edge, and
// promotes each successor left without predecessors to the ready prefix. A job
// that still has predecessors is refused with ErrNotReady; use ExecChain to
// force it out together with its ancestors. The callback's error is returned
// after the job has been released.
func (s *Scheduler) Exec(h Handle, exec ExecFunc, arg any) error {
	if err := s.check(h); err != nil {
		return err
	}
	if n := s.graph.PredCount(h.Index); n > 0 {
		return fmt.Errorf("exec %s: %d pending: %w", h, n, ErrNotReady)
	}

	fn, fnArg := s.resolve(h, exec, arg)
	data, _ := s.jobs.Get(h)
	dbgData, _ := s.jobs.DbgGet(h)

	cbErr := fn(data, dbgData, fnArg)
	s.release(h)
	s.stats.Executed++

	if cbErr != nil {
		s.logger.Debug("Job callback failed.", "job", h.String(), "error", cbErr)
		return fmt.Errorf("exec %s: %w", h, cbErr)
	}
	return nil
}

// ExecChain runs every pending ancestor of h in dependency order and then h
// with exec and arg. Ancestors use their own binding; those without one run
// Config.ExecFunc with arg. Callback errors are collected and do not stop the
// chain.
func (s *Scheduler) ExecChain(h Handle, exec ExecFunc, arg any) error {
	if err := s.check(h); err != nil {
		return err
	}

	var result *multierror.Error
	for s.graph.PredCount(h.Index) > 0 {
		root := nilJob
		s.engine.Walk(h.Index, walk.Bwd|walk.ExcludeFirst, func(job int32, _ int) walk.Verdict {
			if s.graph.PredCount(job) == 0 {
				root = job
				return walk.Stop
			}
			return walk.Continue
		})
		if root == nilJob {
			// Only reachable if the graph holds a cycle, which order() forbids.
			return fmt.Errorf("exec chain %s: no runnable ancestor: %w", h, ErrCycleDetected)
		}
		if err := s.Exec(s.handleAt(root), nil, arg); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.Exec(h, exec, arg); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// StubJobTryRem removes h if no job is ordered after it. It reports whether
// the job was removed; a job with successors is left untouched.
func (s *Scheduler) StubJobTryRem(h Handle) (bool, error) {
	if err := s.check(h); err != nil {
		return false, err
	}
	if s.graph.SuccCount(h.Index) > 0 {
		return false, nil
	}
	s.release(h)
	s.stats.StubsRemoved++
	return true, nil
}

// release drops every edge touching h, promoting successors that become
// ready, and frees its slot.
func (s *Scheduler) release(h Handle) {
	s.graph.RemoveIncident(h.Index, func(prev, next int32) {
		s.stats.OrdersRemoved++
		s.observer.OnOrderRem(s.handleAt(prev), s.handleAt(next))
		if prev == h.Index && s.graph.PredCount(next) == 0 {
			s.list.promote(next)
		}
	})
	s.list.remove(h.Index)
	_ = s.jobs.Release(h)
}

// DataGet returns the payload h was added with.
func (s *Scheduler) DataGet(h Handle) (any, error) {
	if err := s.check(h); err != nil {
		return nil, err
	}
	return s.jobs.Get(h)
}

// DbgDataGet returns the debug payload h was added with.
func (s *Scheduler) DbgDataGet(h Handle) (any, error) {
	if err := s.check(h); err != nil {
		return nil, err
	}
	return s.jobs.DbgGet(h)
}

// Valid reports whether h refers to a live job.
func (s *Scheduler) Valid(h Handle) bool {
	return s.jobs.Validate(h)
}

// Len returns the number of live jobs.
func (s *Scheduler) Len() int {
	return s.jobs.Len()
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Jobs, st.MaxJobs = s.jobs.Len(), s.jobs.Cap()
	st.Edges, st.MaxEdges = s.graph.Len(), s.graph.Cap()
	st.Ready = s.list.readyCnt
	return st
}

// Reset drops every job and edge without running callbacks. Counters are kept.
func (s *Scheduler) Reset() {
	s.jobs.Reset()
	s.graph.Reset()
	s.list.reset()
}
