package scheduler

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an ExecFunc sink that remembers the data of every executed job.
type recorder struct {
	ran  []any
	args []any
	fail map[any]error
}

func (r *recorder) exec(data, _ any, arg any) error {
	r.ran = append(r.ran, data)
	r.args = append(r.args, arg)
	return r.fail[data]
}

type edgeEvent struct {
	add        bool
	prev, next Handle
}

type recordingObserver struct {
	events []edgeEvent
}

func (o *recordingObserver) OnOrderAdd(prev, next Handle) {
	o.events = append(o.events, edgeEvent{add: true, prev: prev, next: next})
}

func (o *recordingObserver) OnOrderRem(prev, next Handle) {
	o.events = append(o.events, edgeEvent{prev: prev, next: next})
}

func newTestScheduler(t *testing.T, jobs, links int) (*Scheduler, *recorder, *recordingObserver) {
	t.Helper()
	rec := &recorder{}
	obs := &recordingObserver{}
	s, err := New(Config{
		MaxJobCnt:          jobs,
		MaxOrderingLinkCnt: links,
		ExecFunc:           rec.exec,
		Observer:           obs,
	})
	require.NoError(t, err)
	return s, rec, obs
}

func mustAdd(t *testing.T, s *Scheduler, prev Handle, data any) Handle {
	t.Helper()
	h, err := s.Add(prev, data, nil, nil, nil)
	require.NoError(t, err)
	return h
}

func indexOf(items []any, v any) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return -1
}

func TestNew_ConfigValidation(t *testing.T) {
	nop := func(_, _, _ any) error { return nil }

	testCases := []struct {
		name      string
		cfg       Config
		expectErr bool
	}{
		{name: "valid", cfg: Config{MaxJobCnt: 4, MaxOrderingLinkCnt: 4, ExecFunc: nop}},
		{name: "no links is allowed", cfg: Config{MaxJobCnt: 1, ExecFunc: nop}},
		{name: "zero jobs", cfg: Config{MaxJobCnt: 0, MaxOrderingLinkCnt: 4, ExecFunc: nop}, expectErr: true},
		{name: "negative links", cfg: Config{MaxJobCnt: 4, MaxOrderingLinkCnt: -1, ExecFunc: nop}, expectErr: true},
		{name: "missing exec func", cfg: Config{MaxJobCnt: 4, MaxOrderingLinkCnt: 4}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.cfg)
			if tc.expectErr {
				require.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestFootprint_GrowsWithCapacity(t *testing.T) {
	nop := func(_, _, _ any) error { return nil }
	small := Footprint(Config{MaxJobCnt: 8, MaxOrderingLinkCnt: 8, ExecFunc: nop})
	large := Footprint(Config{MaxJobCnt: 1024, MaxOrderingLinkCnt: 4096, ExecFunc: nop})

	assert.Greater(t, small, uintptr(0))
	assert.Greater(t, large, small)
}

func TestAdd_LogsSequenceNumbers(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(Config{
		MaxJobCnt:          2,
		MaxOrderingLinkCnt: 2,
		ExecFunc:           func(_, _, _ any) error { return nil },
		Logger:             slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)

	a := mustAdd(t, s, Void, "A")
	require.NoError(t, s.Exec(a, nil, nil))
	// The slot is reused, the sequence number is not.
	_ = mustAdd(t, s, Void, "B")

	logs := buf.String()
	assert.Contains(t, logs, "seq=0")
	assert.Contains(t, logs, "seq=1")
}

func TestScheduler_TwoJobScenario(t *testing.T) {
	s, rec, obs := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")

	ready, err := s.IsReady(b)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, []Handle{a}, s.Ready())

	err = s.Exec(b, nil, nil)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, rec.ran, "a blocked job never runs")
	assert.True(t, s.Valid(b))

	require.NoError(t, s.Exec(a, nil, nil))
	next, ok := s.NextReady()
	require.True(t, ok)
	assert.Equal(t, b, next)

	require.NoError(t, s.Exec(b, nil, nil))
	assert.Equal(t, []any{"A", "B"}, rec.ran)
	assert.Equal(t, 0, s.Len())

	require.Len(t, obs.events, 2)
	assert.Equal(t, edgeEvent{add: true, prev: a, next: b}, obs.events[0])
	assert.Equal(t, edgeEvent{prev: a, next: b}, obs.events[1])
}

func TestAdd_CapacityExceeded(t *testing.T) {
	s, _, _ := newTestScheduler(t, 2, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")

	_, err := s.Add(Void, "C", nil, nil, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	assert.True(t, s.Valid(a))
	assert.True(t, s.Valid(b))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Stats().Edges)
}

func TestAdd_SlotReuseAfterExec(t *testing.T) {
	s, _, _ := newTestScheduler(t, 2, 2)

	a := mustAdd(t, s, Void, "A")
	_ = mustAdd(t, s, Void, "B")
	require.NoError(t, s.Exec(a, nil, nil))

	c := mustAdd(t, s, Void, "C")
	assert.Equal(t, a.Index, c.Index, "the released slot is reused")
	assert.NotEqual(t, a.ID, c.ID)

	_, err := s.DataGet(a)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	data, err := s.DataGet(c)
	require.NoError(t, err)
	assert.Equal(t, "C", data)
}

func TestAdd_EdgePoolExhaustedLeavesNoJob(t *testing.T) {
	s, _, obs := newTestScheduler(t, 4, 1)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")

	_, err := s.Add(a, "C", nil, nil, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, s.Len())

	err = s.Order(b, a, nil, nil)
	assert.ErrorIs(t, err, ErrCycleDetected, "cycle check runs before the pool check")

	c := mustAdd(t, s, Void, "C")
	err = s.Order(a, c, nil, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	ready, err := s.IsReady(c)
	require.NoError(t, err)
	assert.True(t, ready, "a failed order does not block the job")
	assert.Len(t, obs.events, 1)
}

func TestOrder_RejectsCycleWithoutSideEffects(t *testing.T) {
	s, _, obs := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")
	c := mustAdd(t, s, b, "C")
	before := s.Stats()

	testCases := []struct {
		name       string
		prev, next Handle
	}{
		{name: "closing edge", prev: c, next: a},
		{name: "reverse of direct edge", prev: b, next: a},
		{name: "self edge", prev: b, next: b},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Order(tc.prev, tc.next, nil, nil)
			assert.ErrorIs(t, err, ErrCycleDetected)

			after := s.Stats()
			assert.Equal(t, before.Edges, after.Edges)
			assert.Equal(t, before.Ready, after.Ready)
			assert.Len(t, obs.events, 2, "no observer event for a rejected edge")
		})
	}

	preds, err := s.Predecessors(a)
	require.NoError(t, err)
	assert.Empty(t, preds)
	assert.Equal(t, uint64(3), s.Stats().CyclesRejected)
}

func TestOrder_DuplicatePairIsNoop(t *testing.T) {
	s, rec, obs := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, Void, "B")

	require.NoError(t, s.Order(a, b, nil, nil))
	require.NoError(t, s.Order(a, b, nil, nil))
	assert.Equal(t, 1, s.Stats().Edges)
	assert.Len(t, obs.events, 1)

	var rebound []any
	rebind := func(data, _, arg any) error {
		rebound = append(rebound, arg)
		return nil
	}
	require.NoError(t, s.Order(a, b, rebind, "rebound"))
	assert.Equal(t, 1, s.Stats().Edges)

	require.NoError(t, s.Exec(a, nil, nil))
	require.NoError(t, s.Exec(b, nil, nil))
	assert.Equal(t, []any{"A"}, rec.ran)
	assert.Equal(t, []any{"rebound"}, rebound)
}

func TestExec_CallbackResolution(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 4, 4)

	var bound, override []any
	bindFn := func(data, _, arg any) error {
		bound = append(bound, fmt.Sprint(data, ":", arg))
		return nil
	}
	overrideFn := func(data, _, arg any) error {
		override = append(override, fmt.Sprint(data, ":", arg))
		return nil
	}

	plain := mustAdd(t, s, Void, "plain")
	withBinding, err := s.Add(Void, "bound", nil, bindFn, "b-arg")
	require.NoError(t, err)
	overridden, err := s.Add(Void, "over", nil, bindFn, "b-arg")
	require.NoError(t, err)

	require.NoError(t, s.Exec(plain, nil, nil))
	require.NoError(t, s.Exec(withBinding, nil, nil))
	require.NoError(t, s.Exec(overridden, overrideFn, "o-arg"))

	assert.Equal(t, []any{"plain"}, rec.ran)
	assert.Equal(t, []any{"bound:b-arg"}, bound)
	assert.Equal(t, []any{"over:o-arg"}, override)
}

func TestExec_CallbackErrorStillReleases(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 4, 4)
	boom := stderrors.New("disk on fire")
	rec.fail = map[any]error{"A": boom}

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")

	err := s.Exec(a, nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Valid(a))

	ready, err := s.IsReady(b)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestExec_ReleasesEveryIncidentEdge(t *testing.T) {
	s, _, obs := newTestScheduler(t, 8, 8)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")
	c := mustAdd(t, s, a, "C")
	d := mustAdd(t, s, Void, "D")
	require.NoError(t, s.Order(d, c, nil, nil))

	require.NoError(t, s.Exec(a, nil, nil))

	assert.Equal(t, 1, s.Stats().Edges)
	readyB, err := s.IsReady(b)
	require.NoError(t, err)
	assert.True(t, readyB)
	readyC, err := s.IsReady(c)
	require.NoError(t, err)
	assert.False(t, readyC, "c still waits for d")

	for _, ev := range obs.events {
		assert.False(t, ev.prev.IsVoid())
		assert.False(t, ev.next.IsVoid())
	}

	succ, err := s.Successors(d)
	require.NoError(t, err)
	assert.Equal(t, []Handle{c}, succ)
}

func TestExecChain_RunsAncestorsFirst(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 8, 8)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")
	c := mustAdd(t, s, b, "C")
	d := mustAdd(t, s, Void, "D")
	require.NoError(t, s.Order(d, c, nil, nil))
	unrelated := mustAdd(t, s, Void, "X")

	require.NoError(t, s.ExecChain(c, nil, nil))

	require.Len(t, rec.ran, 4)
	assert.Less(t, indexOf(rec.ran, "A"), indexOf(rec.ran, "B"))
	assert.Less(t, indexOf(rec.ran, "B"), indexOf(rec.ran, "C"))
	assert.Less(t, indexOf(rec.ran, "D"), indexOf(rec.ran, "C"))
	assert.Equal(t, "C", rec.ran[3])

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Valid(unrelated))
	assert.Equal(t, 0, s.Stats().Edges)
}

func TestExecChain_CollectsErrors(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 4, 4)
	errA := stderrors.New("a failed")
	errC := stderrors.New("c failed")
	rec.fail = map[any]error{"A": errA, "C": errC}

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")
	c := mustAdd(t, s, b, "C")

	err := s.ExecChain(c, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Equal(t, []any{"A", "B", "C"}, rec.ran)
	assert.Equal(t, 0, s.Len())
}

func TestStubJobTryRem(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	stub := mustAdd(t, s, a, nil)

	removed, err := s.StubJobTryRem(stub)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, s.Valid(stub))
	assert.Equal(t, 0, s.Stats().Edges)
	assert.Empty(t, rec.ran, "pruning runs no callback")

	anchor := mustAdd(t, s, Void, nil)
	after := mustAdd(t, s, anchor, "B")

	removed, err = s.StubJobTryRem(anchor)
	require.NoError(t, err)
	assert.False(t, removed, "a job with successors stays")
	assert.True(t, s.Valid(anchor))

	blockers, err := s.Blockers(after)
	require.NoError(t, err)
	assert.Equal(t, []Handle{anchor}, blockers)

	_, err = s.StubJobTryRem(stub)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestStaleHandleRejectedEverywhere(t *testing.T) {
	s, _, _ := newTestScheduler(t, 2, 2)

	stale := mustAdd(t, s, Void, "old")
	require.NoError(t, s.Exec(stale, nil, nil))
	live := mustAdd(t, s, Void, "new")
	require.Equal(t, stale.Index, live.Index)

	calls := map[string]func() error{
		"Add":           func() error { _, err := s.Add(stale, nil, nil, nil, nil); return err },
		"Order prev":    func() error { return s.Order(stale, live, nil, nil) },
		"Order next":    func() error { return s.Order(live, stale, nil, nil) },
		"Exec":          func() error { return s.Exec(stale, nil, nil) },
		"ExecChain":     func() error { return s.ExecChain(stale, nil, nil) },
		"StubJobTryRem": func() error { _, err := s.StubJobTryRem(stale); return err },
		"DataGet":       func() error { _, err := s.DataGet(stale); return err },
		"DbgDataGet":    func() error { _, err := s.DbgDataGet(stale); return err },
		"IsReady":       func() error { _, err := s.IsReady(stale); return err },
		"Blockers":      func() error { _, err := s.Blockers(stale); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), ErrInvalidHandle)
		})
	}

	assert.True(t, s.Valid(live))
	assert.Equal(t, 1, s.Len())
}

func TestReadyList_Order(t *testing.T) {
	s, _, _ := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, Void, "B")
	c := mustAdd(t, s, Void, "C")
	assert.Equal(t, []Handle{a, b, c}, s.Ready())

	require.NoError(t, s.Order(a, b, nil, nil))
	assert.Equal(t, []Handle{a, c}, s.Ready())
	assert.Equal(t, []Handle{a, c, b}, s.Pending())

	require.NoError(t, s.Exec(a, nil, nil))
	assert.Equal(t, []Handle{c, b}, s.Ready(), "promoted jobs join the end of the ready prefix")

	next, ok := s.NextReady()
	require.True(t, ok)
	assert.Equal(t, c, next)
}

func TestPrecedes(t *testing.T) {
	s, _, _ := newTestScheduler(t, 4, 4)

	a := mustAdd(t, s, Void, "A")
	b := mustAdd(t, s, a, "B")
	c := mustAdd(t, s, b, "C")
	x := mustAdd(t, s, Void, "X")

	ok, err := s.Precedes(a, c)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Precedes(c, a)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Precedes(x, c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s, rec, _ := newTestScheduler(t, 3, 3)

	a := mustAdd(t, s, Void, "A")
	_ = mustAdd(t, s, a, "B")
	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Valid(a))
	assert.Empty(t, rec.ran)
	_, ok := s.NextReady()
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		mustAdd(t, s, Void, i)
	}
	assert.Equal(t, 3, s.Stats().Ready)
}

// model is a plain edge set the scheduler is checked against.
type model struct {
	live  []Handle
	edges map[[2]Handle]bool
}

func (m *model) preds(h Handle) []Handle {
	var out []Handle
	for e := range m.edges {
		if e[1] == h {
			out = append(out, e[0])
		}
	}
	return out
}

func (m *model) succs(h Handle) []Handle {
	var out []Handle
	for e := range m.edges {
		if e[0] == h {
			out = append(out, e[1])
		}
	}
	return out
}

// reaches reports a path from -> ... -> to along successor edges.
func (m *model) reaches(from, to Handle) bool {
	seen := map[Handle]bool{from: true}
	stack := []Handle{from}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range m.succs(h) {
			if n == to {
				return true
			}
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return false
}

func (m *model) remove(h Handle) {
	m.live = slices.DeleteFunc(m.live, func(x Handle) bool { return x == h })
	for e := range m.edges {
		if e[0] == h || e[1] == h {
			delete(m.edges, e)
		}
	}
}

func (m *model) verify(t *testing.T, s *Scheduler, step int) {
	t.Helper()
	var ready []Handle
	for _, h := range m.live {
		if len(m.preds(h)) == 0 {
			ready = append(ready, h)
		}
	}
	assert.ElementsMatch(t, ready, s.Ready(), "step %d: ready set", step)
	assert.Equal(t, len(m.live), s.Len(), "step %d: live jobs", step)
	assert.Equal(t, len(m.edges), s.Stats().Edges, "step %d: edges", step)

	for _, h := range m.live {
		preds, err := s.Predecessors(h)
		require.NoError(t, err)
		assert.ElementsMatch(t, m.preds(h), preds, "step %d: preds of %s", step, h)

		succs, err := s.Successors(h)
		require.NoError(t, err)
		assert.ElementsMatch(t, m.succs(h), succs, "step %d: succs of %s", step, h)
	}
}

func TestScheduler_RandomSequencesMatchEdgeSet(t *testing.T) {
	const (
		maxJobs  = 8
		maxEdges = 12
		steps    = 200
	)

	for seed := int64(1); seed <= 40; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			s, _, _ := newTestScheduler(t, maxJobs, maxEdges)
			m := &model{edges: map[[2]Handle]bool{}}
			pick := func() Handle { return m.live[rng.Intn(len(m.live))] }

			for step := 0; step < steps; step++ {
				op := rng.Intn(5)
				if len(m.live) == 0 {
					op = 0
				}

				switch op {
				case 0: // add, half of the time after an existing job
					prev := Void
					if len(m.live) > 0 && rng.Intn(2) == 0 {
						prev = pick()
					}
					h, err := s.Add(prev, step, nil, nil, nil)
					switch {
					case !prev.IsVoid() && len(m.edges) == maxEdges, len(m.live) == maxJobs:
						require.ErrorIs(t, err, ErrCapacityExceeded, "step %d", step)
					default:
						require.NoError(t, err, "step %d", step)
						m.live = append(m.live, h)
						if !prev.IsVoid() {
							m.edges[[2]Handle{prev, h}] = true
						}
					}

				case 1, 2: // order
					prev, next := pick(), pick()
					err := s.Order(prev, next, nil, nil)
					switch {
					case prev == next:
						require.ErrorIs(t, err, ErrCycleDetected, "step %d", step)
					case m.edges[[2]Handle{prev, next}]:
						require.NoError(t, err, "step %d", step)
					case m.reaches(next, prev):
						require.ErrorIs(t, err, ErrCycleDetected, "step %d", step)
					case len(m.edges) == maxEdges:
						require.ErrorIs(t, err, ErrCapacityExceeded, "step %d", step)
					default:
						require.NoError(t, err, "step %d", step)
						m.edges[[2]Handle{prev, next}] = true
					}

				case 3: // exec
					h := pick()
					err := s.Exec(h, nil, nil)
					if len(m.preds(h)) > 0 {
						require.ErrorIs(t, err, ErrNotReady, "step %d", step)
						break
					}
					require.NoError(t, err, "step %d", step)
					m.remove(h)
					assert.False(t, s.Valid(h), "step %d: executed handle stays valid", step)

				case 4: // stub removal
					h := pick()
					removed, err := s.StubJobTryRem(h)
					require.NoError(t, err, "step %d", step)
					assert.Equal(t, len(m.succs(h)) == 0, removed, "step %d", step)
					if removed {
						m.remove(h)
					}
				}

				m.verify(t, s, step)
			}
		})
	}
}
