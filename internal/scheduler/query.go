package scheduler

import (
	"github.com/specialistvlad/blockorder/internal/depgraph"
	"github.com/specialistvlad/blockorder/internal/walk"
)

// IsReady reports whether h has no pending predecessor.
func (s *Scheduler) IsReady(h Handle) (bool, error) {
	if err := s.check(h); err != nil {
		return false, err
	}
	return s.list.isReady(h.Index), nil
}

// NextReady returns the oldest ready job.
func (s *Scheduler) NextReady() (Handle, bool) {
	j, ok := s.list.front()
	if !ok {
		return Void, false
	}
	return s.handleAt(j), true
}

// Ready returns the ready jobs in the order they became ready.
func (s *Scheduler) Ready() []Handle {
	out := make([]Handle, 0, s.list.readyCnt)
	s.list.each(func(j int32, ready bool) bool {
		if !ready {
			return false
		}
		out = append(out, s.handleAt(j))
		return true
	})
	return out
}

// Pending returns every live job, ready ones first.
func (s *Scheduler) Pending() []Handle {
	out := make([]Handle, 0, s.jobs.Len())
	s.list.each(func(j int32, _ bool) bool {
		out = append(out, s.handleAt(j))
		return true
	})
	return out
}

// Predecessors returns the jobs directly ordered before h.
func (s *Scheduler) Predecessors(h Handle) ([]Handle, error) {
	if err := s.check(h); err != nil {
		return nil, err
	}
	var out []Handle
	s.graph.ForEachPredecessor(h.Index, func(prev int32, _ depgraph.Edge) bool {
		out = append(out, s.handleAt(prev))
		return true
	})
	return out, nil
}

// Successors returns the jobs directly ordered after h.
func (s *Scheduler) Successors(h Handle) ([]Handle, error) {
	if err := s.check(h); err != nil {
		return nil, err
	}
	var out []Handle
	s.graph.ForEachSuccessor(h.Index, func(next int32, _ depgraph.Edge) bool {
		out = append(out, s.handleAt(next))
		return true
	})
	return out, nil
}

// Blockers returns the ready ancestors of h: the jobs that have to execute,
// directly or through others, before h can. It is empty when h is ready.
func (s *Scheduler) Blockers(h Handle) ([]Handle, error) {
	if err := s.check(h); err != nil {
		return nil, err
	}
	var out []Handle
	s.engine.Walk(h.Index, walk.Bwd|walk.ExcludeFirst, func(job int32, _ int) walk.Verdict {
		if s.graph.PredCount(job) == 0 {
			out = append(out, s.handleAt(job))
			return walk.Drop
		}
		return walk.Continue
	})
	return out, nil
}

// Precedes reports whether a is ordered before b, directly or transitively.
func (s *Scheduler) Precedes(a, b Handle) (bool, error) {
	if err := s.check(a); err != nil {
		return false, err
	}
	if err := s.check(b); err != nil {
		return false, err
	}
	return s.engine.Reaches(a.Index, b.Index, walk.Fwd), nil
}
