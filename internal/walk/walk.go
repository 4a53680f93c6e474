// Package walk is the depth-first traversal engine run over the dependency
// graph. It answers reachability questions for cycle rejection and drives the
// ancestor searches used when a job is flushed out of turn.
//
// The engine allocates all of its scratch state once, sized to the job table,
// and clears it at the start of every Walk. The stack is explicit so the cost
// of a walk is bounded by O(V+E) with no recursion.
package walk

import (
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/specialistvlad/blockorder/internal/depgraph"
)

// Verdict is what a visitor decides about a newly discovered job.
type Verdict int

const (
	// Continue expands the job's neighbours.
	Continue Verdict = iota
	// Cycle aborts the walk and reports a cycle.
	Cycle
	// Drop prunes the job: it is treated as fully resolved and not expanded.
	Drop
	// TurnBack does not expand the job but leaves it unresolved, so another
	// path may reach and judge it again.
	TurnBack
	// Stop ends the walk at once because the answer is known.
	Stop
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Cycle:
		return "cycle"
	case Drop:
		return "drop"
	case TurnBack:
		return "turn_back"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Mode selects the edges a walk follows. Flags compose.
type Mode uint8

const (
	// Fwd follows successor edges.
	Fwd Mode = 1 << iota
	// Bwd follows predecessor edges.
	Bwd
	// ExcludeFirst does not offer the start job to the visitor; the walk
	// starts expanding its neighbours directly.
	ExcludeFirst
)

// Outcome is how a walk ended.
type Outcome int

const (
	// Exhausted means every reachable job was judged.
	Exhausted Outcome = iota
	// CycleFound means a visitor returned Cycle or a back edge was met.
	CycleFound
	// Stopped means a visitor returned Stop.
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case CycleFound:
		return "cycle"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VisitFunc judges a job reached at the given depth from the start job.
type VisitFunc func(job int32, depth int) Verdict

type frame struct {
	job int32
	cur depgraph.Cursor
	// both is set when the walk follows successors and then predecessors.
	both bool
}

// Engine walks one graph. It is not safe for concurrent use.
type Engine struct {
	g          *depgraph.Graph
	visited    *bitset.BitSet
	discovered *bitset.BitSet
	stack      []frame
}

// New creates an engine with scratch space for every job of g.
func New(g *depgraph.Graph) *Engine {
	n := uint(g.Jobs())
	return &Engine{
		g:          g,
		visited:    bitset.New(n),
		discovered: bitset.New(n),
		stack:      make([]frame, 0, g.Jobs()),
	}
}

func (e *Engine) reset() {
	e.visited.ClearAll()
	e.discovered.ClearAll()
	e.stack = e.stack[:0]
}

func (e *Engine) push(job int32, mode Mode) {
	f := frame{job: job}
	dir := depgraph.Predecessors
	if mode&Fwd != 0 {
		dir = depgraph.Successors
		f.both = mode&Bwd != 0
	}
	f.cur = e.g.Browse(job, dir)
	e.stack = append(e.stack, f)
	e.discovered.Set(uint(job))
}

// next returns the next neighbour of the top frame, switching from the
// successor list to the predecessor list when the walk follows both.
func (f *frame) next() (int32, bool) {
	for {
		n, _, ok := f.cur.Next()
		if ok {
			return n, true
		}
		if !f.both {
			return -1, false
		}
		f.both = false
		f.cur.Reset(f.job, depgraph.Predecessors)
	}
}

// Walk runs a depth-first traversal from start. Jobs already judged in this
// walk are skipped. Meeting a job that is still on the discovery stack is a
// back edge and ends the walk with CycleFound, unless the walk follows both
// directions, where such meetings carry no meaning and are skipped.
func (e *Engine) Walk(start int32, mode Mode, visit VisitFunc) Outcome {
	if mode&(Fwd|Bwd) == 0 {
		mode |= Fwd
	}
	e.reset()
	directed := mode&(Fwd|Bwd) != Fwd|Bwd

	if mode&ExcludeFirst == 0 {
		switch visit(start, 0) {
		case Cycle:
			return CycleFound
		case Stop:
			return Stopped
		case Drop, TurnBack:
			return Exhausted
		}
	}
	e.push(start, mode)

	for len(e.stack) > 0 {
		top := &e.stack[len(e.stack)-1]
		n, ok := top.next()
		if !ok {
			e.visited.Set(uint(top.job))
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}

		if e.visited.Test(uint(n)) {
			continue
		}
		if e.discovered.Test(uint(n)) {
			if directed {
				return CycleFound
			}
			continue
		}

		switch visit(n, len(e.stack)) {
		case Continue:
			e.push(n, mode)
		case Cycle:
			return CycleFound
		case Drop:
			e.visited.Set(uint(n))
		case TurnBack:
			// Left undiscovered on purpose.
		case Stop:
			return Stopped
		}
	}
	return Exhausted
}

// Reaches reports whether target can be reached from start following the
// edges selected by mode. The start job itself does not count.
func (e *Engine) Reaches(start, target int32, mode Mode) bool {
	return e.Walk(start, mode|ExcludeFirst, func(job int32, _ int) Verdict {
		if job == target {
			return Stop
		}
		return Continue
	}) == Stopped
}

// Footprint returns the bytes of scratch space an engine over maxJobs jobs
// occupies.
func Footprint(maxJobs int) uintptr {
	words := uintptr(maxJobs+63) / 64
	return unsafe.Sizeof(Engine{}) +
		2*(unsafe.Sizeof(bitset.BitSet{})+words*8) +
		uintptr(maxJobs)*unsafe.Sizeof(frame{})
}
