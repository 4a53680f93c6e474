package depgraph

import (
	"fmt"
	"unsafe"

	"github.com/specialistvlad/blockorder/internal/errors"
)

const nilIx int32 = -1

// Edge identifies one adapter in the pool.
type Edge int32

// NoEdge is returned when no edge matches.
const NoEdge Edge = -1

type adapter struct {
	prev, next int32
	live       bool

	// Links inside the successor list of prev. succNext doubles as the free
	// list link while the adapter is unused.
	succPrev, succNext int32
	// Links inside the predecessor list of next.
	predPrev, predNext int32
}

type vertex struct {
	succHead, predHead int32
	succCnt, predCnt   int32
}

// Graph is the adjacency structure over job indices.
type Graph struct {
	adapters []adapter
	vertices []vertex
	freeHead int32
	live     int
}

// New creates a graph over maxJobs vertices with a pool of maxEdges adapters.
func New(maxJobs, maxEdges int) *Graph {
	g := &Graph{
		adapters: make([]adapter, maxEdges),
		vertices: make([]vertex, maxJobs),
	}
	g.Reset()
	return g
}

// Reset removes every edge and refills the adapter free list.
func (g *Graph) Reset() {
	g.freeHead = nilIx
	for i := len(g.adapters) - 1; i >= 0; i-- {
		g.adapters[i] = adapter{prev: nilIx, next: nilIx, succPrev: nilIx, succNext: g.freeHead, predPrev: nilIx, predNext: nilIx}
		g.freeHead = int32(i)
	}
	for i := range g.vertices {
		g.vertices[i] = vertex{succHead: nilIx, predHead: nilIx}
	}
	g.live = 0
}

func (g *Graph) checkJob(job int32) {
	if job < 0 || int(job) >= len(g.vertices) {
		panic(errors.WithStackTrace(fmt.Errorf("depgraph: job index %d out of range [0,%d)", job, len(g.vertices))))
	}
}

// AddEdge records that prev must complete before next. It takes one adapter
// from the pool and links it at the head of both lists.
func (g *Graph) AddEdge(prev, next int32) (Edge, error) {
	g.checkJob(prev)
	g.checkJob(next)

	if g.freeHead == nilIx {
		return NoEdge, errors.ErrCapacityExceeded
	}

	ix := g.freeHead
	a := &g.adapters[ix]
	g.freeHead = a.succNext

	pv, nv := &g.vertices[prev], &g.vertices[next]
	*a = adapter{
		prev:     prev,
		next:     next,
		live:     true,
		succPrev: nilIx,
		succNext: pv.succHead,
		predPrev: nilIx,
		predNext: nv.predHead,
	}
	if pv.succHead != nilIx {
		g.adapters[pv.succHead].succPrev = ix
	}
	pv.succHead = ix
	pv.succCnt++

	if nv.predHead != nilIx {
		g.adapters[nv.predHead].predPrev = ix
	}
	nv.predHead = ix
	nv.predCnt++

	g.live++
	return Edge(ix), nil
}

// RemoveEdge unlinks e from both lists and returns its adapter to the pool.
func (g *Graph) RemoveEdge(e Edge) {
	if e < 0 || int(e) >= len(g.adapters) || !g.adapters[e].live {
		panic(errors.WithStackTrace(fmt.Errorf("depgraph: remove of unknown edge %d", e)))
	}

	ix := int32(e)
	a := &g.adapters[ix]
	pv, nv := &g.vertices[a.prev], &g.vertices[a.next]

	if a.succPrev != nilIx {
		g.adapters[a.succPrev].succNext = a.succNext
	} else {
		pv.succHead = a.succNext
	}
	if a.succNext != nilIx {
		g.adapters[a.succNext].succPrev = a.succPrev
	}
	pv.succCnt--

	if a.predPrev != nilIx {
		g.adapters[a.predPrev].predNext = a.predNext
	} else {
		nv.predHead = a.predNext
	}
	if a.predNext != nilIx {
		g.adapters[a.predNext].predPrev = a.predPrev
	}
	nv.predCnt--

	*a = adapter{prev: nilIx, next: nilIx, succPrev: nilIx, succNext: g.freeHead, predPrev: nilIx, predNext: nilIx}
	g.freeHead = ix
	g.live--
}

// FindEdge returns the edge prev -> next if it exists. It walks the shorter
// of the two lists involved.
func (g *Graph) FindEdge(prev, next int32) Edge {
	g.checkJob(prev)
	g.checkJob(next)

	if g.vertices[prev].succCnt <= g.vertices[next].predCnt {
		for ix := g.vertices[prev].succHead; ix != nilIx; ix = g.adapters[ix].succNext {
			if g.adapters[ix].next == next {
				return Edge(ix)
			}
		}
		return NoEdge
	}
	for ix := g.vertices[next].predHead; ix != nilIx; ix = g.adapters[ix].predNext {
		if g.adapters[ix].prev == prev {
			return Edge(ix)
		}
	}
	return NoEdge
}

// RemoveIncident removes every edge touching job. onRemove, when not nil, is
// called with the endpoints of each edge after it has been unlinked.
func (g *Graph) RemoveIncident(job int32, onRemove func(prev, next int32)) {
	g.checkJob(job)

	v := &g.vertices[job]
	for v.predHead != nilIx {
		a := g.adapters[v.predHead]
		g.RemoveEdge(Edge(v.predHead))
		if onRemove != nil {
			onRemove(a.prev, a.next)
		}
	}
	for v.succHead != nilIx {
		a := g.adapters[v.succHead]
		g.RemoveEdge(Edge(v.succHead))
		if onRemove != nil {
			onRemove(a.prev, a.next)
		}
	}
}

// PredCount returns the number of edges entering job.
func (g *Graph) PredCount(job int32) int {
	g.checkJob(job)
	return int(g.vertices[job].predCnt)
}

// SuccCount returns the number of edges leaving job.
func (g *Graph) SuccCount(job int32) int {
	g.checkJob(job)
	return int(g.vertices[job].succCnt)
}

// Len returns the number of live edges.
func (g *Graph) Len() int { return g.live }

// Cap returns the size of the adapter pool.
func (g *Graph) Cap() int { return len(g.adapters) }

// Free returns the number of unused adapters.
func (g *Graph) Free() int { return len(g.adapters) - g.live }

// Jobs returns the number of vertices the graph was sized for.
func (g *Graph) Jobs() int { return len(g.vertices) }

// Footprint returns the bytes a graph sized for maxJobs and maxEdges occupies.
func Footprint(maxJobs, maxEdges int) uintptr {
	return unsafe.Sizeof(Graph{}) +
		uintptr(maxEdges)*unsafe.Sizeof(adapter{}) +
		uintptr(maxJobs)*unsafe.Sizeof(vertex{})
}
