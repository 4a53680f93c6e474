package walk

import (
	"testing"

	"github.com/specialistvlad/blockorder/internal/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds a graph over n jobs with the given edges.
func chain(t *testing.T, n int, edges ...[2]int32) *depgraph.Graph {
	t.Helper()
	g := depgraph.New(n, len(edges)+1)
	for _, e := range edges {
		_, err := g.AddEdge(e[0], e[1])
		require.NoError(t, err)
	}
	return g
}

func collect(e *Engine, start int32, mode Mode) []int32 {
	var seen []int32
	e.Walk(start, mode, func(job int32, _ int) Verdict {
		seen = append(seen, job)
		return Continue
	})
	return seen
}

func TestWalk_Directions(t *testing.T) {
	// 0 -> 1 -> 2, 3 -> 1
	g := chain(t, 4, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{3, 1})
	e := New(g)

	assert.Equal(t, []int32{0, 1, 2}, collect(e, 0, Fwd))
	assert.ElementsMatch(t, []int32{1, 0, 3}, collect(e, 1, Bwd))
	assert.ElementsMatch(t, []int32{0, 3}, collect(e, 1, Bwd|ExcludeFirst))
	assert.ElementsMatch(t, []int32{2, 1, 0, 3}, collect(e, 2, Fwd|Bwd))
	assert.Equal(t, []int32{2}, collect(e, 2, Fwd), "no successors")
}

func TestWalk_DefaultsToForward(t *testing.T) {
	g := chain(t, 2, [2]int32{0, 1})
	e := New(g)
	assert.Equal(t, []int32{1}, collect(e, 0, ExcludeFirst))
}

func TestWalk_VisitsEachJobOnce(t *testing.T) {
	// Diamond: 0 -> 1 -> 3, 0 -> 2 -> 3
	g := chain(t, 4, [2]int32{0, 1}, [2]int32{0, 2}, [2]int32{1, 3}, [2]int32{2, 3})
	e := New(g)

	counts := map[int32]int{}
	out := e.Walk(0, Fwd, func(job int32, _ int) Verdict {
		counts[job]++
		return Continue
	})
	assert.Equal(t, Exhausted, out)
	assert.Equal(t, map[int32]int{0: 1, 1: 1, 2: 1, 3: 1}, counts)
}

func TestWalk_Depth(t *testing.T) {
	g := chain(t, 3, [2]int32{0, 1}, [2]int32{1, 2})
	e := New(g)

	depths := map[int32]int{}
	e.Walk(0, Fwd, func(job int32, depth int) Verdict {
		depths[job] = depth
		return Continue
	})
	assert.Equal(t, map[int32]int{0: 0, 1: 1, 2: 2}, depths)
}

func TestWalk_Verdicts(t *testing.T) {
	// 0 -> 1 -> 2 -> 3
	g := chain(t, 4, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{2, 3})
	e := New(g)

	t.Run("drop prunes the branch", func(t *testing.T) {
		var seen []int32
		out := e.Walk(0, Fwd, func(job int32, _ int) Verdict {
			seen = append(seen, job)
			if job == 1 {
				return Drop
			}
			return Continue
		})
		assert.Equal(t, Exhausted, out)
		assert.Equal(t, []int32{0, 1}, seen)
	})

	t.Run("stop ends the walk", func(t *testing.T) {
		out := e.Walk(0, Fwd, func(job int32, _ int) Verdict {
			if job == 2 {
				return Stop
			}
			return Continue
		})
		assert.Equal(t, Stopped, out)
	})

	t.Run("cycle verdict aborts", func(t *testing.T) {
		out := e.Walk(0, Fwd, func(job int32, _ int) Verdict {
			if job == 1 {
				return Cycle
			}
			return Continue
		})
		assert.Equal(t, CycleFound, out)
	})

	t.Run("verdict on the start job", func(t *testing.T) {
		assert.Equal(t, Stopped, e.Walk(0, Fwd, func(int32, int) Verdict { return Stop }))
		assert.Equal(t, CycleFound, e.Walk(0, Fwd, func(int32, int) Verdict { return Cycle }))
		assert.Equal(t, Exhausted, e.Walk(0, Fwd, func(int32, int) Verdict { return Drop }))
	})
}

func TestWalk_TurnBackAllowsRejudging(t *testing.T) {
	// Two paths reach 3: 0 -> 1 -> 3 and 0 -> 2 -> 3.
	g := chain(t, 4, [2]int32{0, 1}, [2]int32{0, 2}, [2]int32{1, 3}, [2]int32{2, 3})
	e := New(g)

	judged := 0
	e.Walk(0, Fwd, func(job int32, _ int) Verdict {
		if job == 3 {
			judged++
			return TurnBack
		}
		return Continue
	})
	assert.Equal(t, 2, judged, "a turned back job is offered again from the other path")

	judged = 0
	e.Walk(0, Fwd, func(job int32, _ int) Verdict {
		if job == 3 {
			judged++
			return Drop
		}
		return Continue
	})
	assert.Equal(t, 1, judged, "a dropped job is resolved for the rest of the walk")
}

func TestWalk_BackEdgeIsCycle(t *testing.T) {
	// The graph itself holds a cycle 0 -> 1 -> 2 -> 0.
	g := chain(t, 3, [2]int32{0, 1}, [2]int32{1, 2}, [2]int32{2, 0})
	e := New(g)

	assert.Equal(t, CycleFound, e.Walk(0, Fwd, func(int32, int) Verdict { return Continue }))
	assert.Equal(t, CycleFound, e.Walk(1, Bwd, func(int32, int) Verdict { return Continue }))
	assert.Equal(t, Exhausted, e.Walk(0, Fwd|Bwd, func(int32, int) Verdict { return Continue }),
		"undirected walks do not report back edges")
}

func TestReaches(t *testing.T) {
	// 0 -> 1 -> 2, 3 isolated
	g := chain(t, 4, [2]int32{0, 1}, [2]int32{1, 2})
	e := New(g)

	assert.True(t, e.Reaches(0, 2, Fwd))
	assert.False(t, e.Reaches(2, 0, Fwd))
	assert.True(t, e.Reaches(2, 0, Bwd))
	assert.False(t, e.Reaches(0, 3, Fwd|Bwd))
	assert.False(t, e.Reaches(0, 0, Fwd), "the start job does not reach itself without a cycle")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "turn_back", TurnBack.String())
	assert.Equal(t, "unknown", Verdict(99).String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
