package depgraph

// Direction selects which adjacency list a Cursor walks.
type Direction uint8

const (
	// Successors walks the edges leaving a job.
	Successors Direction = iota
	// Predecessors walks the edges entering a job.
	Predecessors
)

// Cursor is the browse state over one adjacency list. The zero value is
// exhausted; call Reset before use. A cursor may be restarted at any time and
// never yields more entries than the list holds.
type Cursor struct {
	g   *Graph
	dir Direction
	job int32
	cur int32
}

// Browse returns a cursor positioned at the head of the dir list of job.
func (g *Graph) Browse(job int32, dir Direction) Cursor {
	c := Cursor{g: g}
	c.Reset(job, dir)
	return c
}

// Reset rewinds the cursor to the head of the dir list of job.
func (c *Cursor) Reset(job int32, dir Direction) {
	c.g.checkJob(job)
	c.dir, c.job = dir, job
	if dir == Successors {
		c.cur = c.g.vertices[job].succHead
	} else {
		c.cur = c.g.vertices[job].predHead
	}
}

// Job returns the job whose list the cursor walks.
func (c *Cursor) Job() int32 { return c.job }

// Next returns the neighbour across the next edge and the edge itself. The
// returned edge may be removed before the following call to Next.
func (c *Cursor) Next() (neighbour int32, e Edge, ok bool) {
	if c.g == nil || c.cur == nilIx {
		return nilIx, NoEdge, false
	}

	ix := c.cur
	a := &c.g.adapters[ix]
	if c.dir == Successors {
		c.cur = a.succNext
		return a.next, Edge(ix), true
	}
	c.cur = a.predNext
	return a.prev, Edge(ix), true
}

// ForEachSuccessor calls fn for each job that job must precede, stopping when
// fn returns false.
func (g *Graph) ForEachSuccessor(job int32, fn func(next int32, e Edge) bool) {
	g.forEach(job, Successors, fn)
}

// ForEachPredecessor calls fn for each job that must precede job, stopping
// when fn returns false.
func (g *Graph) ForEachPredecessor(job int32, fn func(prev int32, e Edge) bool) {
	g.forEach(job, Predecessors, fn)
}

func (g *Graph) forEach(job int32, dir Direction, fn func(int32, Edge) bool) {
	c := g.Browse(job, dir)
	for {
		n, e, ok := c.Next()
		if !ok || !fn(n, e) {
			return
		}
	}
}
