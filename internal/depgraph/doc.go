// Package depgraph stores the ordering edges between jobs.
//
// # Layout
//
// Jobs are addressed by their job table index. Every edge `prev -> next` is one
// adapter taken from a fixed pool. An adapter sits in two lists at once: the
// successor list of prev and the predecessor list of next. Both lists are
// doubly linked through adapter indices, so an edge is unlinked in O(1) once
// its adapter index is known.
//
//	job prev                     job next
//	 succHead ──► [adapter e] ◄── predHead
//	              prev, next
//	              succ list links (siblings leaving prev)
//	              pred list links (siblings entering next)
//
// Unused adapters are chained through the same succ link field into a free
// list. The pool never grows: AddEdge fails with ErrCapacityExceeded once all
// adapters are in use.
//
// # Thread-Safety
//
// None. The graph is mutated and browsed by a single caller at a time; a
// Cursor is invalidated by any mutation of the list it is walking except the
// removal of the edge it just returned.
package depgraph
