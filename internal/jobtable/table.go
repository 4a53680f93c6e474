// Package jobtable implements the fixed capacity table of job slots.
//
// The table owns job identity and payloads only. Dependency information lives
// in depgraph, keyed by the same slot index. Slots are recycled through a free
// list and every reuse bumps the slot generation so that handles issued to a
// previous occupant stop validating.
package jobtable

import (
	"unsafe"

	"github.com/specialistvlad/blockorder/internal/errors"
	"github.com/specialistvlad/blockorder/internal/jobid"
)

const noSlot int32 = -1

// Binding is the callback and argument a job was scheduled with. Fn is kept
// opaque here; the scheduler decides its concrete type.
type Binding struct {
	Fn  any
	Arg any
}

type slot struct {
	seq     uint64
	id      uint32
	live    bool
	data    any
	dbgData any
	binding Binding
	// nextFree links unused slots.
	nextFree int32
}

// Table is a fixed capacity array of job slots.
type Table struct {
	slots    []slot
	freeHead int32
	live     int
	nextSeq  uint64
}

// New allocates a table with room for capacity jobs. The table never grows.
func New(capacity int) *Table {
	t := &Table{slots: make([]slot, capacity)}
	t.Reset()
	return t
}

// Reset releases every slot. Generations keep increasing so handles issued
// before the reset remain invalid.
func (t *Table) Reset() {
	t.freeHead = noSlot
	for i := len(t.slots) - 1; i >= 0; i-- {
		s := &t.slots[i]
		if s.live {
			s.id++
		}
		s.live = false
		s.data, s.dbgData, s.binding = nil, nil, Binding{}
		s.nextFree = t.freeHead
		t.freeHead = int32(i)
	}
	t.live = 0
}

// Allocate takes the head of the free list.
func (t *Table) Allocate() (jobid.Handle, error) {
	if t.freeHead == noSlot {
		return jobid.Void, errors.ErrCapacityExceeded
	}

	idx := t.freeHead
	s := &t.slots[idx]
	t.freeHead = s.nextFree

	s.nextFree = noSlot
	s.live = true
	s.seq = t.nextSeq
	t.nextSeq++
	t.live++

	return jobid.Handle{Index: idx, ID: s.id}, nil
}

// Validate reports whether h refers to the current occupant of its slot.
func (t *Table) Validate(h jobid.Handle) bool {
	if h.Index < 0 || int(h.Index) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.Index]
	return s.live && s.id == h.ID
}

func (t *Table) lookup(h jobid.Handle) (*slot, error) {
	if !t.Validate(h) {
		return nil, errors.WithStackTraceAndPrefix(errors.ErrInvalidHandle, "%s", h)
	}
	return &t.slots[h.Index], nil
}

// Set stores the caller payloads of a freshly allocated job.
func (t *Table) Set(h jobid.Handle, data, dbgData any) error {
	s, err := t.lookup(h)
	if err != nil {
		return err
	}
	s.data, s.dbgData = data, dbgData
	return nil
}

// Get returns the caller payload of h.
func (t *Table) Get(h jobid.Handle) (any, error) {
	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.data, nil
}

// DbgGet returns the debug payload of h.
func (t *Table) DbgGet(h jobid.Handle) (any, error) {
	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.dbgData, nil
}

// Seq returns the sequence number assigned to h at allocation.
func (t *Table) Seq(h jobid.Handle) (uint64, error) {
	s, err := t.lookup(h)
	if err != nil {
		return 0, err
	}
	return s.seq, nil
}

// Bind replaces the exec binding of h.
func (t *Table) Bind(h jobid.Handle, fn, arg any) error {
	s, err := t.lookup(h)
	if err != nil {
		return err
	}
	s.binding = Binding{Fn: fn, Arg: arg}
	return nil
}

// BindingOf returns the exec binding of h.
func (t *Table) BindingOf(h jobid.Handle) (Binding, error) {
	s, err := t.lookup(h)
	if err != nil {
		return Binding{}, err
	}
	return s.binding, nil
}

// Release bumps the slot generation, clears the payloads and returns the slot
// to the free list. Releasing a handle that no longer validates is rejected.
func (t *Table) Release(h jobid.Handle) error {
	s, err := t.lookup(h)
	if err != nil {
		return err
	}

	s.id++
	s.live = false
	s.data, s.dbgData, s.binding = nil, nil, Binding{}
	s.nextFree = t.freeHead
	t.freeHead = h.Index
	t.live--
	return nil
}

// HandleAt returns the handle of the live job at idx.
func (t *Table) HandleAt(idx int32) (jobid.Handle, bool) {
	if idx < 0 || int(idx) >= len(t.slots) || !t.slots[idx].live {
		return jobid.Void, false
	}
	return jobid.Handle{Index: idx, ID: t.slots[idx].id}, true
}

// Live calls fn for every live job in index order until fn returns false.
func (t *Table) Live(fn func(h jobid.Handle) bool) {
	for i := range t.slots {
		if !t.slots[i].live {
			continue
		}
		if !fn(jobid.Handle{Index: int32(i), ID: t.slots[i].id}) {
			return
		}
	}
}

// Len returns the number of live jobs.
func (t *Table) Len() int { return t.live }

// Cap returns the table capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Footprint returns the bytes a table of the given capacity occupies.
func Footprint(capacity int) uintptr {
	return unsafe.Sizeof(Table{}) + uintptr(capacity)*unsafe.Sizeof(slot{})
}
