package scheduler

import "unsafe"

const nilJob int32 = -1

// orderList links every live job. Jobs with no pending predecessor form the
// sorted prefix [head .. readyEnd]; blocked jobs follow it. Links are job
// indices so the list shares the job table's fixed capacity.
type orderList struct {
	prev, next []int32
	ready      []bool
	inList     []bool
	head, tail int32
	readyEnd   int32
	readyCnt   int
}

func newOrderList(capacity int) orderList {
	l := orderList{
		prev:   make([]int32, capacity),
		next:   make([]int32, capacity),
		ready:  make([]bool, capacity),
		inList: make([]bool, capacity),
	}
	l.reset()
	return l
}

func listFootprint(capacity int) uintptr {
	return uintptr(capacity) * (2*unsafe.Sizeof(int32(0)) + 2*unsafe.Sizeof(false))
}

func (l *orderList) reset() {
	l.head, l.tail, l.readyEnd = nilJob, nilJob, nilJob
	l.readyCnt = 0
	for i := range l.prev {
		l.prev[i], l.next[i] = nilJob, nilJob
		l.ready[i], l.inList[i] = false, false
	}
}

// linkAfter inserts j after at, or at the head when at is nilJob.
func (l *orderList) linkAfter(at, j int32) {
	l.prev[j] = at
	if at == nilJob {
		l.next[j] = l.head
		l.head = j
	} else {
		l.next[j] = l.next[at]
		l.next[at] = j
	}
	if l.next[j] == nilJob {
		l.tail = j
	} else {
		l.prev[l.next[j]] = j
	}
	l.inList[j] = true
}

// pushReady appends j to the end of the ready prefix.
func (l *orderList) pushReady(j int32) {
	l.linkAfter(l.readyEnd, j)
	l.readyEnd = j
	l.ready[j] = true
	l.readyCnt++
}

// pushBlocked appends j to the end of the list.
func (l *orderList) pushBlocked(j int32) {
	l.linkAfter(l.tail, j)
	l.ready[j] = false
}

func (l *orderList) remove(j int32) {
	if !l.inList[j] {
		return
	}
	p, n := l.prev[j], l.next[j]
	if p == nilJob {
		l.head = n
	} else {
		l.next[p] = n
	}
	if n == nilJob {
		l.tail = p
	} else {
		l.prev[n] = p
	}
	if l.ready[j] {
		if l.readyEnd == j {
			l.readyEnd = p
		}
		l.readyCnt--
	}
	l.prev[j], l.next[j] = nilJob, nilJob
	l.ready[j], l.inList[j] = false, false
}

func (l *orderList) promote(j int32) {
	if l.ready[j] {
		return
	}
	l.remove(j)
	l.pushReady(j)
}

func (l *orderList) demote(j int32) {
	if !l.ready[j] {
		return
	}
	l.remove(j)
	l.pushBlocked(j)
}

func (l *orderList) isReady(j int32) bool { return l.ready[j] }

// front returns the oldest ready job.
func (l *orderList) front() (int32, bool) {
	if l.readyCnt == 0 {
		return nilJob, false
	}
	return l.head, true
}

// each calls fn in list order, ready prefix first, until fn returns false.
func (l *orderList) each(fn func(j int32, ready bool) bool) {
	for j := l.head; j != nilJob; j = l.next[j] {
		if !fn(j, l.ready[j]) {
			return
		}
	}
}
