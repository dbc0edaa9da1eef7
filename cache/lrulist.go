package cache

// lruList is a circular doubly linked list of idle entries with a sentinel
// head: head.next is the oldest entry, head.prev the newest.
//
// The list is split in two regions by lowPri, which points at the newest
// low-priority entry (or at head when that region is empty):
//
//	head -> [oldest ... lowPri] [high-priority ... newest] -> head
//
// Must not be copied after init.
type lruList[V any] struct {
	head   entry[V]
	lowPri *entry[V]

	usage        uint64 // sum of charges in the list
	highPriUsage uint64 // sum of charges in the high-priority region
}

func (l *lruList[V]) init() {
	l.head.next = &l.head
	l.head.prev = &l.head
	l.lowPri = &l.head
}

func (l *lruList[V]) empty() bool { return l.head.next == &l.head }

// oldest returns the least recently released entry, or nil.
func (l *lruList[V]) oldest() *entry[V] {
	if l.empty() {
		return nil
	}
	return l.head.next
}

// insert makes e the newest entry of its region. With the pool enabled,
// high-priority entries and entries that have been hit go to the
// high-priority region; everything else goes to the low-priority region.
func (l *lruList[V]) insert(e *entry[V], poolEnabled bool) {
	if poolEnabled && (e.isHighPri() || e.hasHit()) {
		e.next = &l.head
		e.prev = l.head.prev
		e.setFlag(flagInHighPriPool, true)
		l.highPriUsage += e.charge
	} else {
		e.next = l.lowPri.next
		e.prev = l.lowPri
		e.setFlag(flagInHighPriPool, false)
		l.lowPri = e
	}
	e.prev.next = e
	e.next.prev = e
	l.usage += e.charge
}

func (l *lruList[V]) remove(e *entry[V]) {
	if l.lowPri == e {
		l.lowPri = e.prev
	}
	e.next.prev = e.prev
	e.prev.next = e.next
	e.prev, e.next = nil, nil
	l.usage -= e.charge
	if e.inHighPriPool() {
		l.highPriUsage -= e.charge
		e.setFlag(flagInHighPriPool, false)
	}
}

// maintainPoolSize demotes the oldest high-priority entries until the
// region fits capacity. Demotion moves the boundary; nothing is relinked.
func (l *lruList[V]) maintainPoolSize(capacity uint64) {
	for l.highPriUsage > capacity && l.lowPri.next != &l.head {
		l.lowPri = l.lowPri.next
		l.lowPri.setFlag(flagInHighPriPool, false)
		l.highPriUsage -= l.lowPri.charge
	}
}

// forEach visits entries from oldest to newest. fn must not mutate the list.
func (l *lruList[V]) forEach(fn func(e *entry[V])) {
	for e := l.head.next; e != &l.head; e = e.next {
		fn(e)
	}
}
