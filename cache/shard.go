package cache

import (
	"bytes"
	"sync"

	"github.com/IvanBrykalov/blockcache/internal/util"
)

// shard is an independent partition of the cache with its own lock, hash
// table, recency list and byte budget. Every operation holds mu for its full
// duration; deleters of freed entries run after mu is released.
type shard[V any] struct {
	// ---- guarded by mu ----
	mu    sync.Mutex
	table handleTable[V]
	lru   lruList[V]

	capacity            uint64
	usage               uint64 // charges of entries in the table
	strict              bool
	highPriPoolRatio    float64
	highPriPoolCapacity uint64
	closed              bool

	metrics Metrics

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_       util.CacheLinePad
	hits    util.PaddedAtomicUint64
	misses  util.PaddedAtomicUint64
	inserts util.PaddedAtomicUint64
	rejects util.PaddedAtomicUint64
	evicts  util.PaddedAtomicUint64
}

func newShard[V any](capacity uint64, strict bool, ratio float64, m Metrics) *shard[V] {
	s := &shard[V]{
		table:            newHandleTable[V](),
		capacity:         capacity,
		strict:           strict,
		highPriPoolRatio: ratio,
		metrics:          m,
	}
	s.lru.init()
	s.highPriPoolCapacity = poolCapacity(capacity, ratio)
	return s
}

func poolCapacity(capacity uint64, ratio float64) uint64 {
	return uint64(float64(capacity) * ratio)
}

// freeList collects entries whose last reference was dropped under the lock.
// It is threaded through nextHash, which is unused once an entry has left
// the table.
type freeList[V any] struct{ head *entry[V] }

func (f *freeList[V]) push(e *entry[V]) {
	e.nextHash = f.head
	f.head = e
}

// drain runs deleters; call it without holding the shard lock.
func (f *freeList[V]) drain() {
	for e := f.head; e != nil; {
		next := e.nextHash
		e.nextHash = nil
		e.free()
		e = next
	}
	f.head = nil
}

// insert admits a new entry for key, replacing any previous one. With
// wantHandle the caller receives the entry pinned; otherwise it goes
// straight to the recency list.
func (s *shard[V]) insert(
	key []byte, hash uint32, value V, charge uint64, deleter Deleter[V], pri Priority, wantHandle bool,
) (*entry[V], error) {
	e := &entry[V]{
		key:     bytes.Clone(key),
		hash:    hash,
		value:   value,
		deleter: deleter,
		charge:  charge,
		pri:     pri,
		refs:    1,
		flags:   flagInCache,
	}
	if wantHandle {
		e.refs = 2
	}

	var fl freeList[V]
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if old := s.table.remove(e.key, hash); old != nil {
		s.eraseLocked(old, EvictOverwrite, &fl)
	}
	s.evictToFitLocked(charge, &fl)

	if !s.fitsLocked(charge) && s.strict {
		e.flags, e.refs = 0, 0
		fl.push(e)
		s.rejects.Add(1)
		s.metrics.Reject()
		s.mu.Unlock()
		fl.drain()
		return nil, ErrCapacityExceeded
	}

	s.table.insert(e)
	s.usage += charge
	if !wantHandle {
		s.lru.insert(e, s.poolEnabledLocked())
		s.lru.maintainPoolSize(s.highPriPoolCapacity)
	}
	s.inserts.Add(1)
	s.metrics.Insert()
	s.mu.Unlock()
	fl.drain()

	if !wantHandle {
		return nil, nil
	}
	return e, nil
}

// lookup pins and returns the entry for key, or nil on a miss. Without
// record the hit/miss counters and the hit mark are left alone.
func (s *shard[V]) lookup(key []byte, hash uint32, record bool) *entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.table.lookup(key, hash)
	if e == nil {
		if record {
			s.misses.Add(1)
			s.metrics.Miss()
		}
		return nil
	}
	if e.idle() {
		s.lru.remove(e)
	}
	e.refs++
	if record {
		e.setFlag(flagHasHit, true)
		s.hits.Add(1)
		s.metrics.Hit()
	}
	return e
}

// ref adds a reference on behalf of a caller that already holds one.
// It reports false when no caller reference exists to clone.
func (s *shard[V]) ref(e *entry[V]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.refs == 0 || e.idle() {
		return false
	}
	e.refs++
	return true
}

// release drops one caller reference and reports whether the entry was
// freed. With forceErase the entry also leaves the index, so it is freed
// now or orphaned until its remaining holders release it.
func (s *shard[V]) release(e *entry[V], forceErase bool) bool {
	var fl freeList[V]
	s.mu.Lock()
	if e.refs == 0 || e.idle() {
		s.mu.Unlock()
		panic("cache: release of a handle that is not held")
	}
	if forceErase && e.inCache() {
		s.table.remove(e.key, e.hash)
		s.eraseLocked(e, EvictErase, &fl)
	}
	last := s.unrefLocked(e, &fl)
	if !last && e.idle() {
		s.lru.insert(e, s.poolEnabledLocked())
		s.lru.maintainPoolSize(s.highPriPoolCapacity)
		// a non-strict overshoot is settled as soon as entries become evictable
		s.evictToFitLocked(0, &fl)
		last = e.refs == 0
	}
	s.mu.Unlock()
	fl.drain()
	return last
}

// erase removes key from the index. Unpinned entries are freed; pinned
// ones become orphaned. No-op when key is absent.
func (s *shard[V]) erase(key []byte, hash uint32) {
	var fl freeList[V]
	s.mu.Lock()
	if e := s.table.remove(key, hash); e != nil {
		s.eraseLocked(e, EvictErase, &fl)
	}
	s.mu.Unlock()
	fl.drain()
}

func (s *shard[V]) setCapacity(capacity uint64) {
	var fl freeList[V]
	s.mu.Lock()
	s.capacity = capacity
	s.highPriPoolCapacity = poolCapacity(capacity, s.highPriPoolRatio)
	s.evictToFitLocked(0, &fl)
	s.lru.maintainPoolSize(s.highPriPoolCapacity)
	s.mu.Unlock()
	fl.drain()
}

func (s *shard[V]) setStrictCapacityLimit(strict bool) {
	s.mu.Lock()
	s.strict = strict
	s.mu.Unlock()
}

func (s *shard[V]) setHighPriorityPoolRatio(ratio float64) {
	s.mu.Lock()
	s.highPriPoolRatio = ratio
	s.highPriPoolCapacity = poolCapacity(s.capacity, ratio)
	s.lru.maintainPoolSize(s.highPriPoolCapacity)
	s.mu.Unlock()
}

// eraseUnreferencedEntries frees every idle entry. Pinned entries are not
// in the recency list and stay untouched.
func (s *shard[V]) eraseUnreferencedEntries() {
	var fl freeList[V]
	s.mu.Lock()
	s.eraseUnreferencedLocked(&fl)
	s.mu.Unlock()
	fl.drain()
}

// close refuses further inserts and frees every idle entry under one lock
// hold, so no insert can land after the sweep.
func (s *shard[V]) close() {
	var fl freeList[V]
	s.mu.Lock()
	s.closed = true
	s.eraseUnreferencedLocked(&fl)
	s.mu.Unlock()
	fl.drain()
}

// applyToAllEntries calls fn for every entry in the index, under the lock.
func (s *shard[V]) applyToAllEntries(fn func(key []byte, value V, charge uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.forEach(func(e *entry[V]) { fn(e.key, e.value, e.charge) })
}

func (s *shard[V]) getUsage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// getPinnedUsage returns the charges of cached entries held by callers,
// i.e. everything in the table that is not in the recency list.
func (s *shard[V]) getPinnedUsage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage - s.lru.usage
}

func (s *shard[V]) getCapacity() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func (s *shard[V]) getHighPriPoolUsage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.highPriUsage
}

func (s *shard[V]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.count()
}

// -------------------- internals (mu held) --------------------

func (s *shard[V]) poolEnabledLocked() bool { return s.highPriPoolRatio > 0 }

// fitsLocked reports whether charge more bytes stay within capacity.
func (s *shard[V]) fitsLocked(charge uint64) bool {
	return charge <= s.capacity && s.usage <= s.capacity-charge
}

// evictToFitLocked frees the oldest idle entries until charge fits or the
// recency list is empty.
func (s *shard[V]) evictToFitLocked(charge uint64, fl *freeList[V]) {
	for !s.fitsLocked(charge) {
		e := s.lru.oldest()
		if e == nil {
			return
		}
		s.table.remove(e.key, e.hash)
		s.eraseLocked(e, EvictCapacity, fl)
		s.evicts.Add(1)
	}
}

// eraseLocked takes an entry that was just unlinked from the table out of
// the cache: it leaves the recency list if idle and the cache's own
// reference is dropped.
func (s *shard[V]) eraseLocked(e *entry[V], reason EvictReason, fl *freeList[V]) {
	if e.idle() {
		s.lru.remove(e)
	}
	e.setFlag(flagInCache, false)
	s.usage -= e.charge
	s.metrics.Evict(reason)
	s.unrefLocked(e, fl)
}

func (s *shard[V]) eraseUnreferencedLocked(fl *freeList[V]) {
	for e := s.lru.oldest(); e != nil; e = s.lru.oldest() {
		s.table.remove(e.key, e.hash)
		s.eraseLocked(e, EvictErase, fl)
	}
}

// unrefLocked is the only place refs is decremented. An entry reaching zero
// is handed to fl for destruction.
func (s *shard[V]) unrefLocked(e *entry[V], fl *freeList[V]) bool {
	e.refs--
	if e.refs == 0 {
		fl.push(e)
		return true
	}
	return false
}
