package cache

// Deleter releases a value once its entry's last reference is gone.
// It runs exactly once per admitted (or rejected) entry, outside the shard lock.
type Deleter[V any] func(key []byte, value V)

const (
	flagInCache uint8 = 1 << iota
	flagInHighPriPool
	flagHasHit
)

// entry is one cached record. It is linked into two structures at once
// without extra allocations: the shard's hash table owns nextHash and the
// recency list owns prev/next.
//
// State is derived from refs and the in-cache bit:
//
//	refs > 1,  in cache   pinned: reachable by lookup, held by callers
//	refs == 1, in cache   idle: evictable, lives in the recency list
//	refs >= 1, !in cache  orphaned: only outstanding handles keep it alive
//
// refs counts the cache's own membership as one holder.
type entry[V any] struct {
	key     []byte
	value   V
	deleter Deleter[V]
	charge  uint64
	hash    uint32
	refs    uint32
	pri     Priority
	flags   uint8 // guarded by the shard lock

	nextHash *entry[V]

	// Recency list links; nil while the entry is not in the list.
	prev *entry[V]
	next *entry[V]
}

func (e *entry[V]) inCache() bool       { return e.flags&flagInCache != 0 }
func (e *entry[V]) isHighPri() bool     { return e.pri == PriorityHigh }
func (e *entry[V]) inHighPriPool() bool { return e.flags&flagInHighPriPool != 0 }
func (e *entry[V]) hasHit() bool        { return e.flags&flagHasHit != 0 }

func (e *entry[V]) setFlag(f uint8, on bool) {
	if on {
		e.flags |= f
	} else {
		e.flags &^= f
	}
}

// idle reports whether the entry sits in the recency list.
func (e *entry[V]) idle() bool { return e.refs == 1 && e.inCache() }

// free runs the value deleter. Called once, after refs reached zero and the
// shard lock was dropped.
func (e *entry[V]) free() {
	if e.deleter != nil {
		e.deleter(e.key, e.value)
	}
	var zero V
	e.value = zero
	e.deleter = nil
}

// Handle is a caller's pinned reference to a cached entry, returned by
// InsertHandle, Lookup and LookupOrLoad. Every handle must be surrendered
// exactly once with Release or ReleaseAndErase; using it afterwards is a bug.
//
// A Handle shares memory with the entry it refers to, so obtaining one
// costs no allocation.
type Handle[V any] entry[V]

func (h *Handle[V]) entry() *entry[V] { return (*entry[V])(h) }

// Key returns the entry key. The slice must not be modified.
func (h *Handle[V]) Key() []byte { return h.key }

// Value returns the cached value.
func (h *Handle[V]) Value() V { return h.value }

// Charge returns the bytes this entry counts against the cache budget.
func (h *Handle[V]) Charge() uint64 { return h.charge }

// Hash returns the 32-bit digest the entry was indexed under.
func (h *Handle[V]) Hash() uint32 { return h.hash }

// Priority returns the priority the entry was inserted with.
func (h *Handle[V]) Priority() Priority { return h.pri }
