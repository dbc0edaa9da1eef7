package cache

import "context"

// Cache is a sharded, byte-budgeted object cache with pinned handles.
// All methods are safe for concurrent use by multiple goroutines.
//
// Entries are reference counted. The cache holds one reference on every
// entry it indexes and each outstanding Handle holds another. Only entries
// nobody else holds are evictable; an entry removed from the index while
// still held stays alive until its last Handle is released.
type Cache[V any] interface {
	// Insert adds key→value with the given charge and leaves it unpinned.
	// An existing entry for key is replaced. Under a strict capacity limit
	// Insert returns ErrCapacityExceeded when pinned entries leave no room;
	// deleter has then already been called for value. A nil deleter is allowed.
	Insert(key []byte, value V, charge uint64, deleter Deleter[V], pri Priority) error

	// InsertHandle is Insert that also returns the new entry pinned.
	// The handle must be released.
	InsertHandle(key []byte, value V, charge uint64, deleter Deleter[V], pri Priority) (*Handle[V], error)

	// Lookup returns a pinned handle for key, or nil on a miss.
	Lookup(key []byte) *Handle[V]

	// LookupOrLoad returns a pinned handle for key, loading it through
	// Options.Loader on a miss. Concurrent loads of one key are coalesced.
	LookupOrLoad(ctx context.Context, key []byte) (*Handle[V], error)

	// Ref adds a reference to a handle the caller already holds, so it can be
	// released independently. It returns false if h is not currently held.
	Ref(h *Handle[V]) bool

	// Release surrenders a reference. It returns true if that was the last
	// reference and the entry has been freed. A nil handle is a no-op.
	Release(h *Handle[V]) bool

	// ReleaseAndErase is Release that also removes the entry from the index
	// regardless of its position in the recency order.
	ReleaseAndErase(h *Handle[V]) bool

	// Erase removes key from the index. Held entries survive until released.
	Erase(key []byte)

	// SetCapacity changes the total byte budget and evicts to fit it.
	SetCapacity(capacity uint64)
	Capacity() uint64

	SetStrictCapacityLimit(strict bool)
	StrictCapacityLimit() bool

	// SetHighPriorityPoolRatio changes the reserved high-priority fraction.
	// It returns ErrInvalidRatio outside [0, 1].
	SetHighPriorityPoolRatio(ratio float64) error
	HighPriorityPoolRatio() float64

	// Usage returns the total charge of indexed entries.
	Usage() uint64
	// PinnedUsage returns the charge of indexed entries held by callers.
	PinnedUsage() uint64
	// HighPriorityPoolUsage returns the charge held in high-priority pools.
	HighPriorityPoolUsage() uint64
	// Len returns the number of indexed entries.
	Len() int

	// ApplyToAllEntries calls fn for every indexed entry, one shard at a
	// time under that shard's lock. fn must not call back into the cache.
	ApplyToAllEntries(fn func(key []byte, value V, charge uint64))

	// EraseUnreferencedEntries frees every entry no caller holds.
	EraseUnreferencedEntries()

	Stats() Stats

	// Close rejects further inserts and frees unreferenced entries.
	// Outstanding handles stay valid and must still be released; releasing
	// one after Close frees its entry.
	Close() error
}
