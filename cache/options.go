package cache

import (
	"context"
	"log/slog"
)

// Priority selects the recency-list region an idle entry is placed in.
type Priority uint8

const (
	// PriorityLow entries are evicted first.
	PriorityLow Priority = iota
	// PriorityHigh entries are retained in the high-priority pool while it
	// has room (see Options.HighPriPoolRatio).
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// EvictReason explains why an entry left the cache index.
type EvictReason int

const (
	// EvictCapacity: oldest idle entry removed to make room.
	EvictCapacity EvictReason = iota
	// EvictOverwrite: replaced by an Insert of the same key.
	EvictOverwrite
	// EvictErase: removed by Erase, ReleaseAndErase or EraseUnreferencedEntries.
	EvictErase
)

func (r EvictReason) String() string {
	switch r {
	case EvictOverwrite:
		return "overwrite"
	case EvictErase:
		return "erase"
	default:
		return "capacity"
	}
}

// Metrics exposes cache-level observability hooks.
// Methods are called under a shard lock; keep them cheap.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Insert()
	Reject()
	Evict(reason EvictReason)
}

// Loader fetches a value on a LookupOrLoad miss and reports its charge.
type Loader[V any] func(ctx context.Context, key []byte) (value V, charge uint64, err error)

// Options configures the cache. Zero values are safe; defaults are applied
// in New():
//   - Shards <= 0  => auto (util.ReasonableShardCount), rounded up to a power of two
//   - nil Hash     => xxhash folded to 32 bits
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
type Options[V any] struct {
	// Capacity is the total byte budget, split evenly across shards.
	Capacity uint64

	// Shards is the number of independently locked shards.
	Shards int

	// StrictCapacityLimit rejects inserts that cannot be made to fit instead
	// of letting usage overshoot Capacity.
	StrictCapacityLimit bool

	// HighPriPoolRatio is the fraction of each shard's capacity reserved for
	// high-priority entries, in [0, 1]. Zero disables the pool.
	HighPriPoolRatio float64

	// Hash maps a key to its 32-bit digest. Top bits pick the shard, low
	// bits the hash bucket, so both ends must be well mixed.
	Hash func(key []byte) uint32

	// Loader, Deleter and LoadPriority are used by LookupOrLoad.
	Loader       Loader[V]
	Deleter      Deleter[V]
	LoadPriority Priority

	Metrics Metrics
	Logger  *slog.Logger
}
