// Package cache provides a sharded, byte-budgeted object cache for storage
// engines: decoded data blocks, index blocks and other variable-size values
// that callers pin while they use them.
//
// Design
//
//   - Concurrency: the cache is split into a power-of-two number of shards,
//     each protected by one mutex. The shard is chosen by the top bits of a
//     32-bit key digest; the low bits pick the hash bucket inside the shard.
//     The default shard count comes from util.ReasonableShardCount.
//
//   - Index: each shard keeps an intrusive chained hash table. Chains are
//     linked through the entries themselves, so growing the table only
//     reallocates the bucket array. The table doubles once it holds more
//     entries than buckets.
//
//   - Recency: entries no caller holds sit in a circular LRU list split into
//     a low-priority and a high-priority region. High-priority inserts (and
//     entries that have been looked up before) land in the high region, which
//     is limited to HighPriPoolRatio of the shard capacity; overflow is
//     demoted into the low region by moving the boundary. Eviction takes the
//     oldest idle entry, which is low priority while that region has any;
//     once it drains, the oldest high-priority entry goes next.
//
//   - Lifecycle: every entry is reference counted. The index holds one
//     reference and each Handle holds another. Pinned entries are never
//     evicted; an entry erased or overwritten while pinned is orphaned and
//     freed when its last Handle is released. Deleters run exactly once,
//     outside the shard lock.
//
//   - Capacity: Usage is the total charge of indexed entries. Without
//     StrictCapacityLimit an insert that cannot be made to fit is admitted
//     and usage overshoots until pinned entries are released; with it the
//     insert fails with ErrCapacityExceeded.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Insert/Reject/Evict signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New[[]byte](cache.Options[[]byte]{
//	    Capacity:         64 << 20,
//	    HighPriPoolRatio: 0.5,
//	})
//	defer c.Close()
//
//	h, err := c.InsertHandle(key, block, uint64(len(block)), nil, cache.PriorityLow)
//	if err != nil {
//	    return err
//	}
//	use(h.Value())
//	c.Release(h)
//
//	if h := c.Lookup(key); h != nil {
//	    use(h.Value())
//	    c.Release(h)
//	}
//
// With LookupOrLoad
//
//	c := cache.New[[]byte](cache.Options[[]byte]{
//	    Capacity: 64 << 20,
//	    Loader: func(ctx context.Context, key []byte) ([]byte, uint64, error) {
//	        b, err := readBlock(ctx, key)
//	        return b, uint64(len(b)), err
//	    },
//	})
//	h, err := c.LookupOrLoad(ctx, key)
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Lookup, Insert, Release
// and Erase cost amortized O(1) plus O(k) for k entries evicted. Handles may
// be passed between goroutines but each reference must be released once.
package cache
