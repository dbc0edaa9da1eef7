package cache

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/blockcache/internal/singleflight"
	"github.com/IvanBrykalov/blockcache/internal/util"
)

const maxShards = 1 << 16

// cache routes every key to one shard by the top bits of its hash.
// Ordering and capacity are enforced per shard only.
type cache[V any] struct {
	shards    []*shard[V]
	shardBits int
	hash      func([]byte) uint32
	closed    atomic.Bool

	opt Options[V]
	log *slog.Logger

	// cfgMu serializes capacity and ratio changes so shards are updated as a unit.
	cfgMu    sync.Mutex
	capacity uint64
	ratio    float64

	sf singleflight.Group[string, struct{}]
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Hash     -> xxhash folded to 32 bits
//   - nil Logger   -> discard
//   - Shards <= 0  -> auto, rounded up to the next power of two
//
// New panics if HighPriPoolRatio is outside [0, 1].
func New[V any](opt Options[V]) Cache[V] {
	if !validRatio(opt.HighPriPoolRatio) {
		panic("HighPriPoolRatio must be in [0, 1]")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Hash == nil {
		opt.Hash = util.Hash32
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	n := opt.Shards
	if n <= 0 {
		n = util.ReasonableShardCount(opt.Capacity)
	}
	if n > maxShards {
		n = maxShards
	}
	n = int(util.NextPow2(uint64(n)))

	c := &cache[V]{
		shards:    make([]*shard[V], n),
		shardBits: util.Log2(uint64(n)),
		hash:      opt.Hash,
		opt:       opt,
		log:       opt.Logger.With(slog.String("component", "blockcache")),
		capacity:  opt.Capacity,
		ratio:     opt.HighPriPoolRatio,
	}
	for i := range c.shards {
		c.shards[i] = newShard[V](c.shardCapacity(i, opt.Capacity), opt.StrictCapacityLimit, opt.HighPriPoolRatio, opt.Metrics)
	}

	c.log.Debug("cache created",
		slog.Uint64("capacity", opt.Capacity),
		slog.Int("shards", n),
		slog.Bool("strict", opt.StrictCapacityLimit),
		slog.Float64("high_pri_pool_ratio", opt.HighPriPoolRatio),
	)
	return c
}

// ---- Cache[V] implementation ----

func (c *cache[V]) Insert(key []byte, value V, charge uint64, deleter Deleter[V], pri Priority) error {
	_, err := c.insert(key, value, charge, deleter, pri, false)
	return err
}

func (c *cache[V]) InsertHandle(key []byte, value V, charge uint64, deleter Deleter[V], pri Priority) (*Handle[V], error) {
	e, err := c.insert(key, value, charge, deleter, pri, true)
	if err != nil {
		return nil, err
	}
	return (*Handle[V])(e), nil
}

// insert leaves value with the caller on ErrClosed; on ErrCapacityExceeded
// the shard has already run deleter. The early closed check is only a fast
// path; the shard re-checks under its lock.
func (c *cache[V]) insert(key []byte, value V, charge uint64, deleter Deleter[V], pri Priority, wantHandle bool) (*entry[V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	h := c.hash(key)
	e, err := c.shardFor(h).insert(key, h, value, charge, deleter, pri, wantHandle)
	if errors.Is(err, ErrCapacityExceeded) {
		c.log.Debug("insert rejected",
			slog.Int("key_len", len(key)),
			slog.Uint64("charge", charge),
			slog.String("priority", pri.String()),
		)
	}
	return e, err
}

func (c *cache[V]) Lookup(key []byte) *Handle[V] {
	if c.closed.Load() {
		return nil
	}
	return c.lookup(key, true)
}

// lookup pins key without the closed check; record=false leaves Stats and
// Metrics untouched for internal re-checks.
func (c *cache[V]) lookup(key []byte, record bool) *Handle[V] {
	h := c.hash(key)
	if e := c.shardFor(h).lookup(key, h, record); e != nil {
		return (*Handle[V])(e)
	}
	return nil
}

func (c *cache[V]) Ref(h *Handle[V]) bool {
	if h == nil {
		return false
	}
	return c.shardFor(h.hash).ref(h.entry())
}

// Release after Close erases the entry too, so late handles still drain.
func (c *cache[V]) Release(h *Handle[V]) bool {
	if h == nil {
		return false
	}
	return c.shardFor(h.hash).release(h.entry(), c.closed.Load())
}

func (c *cache[V]) ReleaseAndErase(h *Handle[V]) bool {
	if h == nil {
		return false
	}
	return c.shardFor(h.hash).release(h.entry(), true)
}

func (c *cache[V]) Erase(key []byte) {
	h := c.hash(key)
	c.shardFor(h).erase(key, h)
}

// SetCapacity splits capacity evenly across shards, shard 0 taking the
// remainder, and evicts each shard down to its new budget.
func (c *cache[V]) SetCapacity(capacity uint64) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	c.capacity = capacity
	for i, s := range c.shards {
		s.setCapacity(c.shardCapacity(i, capacity))
	}
	c.log.Debug("capacity changed", slog.Uint64("capacity", capacity))
}

func (c *cache[V]) Capacity() uint64 {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.capacity
}

func (c *cache[V]) SetStrictCapacityLimit(strict bool) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	c.opt.StrictCapacityLimit = strict
	for _, s := range c.shards {
		s.setStrictCapacityLimit(strict)
	}
	c.log.Debug("strict capacity limit changed", slog.Bool("strict", strict))
}

func (c *cache[V]) StrictCapacityLimit() bool {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.opt.StrictCapacityLimit
}

func (c *cache[V]) SetHighPriorityPoolRatio(ratio float64) error {
	if !validRatio(ratio) {
		return ErrInvalidRatio
	}
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	c.ratio = ratio
	for _, s := range c.shards {
		s.setHighPriorityPoolRatio(ratio)
	}
	c.log.Debug("high priority pool ratio changed", slog.Float64("ratio", ratio))
	return nil
}

func (c *cache[V]) HighPriorityPoolRatio() float64 {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	return c.ratio
}

func (c *cache[V]) Usage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.getUsage()
	}
	return total
}

func (c *cache[V]) PinnedUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.getPinnedUsage()
	}
	return total
}

func (c *cache[V]) HighPriorityPoolUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.getHighPriPoolUsage()
	}
	return total
}

func (c *cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.count()
	}
	return total
}

func (c *cache[V]) ApplyToAllEntries(fn func(key []byte, value V, charge uint64)) {
	for _, s := range c.shards {
		s.applyToAllEntries(fn)
	}
}

func (c *cache[V]) EraseUnreferencedEntries() {
	for _, s := range c.shards {
		s.eraseUnreferencedEntries()
	}
}

func (c *cache[V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Inserts += s.inserts.Load()
		st.Rejects += s.rejects.Load()
		st.Evictions += s.evicts.Load()
	}
	return st
}

// Close marks the cache closed and drops every unreferenced entry.
// Calling Close more than once is harmless.
func (c *cache[V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	for _, s := range c.shards {
		s.close()
	}
	c.log.Debug("cache closed",
		slog.Int("entries_left", c.Len()),
		slog.Uint64("pinned_usage", c.PinnedUsage()),
		slog.Int("loads_in_flight", c.sf.InFlight()),
	)
	return nil
}

// ---- helpers ----

func (c *cache[V]) shardFor(hash uint32) *shard[V] {
	return c.shards[util.ShardIndex(hash, c.shardBits)]
}

// shardCapacity returns shard i's share of capacity.
func (c *cache[V]) shardCapacity(i int, capacity uint64) uint64 {
	n := uint64(len(c.shards))
	per := capacity / n
	if i == 0 {
		per += capacity % n
	}
	return per
}

func validRatio(r float64) bool {
	return !math.IsNaN(r) && r >= 0 && r <= 1
}
