package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Insert()           {}
func (NoopMetrics) Reject()           {}
func (NoopMetrics) Evict(EvictReason) {}

var _ Metrics = NoopMetrics{}

// Stats is a point-in-time snapshot of cache counters summed over shards.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Rejects   uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
