package prom

import (
	"github.com/IvanBrykalov/blockcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	inserts prometheus.Counter
	rejects prometheus.Counter
	evicts  *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:    counter("hits_total", "Lookups that found the key"),
		misses:  counter("misses_total", "Lookups that missed"),
		inserts: counter("inserts_total", "Entries admitted into the cache"),
		rejects: counter("rejects_total", "Inserts refused by the strict capacity limit"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Entries removed from the index by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
	}
	// Pre-create label series so dashboards see zeros before the first event.
	for _, r := range []cache.EvictReason{cache.EvictCapacity, cache.EvictOverwrite, cache.EvictErase} {
		a.evicts.WithLabelValues(r.String())
	}
	reg.MustRegister(a.hits, a.misses, a.inserts, a.rejects, a.evicts)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

func (a *Adapter) Insert() { a.inserts.Inc() }

func (a *Adapter) Reject() { a.rejects.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

// UsageSource is the read side of a cache that RegisterUsage samples.
// Every cache.Cache[V] satisfies it.
type UsageSource interface {
	Usage() uint64
	PinnedUsage() uint64
	HighPriorityPoolUsage() uint64
	Capacity() uint64
	Len() int
}

// RegisterUsage exports gauges that read src at scrape time, so the cache
// hot path never touches them.
func RegisterUsage(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels, src UsageSource) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string, fn func() float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, fn)
	}
	reg.MustRegister(
		gauge("usage_bytes", "Total charge of indexed entries",
			func() float64 { return float64(src.Usage()) }),
		gauge("pinned_usage_bytes", "Charge of indexed entries held by callers",
			func() float64 { return float64(src.PinnedUsage()) }),
		gauge("high_pri_pool_usage_bytes", "Charge of idle entries in the high-priority pool",
			func() float64 { return float64(src.HighPriorityPoolUsage()) }),
		gauge("capacity_bytes", "Configured byte budget",
			func() float64 { return float64(src.Capacity()) }),
		gauge("entries", "Number of indexed entries",
			func() float64 { return float64(src.Len()) }),
	)
}
