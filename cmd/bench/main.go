// Command bench runs a synthetic block-read workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/blockcache/cache"
	pmet "github.com/IvanBrykalov/blockcache/metrics/prom"
)

// block stands in for a decoded data block; only its charge matters.
type block struct{ id uint64 }

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(2)
	}
	log := newLogger(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("bench failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg config, log *slog.Logger) error {
	// ---- pprof server (on DefaultServeMux) ----
	if cfg.PprofAddr != "" {
		go func() {
			log.Info("pprof: serving", "addr", cfg.PprofAddr)
			log.Warn("pprof: stopped", "err", http.ListenAndServe(cfg.PprofAddr, nil))
		}()
	}

	// ---- Build cache ----
	reg := prometheus.NewRegistry()
	var freed atomic.Uint64
	c := cache.New[block](cache.Options[block]{
		Capacity:            cfg.Capacity,
		Shards:              cfg.Shards,
		StrictCapacityLimit: cfg.Strict,
		HighPriPoolRatio:    cfg.HighPriPoolRatio,
		Metrics:             pmet.New(reg, "blockcache", "bench", nil),
		Logger:              log,
	})
	defer func() { _ = c.Close() }()
	pmet.RegisterUsage(reg, "blockcache", "bench", nil, c)
	deleter := func([]byte, block) { freed.Add(1) }

	// ---- Prometheus metrics ----
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info("metrics: serving", "addr", cfg.MetricsAddr)
			log.Warn("metrics: stopped", "err", http.ListenAndServe(cfg.MetricsAddr, mux))
		}()
	}

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := cfg.Preload
	if pl == 0 {
		pl = cfg.Capacity / cfg.BlockSize / 2
	}
	if pl > cfg.Keys {
		pl = cfg.Keys
	}
	for i := uint64(0); i < pl; i++ {
		_ = c.Insert(blockKey(i), block{id: i}, cfg.BlockSize, deleter, cache.PriorityLow)
	}
	log.Info("preloaded", "blocks", pl, "usage", c.Usage())

	// ---- Load generation ----
	var reads, writes, rejects, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(cfg.Seed + int64(id)*9973))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, cfg.Keys-1)

			for ctx.Err() == nil {
				total.Add(1)
				n := zipf.Uint64()
				key := blockKey(n)

				if r.Intn(100) < cfg.ReadPct {
					reads.Add(1)
					if h := c.Lookup(key); h != nil {
						_ = h.Value()
						c.Release(h)
					}
					continue
				}

				writes.Add(1)
				pri := cache.PriorityLow
				if r.Intn(100) < cfg.HighPct {
					pri = cache.PriorityHigh
				}
				if r.Intn(100) < cfg.PinPct {
					h, err := c.InsertHandle(key, block{id: n}, cfg.BlockSize, deleter, pri)
					if err != nil {
						rejects.Add(1)
						continue
					}
					c.Release(h)
					continue
				}
				if err := c.Insert(key, block{id: n}, cfg.BlockSize, deleter, pri); err != nil {
					rejects.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	ops := total.Load()
	fmt.Printf("cap=%d shards=%d strict=%v ratio=%.2f workers=%d keys=%d block=%d dur=%v seed=%d\n",
		cfg.Capacity, cfg.Shards, cfg.Strict, cfg.HighPriPoolRatio, cfg.Workers, cfg.Keys, cfg.BlockSize, elapsed, cfg.Seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  rejects=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load(), rejects.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d  freed=%d\n",
		st.Hits, st.Misses, st.HitRate()*100, st.Evictions, freed.Load())
	fmt.Printf("Len()=%d  Usage()=%d  HighPriorityPoolUsage()=%d\n",
		c.Len(), c.Usage(), c.HighPriorityPoolUsage())
	return nil
}

func blockKey(n uint64) []byte {
	return strconv.AppendUint([]byte("blk:"), n, 10)
}
