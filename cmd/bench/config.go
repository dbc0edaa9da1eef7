package main

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	flag "github.com/spf13/pflag"
)

// config is the bench workload. It is read from an optional TOML file and
// then overridden by any flag set explicitly on the command line.
type config struct {
	Capacity         uint64  `toml:"capacity"`
	Shards           int     `toml:"shards"`
	Strict           bool    `toml:"strict_capacity_limit"`
	HighPriPoolRatio float64 `toml:"high_pri_pool_ratio"`

	Workers  int      `toml:"workers"`
	Duration duration `toml:"duration"`
	ReadPct  int      `toml:"read_pct"`
	HighPct  int      `toml:"high_pri_pct"`
	PinPct   int      `toml:"pin_pct"`

	Keys      uint64  `toml:"keys"`
	BlockSize uint64  `toml:"block_size"`
	ZipfS     float64 `toml:"zipf_s"`
	ZipfV     float64 `toml:"zipf_v"`
	Seed      int64   `toml:"seed"`
	Preload   uint64  `toml:"preload"`

	PprofAddr   string `toml:"pprof_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// duration lets TOML files spell durations as "30s".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() config {
	return config{
		Capacity:         256 << 20,
		HighPriPoolRatio: 0.5,
		Workers:          2 * runtime.GOMAXPROCS(0),
		Duration:         duration{10 * time.Second},
		ReadPct:          80,
		HighPct:          10,
		PinPct:           5,
		Keys:             1_000_000,
		BlockSize:        4 << 10,
		ZipfS:            1.1,
		ZipfV:            1.0,
		Seed:             time.Now().UnixNano(),
		MetricsAddr:      ":8080",
		LogLevel:         "info",
	}
}

// loadConfig builds the effective config from args.
func loadConfig(args []string) (config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	path := fs.String("config", "", "TOML config file; flags set explicitly override it")
	fs.Uint64Var(&cfg.Capacity, "cap", cfg.Capacity, "cache capacity in bytes")
	fs.IntVar(&cfg.Shards, "shards", cfg.Shards, "number of shards (0=auto)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "reject inserts that cannot fit")
	fs.Float64Var(&cfg.HighPriPoolRatio, "high-pri-ratio", cfg.HighPriPoolRatio, "share of capacity reserved for high-priority entries")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "number of worker goroutines")
	fs.DurationVarP(&cfg.Duration.Duration, "duration", "d", cfg.Duration.Duration, "benchmark duration")
	fs.IntVar(&cfg.ReadPct, "reads", cfg.ReadPct, "read percentage [0..100]")
	fs.IntVar(&cfg.HighPct, "high", cfg.HighPct, "percentage of inserts with high priority")
	fs.IntVar(&cfg.PinPct, "pin", cfg.PinPct, "percentage of inserts that keep a handle for a moment")
	fs.Uint64Var(&cfg.Keys, "keys", cfg.Keys, "keyspace size")
	fs.Uint64Var(&cfg.BlockSize, "block", cfg.BlockSize, "charge per block in bytes")
	fs.Float64Var(&cfg.ZipfS, "zipf-s", cfg.ZipfS, "Zipf s > 1 (skew)")
	fs.Float64Var(&cfg.ZipfV, "zipf-v", cfg.ZipfV, "Zipf v >= 1")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fs.Uint64Var(&cfg.Preload, "preload", cfg.Preload, "blocks to preload (0 = half the capacity)")
	fs.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "serve pprof at addr (e.g. :6060); empty = disabled")
	fs.StringVar(&cfg.MetricsAddr, "http", cfg.MetricsAddr, "serve Prometheus metrics at addr; empty = disabled")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug | info | warn | error")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		fromFile := defaultConfig()
		md, err := toml.DecodeFile(*path, &fromFile)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", *path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config %s: unsupported key %q", *path, undecoded[0].String())
		}
		cfg = mergeFlags(fromFile, cfg, fs)
	}
	return cfg, cfg.validate()
}

// mergeFlags copies into base every field whose flag was set explicitly.
func mergeFlags(base, flags config, fs *flag.FlagSet) config {
	set := func(name string) bool { return fs.Changed(name) }
	if set("cap") {
		base.Capacity = flags.Capacity
	}
	if set("shards") {
		base.Shards = flags.Shards
	}
	if set("strict") {
		base.Strict = flags.Strict
	}
	if set("high-pri-ratio") {
		base.HighPriPoolRatio = flags.HighPriPoolRatio
	}
	if set("workers") {
		base.Workers = flags.Workers
	}
	if set("duration") {
		base.Duration = flags.Duration
	}
	if set("reads") {
		base.ReadPct = flags.ReadPct
	}
	if set("high") {
		base.HighPct = flags.HighPct
	}
	if set("pin") {
		base.PinPct = flags.PinPct
	}
	if set("keys") {
		base.Keys = flags.Keys
	}
	if set("block") {
		base.BlockSize = flags.BlockSize
	}
	if set("zipf-s") {
		base.ZipfS = flags.ZipfS
	}
	if set("zipf-v") {
		base.ZipfV = flags.ZipfV
	}
	if set("seed") {
		base.Seed = flags.Seed
	}
	if set("preload") {
		base.Preload = flags.Preload
	}
	if set("pprof") {
		base.PprofAddr = flags.PprofAddr
	}
	if set("http") {
		base.MetricsAddr = flags.MetricsAddr
	}
	if set("log-level") {
		base.LogLevel = flags.LogLevel
	}
	return base
}

func (c config) validate() error {
	var errs []error
	if c.ReadPct < 0 || c.ReadPct > 100 {
		errs = append(errs, fmt.Errorf("reads must be in [0,100], got %d", c.ReadPct))
	}
	if c.HighPct < 0 || c.HighPct > 100 {
		errs = append(errs, fmt.Errorf("high must be in [0,100], got %d", c.HighPct))
	}
	if c.PinPct < 0 || c.PinPct > 100 {
		errs = append(errs, fmt.Errorf("pin must be in [0,100], got %d", c.PinPct))
	}
	if c.HighPriPoolRatio < 0 || c.HighPriPoolRatio > 1 {
		errs = append(errs, fmt.Errorf("high-pri-ratio must be in [0,1], got %v", c.HighPriPoolRatio))
	}
	if c.ZipfS <= 1 || c.ZipfV < 1 {
		errs = append(errs, fmt.Errorf("zipf needs s > 1 and v >= 1, got s=%v v=%v", c.ZipfS, c.ZipfV))
	}
	if c.Keys == 0 || c.BlockSize == 0 {
		errs = append(errs, errors.New("keys and block must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	return errors.Join(errs...)
}
