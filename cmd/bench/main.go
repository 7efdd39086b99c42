// README: Load and consistency runner for a live pickup API; seeds data over HTTP, checks invariants in Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pickup/internal/config"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Strict      bool
	Timeout     time.Duration
	Drivers     int
	Concurrency int
	Duration    time.Duration
}

func loadConfig() Config {
	// service config supplies DSN and Redis defaults so the runner can share a .env
	svc, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("PICKUP_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", svc.DB.DSN, "Postgres DSN")
	flag.StringVar(&cfg.RedisAddr, "redis", svc.Redis.Addr, "Redis address (empty skips the cache check)")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("PICKUP_BENCH_STRICT", false), "Fail on skipped cases")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("PICKUP_BENCH_TIMEOUT", 2*time.Minute), "Total timeout")
	flag.IntVar(&cfg.Drivers, "drivers", envOrDefaultInt("PICKUP_BENCH_DRIVERS", 5), "Drivers seeded near the pickup")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("PICKUP_BENCH_CONCURRENCY", 20), "Concurrent dispatch requests")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("PICKUP_BENCH_DURATION", 10*time.Second), "Duration for the throughput case")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
