// README: Smoke and load runner against a deployed ridehail API; prints one line per case and a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	results := NewRunner(cfg).RunAll(ctx)

	fmt.Println("\n== Summary ==")
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", counts[statusPass], counts[statusFail], counts[statusSkip])

	if counts[statusFail] > 0 || (cfg.Strict && counts[statusSkip] > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL       string
	DSN           string
	RedisAddr     string
	MigrationPath string
	RiderToken    string
	DriverTokens  []string
	AdminToken    string
	Strict        bool
	Timeout       time.Duration
	Concurrency   int
	Duration      time.Duration
}

func loadConfig() Config {
	var cfg Config
	var drivers string
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("RIDEHAIL_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("RIDEHAIL_DB_DSN", ""), "Postgres DSN; empty skips database checks")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("RIDEHAIL_REDIS_ADDR", ""), "Redis address; empty skips redis checks")
	flag.StringVar(&cfg.MigrationPath, "migration", envOrDefault("RIDEHAIL_BENCH_MIGRATION", "migrations/000001_init.up.sql"), "Migration whose tables must exist")
	flag.StringVar(&cfg.RiderToken, "rider-token", envOrDefault("RIDEHAIL_BENCH_RIDER_TOKEN", ""), "ID token of a rider account")
	flag.StringVar(&drivers, "driver-tokens", envOrDefault("RIDEHAIL_BENCH_DRIVER_TOKENS", ""), "Comma separated ID tokens of eligible drivers")
	flag.StringVar(&cfg.AdminToken, "admin-token", envOrDefault("RIDEHAIL_BENCH_ADMIN_TOKEN", ""), "ID token of an admin account")
	flag.BoolVar(&cfg.Strict, "strict", cast.ToBool(envOrDefault("RIDEHAIL_BENCH_STRICT", "false")), "Fail when cases are skipped")
	flag.DurationVar(&cfg.Timeout, "timeout", cast.ToDuration(envOrDefault("RIDEHAIL_BENCH_TIMEOUT", "2m")), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", cast.ToInt(envOrDefault("RIDEHAIL_BENCH_CONCURRENCY", "20")), "Workers for load cases")
	flag.DurationVar(&cfg.Duration, "duration", cast.ToDuration(envOrDefault("RIDEHAIL_BENCH_DURATION", "10s")), "Length of each load case")
	flag.Parse()

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, t := range strings.Split(drivers, ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.DriverTokens = append(cfg.DriverTokens, t)
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
