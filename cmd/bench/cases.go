// README: Bench cases: environment checks, the ride lifecycle over HTTP, accept races and location throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// rideID is the ride booked by the lifecycle cases.
	rideID string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency.Round(time.Millisecond))
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

var (
	connaught = map[string]any{"lat": 28.6139, "lng": 77.2090, "address": "Connaught Place"}
	noida     = map[string]any{"lat": 28.5355, "lng": 77.3910, "address": "Sector 18, Noida"}
)

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: postgres reachable", Run: checkPostgres},
		{Name: "Env: redis reachable", Run: checkRedis},
		{Name: "Schema: migration tables exist", Run: checkTables},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", "", nil, http.StatusOK)
		}},
		{Name: "API: missing token -> 401", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/rides", "", map[string]any{}, http.StatusUnauthorized)
		}},
		{Name: "Fare: estimate economy", Run: func(ctx context.Context, r *Runner) Result {
			return r.asRider(ctx, http.MethodPost, "/api/fares/estimate", map[string]any{"pickup": connaught, "drop": noida}, http.StatusOK)
		}},
		{Name: "Fare: unknown class -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.asRider(ctx, http.MethodPost, "/api/fares/estimate",
				map[string]any{"pickup": connaught, "drop": noida, "ride_class": "limo"}, http.StatusBadRequest)
		}},
		{Name: "Ride: book", Run: bookRide},
		{Name: "Ride: duplicate active -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.asRider(ctx, http.MethodPost, "/api/rides", bookBody(), http.StatusConflict)
		}},
		{Name: "Ride: accept", Run: func(ctx context.Context, r *Runner) Result {
			return r.asDriver(ctx, "/accept", nil, http.StatusOK)
		}},
		{Name: "Ride: second accept -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.asDriver(ctx, "/accept", nil, http.StatusConflict)
		}},
		{Name: "Ride: start", Run: func(ctx context.Context, r *Runner) Result {
			return r.asDriver(ctx, "/start", nil, http.StatusOK)
		}},
		{Name: "Ride: track", Run: func(ctx context.Context, r *Runner) Result {
			return r.asDriver(ctx, "/track", map[string]any{"lat": 28.58, "lng": 77.30}, http.StatusCreated)
		}},
		{Name: "Ride: complete", Run: func(ctx context.Context, r *Runner) Result {
			return r.asDriver(ctx, "/complete", nil, http.StatusOK)
		}},
		{Name: "Ride: cancel completed -> 409", Run: func(ctx context.Context, r *Runner) Result {
			if r.rideID == "" {
				return Result{Status: statusSkip, Note: "no ride booked"}
			}
			return r.asRider(ctx, http.MethodPost, "/api/rides/"+r.rideID+"/cancel", nil, http.StatusConflict)
		}},
		{Name: "Rating: rider rates driver", Run: func(ctx context.Context, r *Runner) Result {
			if r.rideID == "" {
				return Result{Status: statusSkip, Note: "no ride booked"}
			}
			return r.asRider(ctx, http.MethodPost, "/api/rides/"+r.rideID+"/rating", map[string]any{"rating": 5}, http.StatusCreated)
		}},
		{Name: "Concurrency: drivers race to accept one ride", Run: raceAccept},
		{Name: "Perf: driver location updates", Run: locationLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis address not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not set"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func bookBody() map[string]any {
	return map[string]any{"pickup": connaught, "drop": noida, "ride_class": "economy", "payment_method": "cash"}
}

// bookRide books the ride the lifecycle cases walk through.
func bookRide(ctx context.Context, r *Runner) Result {
	if r.cfg.RiderToken == "" {
		return Result{Status: statusSkip, Note: "rider token not set"}
	}
	var out struct {
		ID string `json:"id"`
	}
	status, latency, err := r.call(ctx, http.MethodPost, "/api/rides", r.cfg.RiderToken, bookBody(), &out)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	r.rideID = out.ID
	return Result{Status: statusPass, Latency: latency, Note: out.ID}
}

func (r *Runner) asRider(ctx context.Context, method, path string, body any, want int) Result {
	if r.cfg.RiderToken == "" {
		return Result{Status: statusSkip, Note: "rider token not set"}
	}
	return r.expect(ctx, method, path, r.cfg.RiderToken, body, want)
}

// asDriver posts to an action of the booked ride as the first configured driver.
func (r *Runner) asDriver(ctx context.Context, action string, body any, want int) Result {
	if len(r.cfg.DriverTokens) == 0 {
		return Result{Status: statusSkip, Note: "driver tokens not set"}
	}
	if r.rideID == "" {
		return Result{Status: statusSkip, Note: "no ride booked"}
	}
	return r.expect(ctx, http.MethodPost, "/api/rides/"+r.rideID+action, r.cfg.DriverTokens[0], body, want)
}

func (r *Runner) expect(ctx context.Context, method, path, token string, body any, want int) Result {
	status, latency, err := r.call(ctx, method, path, token, body, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
	}
	return Result{Status: statusPass, Latency: latency}
}

func (r *Runner) call(ctx context.Context, method, path, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

// raceAccept books a fresh ride and lets every configured driver accept it at once.
func raceAccept(ctx context.Context, r *Runner) Result {
	if r.cfg.RiderToken == "" || len(r.cfg.DriverTokens) < 2 {
		return Result{Status: statusSkip, Note: "needs a rider token and at least two driver tokens"}
	}
	if res := bookRide(ctx, r); res.Status != statusPass {
		return res
	}
	path := "/api/rides/" + r.rideID + "/accept"

	var wg sync.WaitGroup
	var ok, conflict, other atomic.Int64
	for _, token := range r.cfg.DriverTokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			status, _, err := r.call(ctx, http.MethodPost, path, token, nil, nil)
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusOK:
				ok.Add(1)
			case status == http.StatusConflict:
				conflict.Add(1)
			default:
				other.Add(1)
			}
		}(token)
	}
	wg.Wait()

	note := fmt.Sprintf("accepted=%d conflict=%d other=%d", ok.Load(), conflict.Load(), other.Load())
	_, _, _ = r.call(ctx, http.MethodPost, "/api/rides/"+r.rideID+"/cancel", r.cfg.RiderToken, map[string]any{"reason": "bench"}, nil)
	if ok.Load() != 1 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func locationLoad(ctx context.Context, r *Runner) Result {
	if len(r.cfg.DriverTokens) == 0 {
		return Result{Status: statusSkip, Note: "driver tokens not set"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		token := r.cfg.DriverTokens[i%len(r.cfg.DriverTokens)]
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; time.Now().Before(end) && ctx.Err() == nil; n++ {
				p := map[string]any{"lat": 28.60 + float64(n%100)*0.0001, "lng": 77.20 + float64(i)*0.0001}
				status, _, err := r.call(ctx, http.MethodPut, "/api/drivers/me/location", token, p, nil)
				if err != nil || status != http.StatusOK {
					failed.Add(1)
					continue
				}
				count.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no successful updates, errors=%d", failed.Load())}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, failed.Load())}
}

var createTable = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := createTable.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
