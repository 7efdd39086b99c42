// README: Runner cases: environment checks, seeding, concurrent dispatch, invariants and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"pickup/internal/geo"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// filled by the seeding case
	center    geo.Point
	addressID string
	driverIDs []string
	assigned  []string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	// a random center keeps repeated runs from competing with old rows
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		center: geo.Point{Lat: -60 + rng.Float64()*120, Lng: -170 + rng.Float64()*340},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Seed: address and drivers", Run: seed},
		{Name: "Dispatch: address without coordinates is rejected", Run: dispatchWithoutCoordinates},
		{Name: "Concurrency: dispatch storm", Run: dispatchStorm},
		{Name: "Invariant: one active request per driver", Run: checkNoDoubleAssignment},
		{Name: "Lifecycle: complete releases drivers", Run: completeAll},
		{Name: "Perf: dispatch and complete throughput", Run: throughput},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: StatusSkip, Note: "redis not configured; ETA cache disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	var missing []string
	for _, table := range []string{"addresses", "drivers", "pickup_requests"} {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("missing tables %v; run pickup-api migrate", missing)}
	}
	return Result{Status: StatusPass}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, _, latency, err := r.call(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: StatusPass, Latency: latency}
}

func seed(ctx context.Context, r *Runner) Result {
	start := time.Now()
	status, body, _, err := r.call(ctx, http.MethodPost, "/addresses", map[string]any{
		"street": "Bench Street 1", "city": "Bench", "state": "Bench", "zip_code": "00000", "country": "Bench",
		"latitude": r.center.Lat, "longitude": r.center.Lng,
	})
	if err != nil || status != http.StatusCreated {
		return Result{Status: StatusFail, Note: fmt.Sprintf("create address: status=%d err=%v", status, err)}
	}
	r.addressID, _ = body["id"].(string)

	for i := 0; i < r.cfg.Drivers; i++ {
		status, body, _, err := r.call(ctx, http.MethodPost, "/drivers", map[string]any{
			"first_name": "Bench",
			"last_name":  fmt.Sprintf("Driver %d", i),
			"email":      fmt.Sprintf("bench-%s@example.com", uuid.NewString()),
			"phone":      "555-0100",
			"latitude":   r.center.Lat + 0.002*float64(i+1),
			"longitude":  r.center.Lng,
		})
		if err != nil || status != http.StatusCreated {
			return Result{Status: StatusFail, Note: fmt.Sprintf("create driver: status=%d err=%v", status, err)}
		}
		id, _ := body["id"].(string)
		r.driverIDs = append(r.driverIDs, id)
	}
	return Result{Status: StatusPass, Latency: time.Since(start), Note: fmt.Sprintf("drivers=%d at %s", len(r.driverIDs), r.center)}
}

func dispatchWithoutCoordinates(ctx context.Context, r *Runner) Result {
	status, body, _, err := r.call(ctx, http.MethodPost, "/addresses", map[string]any{
		"street": "Nowhere 0", "city": "Bench", "state": "Bench", "zip_code": "00000", "country": "Bench",
	})
	if err != nil || status != http.StatusCreated {
		return Result{Status: StatusFail, Note: fmt.Sprintf("create address: status=%d err=%v", status, err)}
	}
	status, _, latency, err := r.call(ctx, http.MethodPost, "/services", map[string]any{
		"customer_name": "Bench", "customer_phone": "555", "pickup_address_id": body["id"],
	})
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusBadRequest {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d, want 400", status)}
	}
	return Result{Status: StatusPass, Latency: latency}
}

func dispatchStorm(ctx context.Context, r *Runner) Result {
	if r.addressID == "" {
		return Result{Status: StatusSkip, Note: "seeding failed"}
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		latencies []time.Duration
		noDriver  int
		other     int
	)
	seen := map[string]int{}
	startGate := make(chan struct{})
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-startGate
			status, body, latency, err := r.call(ctx, http.MethodPost, "/services", map[string]any{
				"customer_name":     fmt.Sprintf("Bench Customer %d", i),
				"customer_phone":    "555-0199",
				"pickup_address_id": r.addressID,
			})
			mu.Lock()
			defer mu.Unlock()
			latencies = append(latencies, latency)
			switch {
			case err != nil:
				other++
			case status == http.StatusCreated:
				driverID, _ := body["driver_id"].(string)
				seen[driverID]++
				id, _ := body["id"].(string)
				r.assigned = append(r.assigned, id)
			case status == http.StatusNotFound && body["reason"] == "no_available_drivers":
				noDriver++
			default:
				other++
			}
		}(i)
	}
	close(startGate)
	wg.Wait()

	for id, n := range seen {
		if n > 1 {
			return Result{Status: StatusFail, Note: fmt.Sprintf("driver %s assigned %d times", id, n)}
		}
	}
	note := fmt.Sprintf("assigned=%d no_driver=%d other=%d p95=%s", len(seen), noDriver, other, percentile(latencies, 0.95))
	if other > 0 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

func checkNoDoubleAssignment(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "db not configured"}
	}
	rows, err := r.db.Query(ctx, `
		SELECT driver_id, COUNT(*)
		FROM pickup_requests
		WHERE status IN ('assigned', 'in_progress') AND driver_id IS NOT NULL
		GROUP BY driver_id
		HAVING COUNT(*) > 1`)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	defer rows.Close()
	var dupes []string
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		dupes = append(dupes, fmt.Sprintf("%s x%d", id, n))
	}
	if len(dupes) > 0 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("double assigned: %v", dupes)}
	}

	var stranded int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM drivers d
		WHERE d.id = ANY($1) AND d.status = 'in_service'
		  AND NOT EXISTS (
			SELECT 1 FROM pickup_requests p
			WHERE p.driver_id = d.id AND p.status IN ('assigned', 'in_progress'))`,
		r.driverIDs,
	).Scan(&stranded)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if stranded > 0 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("%d drivers in service without a request", stranded)}
	}
	return Result{Status: StatusPass}
}

func completeAll(ctx context.Context, r *Runner) Result {
	if len(r.assigned) == 0 {
		return Result{Status: StatusSkip, Note: "nothing assigned"}
	}
	for _, id := range r.assigned {
		status, _, _, err := r.call(ctx, http.MethodPost, "/services/"+id+"/complete", nil)
		if err != nil || status != http.StatusOK {
			return Result{Status: StatusFail, Note: fmt.Sprintf("complete %s: status=%d err=%v", id, status, err)}
		}
		// second call must be a no-op
		status, _, _, err = r.call(ctx, http.MethodPost, "/services/"+id+"/complete", nil)
		if err != nil || status != http.StatusOK {
			return Result{Status: StatusFail, Note: fmt.Sprintf("repeat complete %s: status=%d err=%v", id, status, err)}
		}
	}
	r.assigned = nil

	for _, id := range r.driverIDs {
		status, body, _, err := r.call(ctx, http.MethodGet, "/drivers/"+id, nil)
		if err != nil || status != http.StatusOK {
			return Result{Status: StatusFail, Note: fmt.Sprintf("get driver %s: status=%d err=%v", id, status, err)}
		}
		if body["status"] != "available" {
			return Result{Status: StatusFail, Note: fmt.Sprintf("driver %s is %v after completion", id, body["status"])}
		}
	}
	return Result{Status: StatusPass}
}

func throughput(ctx context.Context, r *Runner) Result {
	if r.addressID == "" {
		return Result{Status: StatusSkip, Note: "seeding failed"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		cycles    int
		errCount  int
		latencies []time.Duration
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, body, latency, err := r.call(ctx, http.MethodPost, "/services", map[string]any{
					"customer_name": "Bench Load", "customer_phone": "555", "pickup_address_id": r.addressID,
				})
				mu.Lock()
				latencies = append(latencies, latency)
				mu.Unlock()
				if err != nil || (status != http.StatusCreated && status != http.StatusNotFound) {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				if status != http.StatusCreated {
					continue
				}
				id, _ := body["id"].(string)
				if s, _, _, err := r.call(ctx, http.MethodPost, "/services/"+id+"/complete", nil); err != nil || s != http.StatusOK {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				mu.Lock()
				cycles++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if cycles == 0 {
		return Result{Status: StatusFail, Note: fmt.Sprintf("no dispatch completed, errors=%d", errCount)}
	}
	rate := float64(cycles) / r.cfg.Duration.Seconds()
	note := fmt.Sprintf("cycles/s=%.1f errors=%d p50=%s p95=%s",
		rate, errCount, percentile(latencies, 0.5), percentile(latencies, 0.95))
	if errCount > 0 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

func (r *Runner) call(ctx context.Context, method, path string, payload any) (int, map[string]any, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, time.Since(start), err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return resp.StatusCode, nil, latency, err
	}
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body, latency, nil
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
