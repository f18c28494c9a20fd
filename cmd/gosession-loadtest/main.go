// Command gosession-loadtest measures refresh coalescing under load.
//
// It starts the reference service in-process, signs in a number of clients,
// and then repeatedly expires every access token and fires bursts of
// concurrent authenticated requests. Ideally each client performs exactly one
// refresh per round no matter how many requests hit the expired token.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/authserver"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/password"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func main() {
	var (
		clients     = flag.Int("clients", 20, "number of signed-in clients")
		concurrency = flag.Int("concurrency", 16, "concurrent requests per client per round")
		rounds      = flag.Int("rounds", 5, "number of expiry rounds")
		rps         = flag.Float64("rps", 0, "global request rate limit; 0 disables pacing")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	clk := &clock{now: time.Now()}
	cfg := authserver.DefaultConfig()
	cfg.JWTAccessSecret = "loadtest-secret-0123456789abcdef"
	cfg.AccessTTL = time.Minute
	cfg.Limits.EnableRefreshThrottle = false
	cfg.Password = password.Config{
		Memory:           8 * 1024,
		Time:             1,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: password.DefaultMaxPasswordBytes,
	}

	srv, err := authserver.New(authserver.Options{
		Config: cfg,
		Redis:  rdb,
		Logger: logging.Discard(),
		Now:    clk.Now,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build service: %v\n", err)
		os.Exit(1)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	fmt.Printf("signing in %d clients...\n", *clients)
	startSeed := time.Now()
	sessions := make([]*goSession.Client, *clients)
	for i := range sessions {
		c, err := signIn(ctx, ts.URL+"/api", i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "client %d: %v\n", i, err)
			os.Exit(1)
		}
		defer c.Close()
		sessions[i] = c
	}
	fmt.Printf("signed in in %s\n", time.Since(startSeed).Round(time.Millisecond))

	limit := rate.Inf
	if *rps > 0 {
		limit = rate.Limit(*rps)
	}
	limiter := rate.NewLimiter(limit, *concurrency)

	var (
		failures  int64
		latencies = make([]time.Duration, 0, *clients**concurrency**rounds)
		mu        sync.Mutex
	)

	start := time.Now()
	for round := 0; round < *rounds; round++ {
		clk.Advance(cfg.AccessTTL + time.Second)

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range sessions {
			for j := 0; j < *concurrency; j++ {
				g.Go(func() error {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
					t0 := time.Now()
					status, err := getProfile(gctx, c)
					d := time.Since(t0)
					if err != nil || status != http.StatusOK {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "round %d: %v\n", round, err)
			os.Exit(1)
		}
	}
	total := time.Since(start)

	var refreshes, queued uint64
	for _, c := range sessions {
		st := c.RefreshStats()
		refreshes += st.Started
		queued += st.Queued
	}

	fmt.Println("---- results ----")
	printStats("requests", computeStats(total, latencies, failures))
	fmt.Printf("refreshes: issued=%d ideal=%d queued=%d\n", refreshes, *clients**rounds, queued)
}

func signIn(ctx context.Context, baseURL string, i int) (*goSession.Client, error) {
	cfg := goSession.DefaultConfig()
	cfg.BaseURL = baseURL
	c, err := goSession.New().WithConfig(cfg).WithLogger(logging.Discard()).Build()
	if err != nil {
		return nil, err
	}

	email := fmt.Sprintf("load-%d@example.com", i)
	if _, err := c.Register(ctx, email, "loadtest-password"); err != nil {
		c.Close()
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := c.Login(ctx, email, "loadtest-password"); err != nil {
		c.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

func getProfile(ctx context.Context, c *goSession.Client) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/user/profile"), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
