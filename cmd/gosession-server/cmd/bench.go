package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keystore"
	"github.com/MrEthical07/goSession/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var benchOpts struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure validate and refresh throughput",
	Long: `Seed sessions, then run two phases against the engine:

  validate  tokens within the refresh interval, no cookie is rewritten
  refresh   the clock is moved past the refresh interval, every call re-signs

Every call consults the Redis revocation list and the Redis user cache.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchOpts.sessions, "sessions", 10000, "number of sessions to seed")
	benchCmd.Flags().IntVar(&benchOpts.concurrency, "concurrency", 64, "number of concurrent workers")
	benchCmd.Flags().IntVar(&benchOpts.ops, "ops", 100000, "operations per phase")
	benchCmd.Flags().StringVar(&benchOpts.redisAddr, "redis-addr", "", "redis address; miniredis when empty")
	rootCmd.AddCommand(benchCmd)
}

// benchClock is a wall clock with an adjustable offset.
type benchClock struct {
	offset atomic.Int64
}

func (c *benchClock) Now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

func (c *benchClock) Advance(d time.Duration) {
	c.offset.Add(int64(d))
}

func runBench(cmd *cobra.Command, _ []string) error {
	if benchOpts.sessions <= 0 || benchOpts.concurrency <= 0 || benchOpts.ops <= 0 {
		return fmt.Errorf("sessions, concurrency, and ops must be > 0")
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	addr := benchOpts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	keys, err := keystore.New(keystore.NewMemorySettings(nil))
	if err != nil {
		return err
	}
	if err := keys.Start(ctx); err != nil {
		return err
	}
	defer keys.Stop()

	users := userstore.NewMemory()
	cache, err := userstore.NewCache(users, client, userstore.CacheConfig{Prefix: "bench:user"})
	if err != nil {
		return err
	}

	clock := &benchClock{}
	cfg := goSession.DefaultConfig()
	cfg.Session.RedisPrefix = "bench"
	cfg.Audit.Enabled = false
	engine, err := goSession.New().
		WithConfig(cfg).
		WithKeySource(keys).
		WithUserProvider(cache).
		WithRedis(client).
		WithClock(clock.Now).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d sessions...\n", benchOpts.sessions)
	startSeed := time.Now()
	tokens := make([]string, benchOpts.sessions)
	for i := range tokens {
		login := fmt.Sprintf("user-%d", i)
		if _, err := users.Add(login); err != nil {
			return err
		}
		rec := httptest.NewRecorder()
		if err := engine.GenerateSession(ctx, rec, httptest.NewRequest(http.MethodPost, "/sessions/login", nil), login); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
		for _, c := range rec.Result().Cookies() {
			if c.Name == cfg.Cookie.SessionName {
				tokens[i] = c.Value
			}
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(ctx, engine, cfg.Cookie.SessionName, tokens, benchOpts.ops, benchOpts.concurrency)
	clock.Advance(cfg.Session.RefreshInterval + time.Second)
	refreshStats := runPhase(ctx, engine, cfg.Cookie.SessionName, tokens, benchOpts.ops, benchOpts.concurrency)

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validateStats)
	printStats(out, "refresh", refreshStats)
	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "refreshed=%d invalid=%d\n",
		snap.Counters[goSession.MetricSessionRefreshed],
		snap.Counters[goSession.MetricSessionInvalid],
	)
	return nil
}

func runPhase(ctx context.Context, engine *goSession.Engine, cookieName string, tokens []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
				req.AddCookie(&http.Cookie{Name: cookieName, Value: tokens[r.Intn(len(tokens))]})

				t0 := time.Now()
				res, err := engine.ValidateSession(ctx, httptest.NewRecorder(), req)
				d := time.Since(t0)
				if err != nil || !res.Authenticated() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
