// Command authload drives concurrent register, login and password-reset
// traffic through an Engine and reports latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	auth "github.com/Tadeu17/authentication-template"
	"github.com/Tadeu17/authentication-template/mail"
	prometheus "github.com/Tadeu17/authentication-template/metrics/export/prometheus"
	"github.com/Tadeu17/authentication-template/store"
	"github.com/Tadeu17/authentication-template/store/memory"
	"github.com/Tadeu17/authentication-template/store/redisstore"
)

const loadPassword = "Loadtest123"

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 5000, "operations per phase (login + reset)")
		backend     = flag.String("backend", "memory", "storage backend: memory|redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authload", "redis key prefix")
		bcryptCost  = flag.Int("bcrypt-cost", 4, "bcrypt cost for generated digests")
		limits      = flag.Bool("rate-limit", false, "keep per-IP rate limits enabled")
		metrics     = flag.Bool("metrics", false, "print Prometheus metrics after the run")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	st, cleanup, err := openStore(*backend, *redisAddr, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := auth.DefaultConfig()
	cfg.Password.Hasher.BcryptCost = *bcryptCost
	cfg.RateLimit.Enabled = *limits
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Mail.QueueSize = *users

	outbox := mail.NewRecorder()
	engine, err := auth.New().
		WithConfig(cfg).
		WithStore(st).
		WithMailer(outbox).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *users)
	for i := range emails {
		emails[i] = fmt.Sprintf("load-%d@example.com", i)
	}

	fmt.Printf("registering %d users...\n", *users)
	registerStats := runPhase(len(emails), *concurrency, func(_ *rand.Rand, i int) error {
		_, err := engine.Register(workerCtx(ctx, i), auth.RegisterRequest{Email: emails[i], Password: loadPassword})
		return err
	})

	fmt.Printf("verifying %d users...\n", *users)
	verifyStats := runPhase(len(emails), *concurrency, func(_ *rand.Rand, i int) error {
		token, err := awaitToken(outbox, emails[i], 10*time.Second)
		if err != nil {
			return err
		}
		return engine.ConfirmVerification(workerCtx(ctx, i), token)
	})

	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		_, err := engine.Login(workerCtx(ctx, i), emails[r.Intn(len(emails))], loadPassword)
		return err
	})

	resetStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		return engine.RequestPasswordReset(workerCtx(ctx, i), emails[r.Intn(len(emails))])
	})

	fmt.Println("---- results ----")
	printStats("register", registerStats)
	printStats("verify", verifyStats)
	printStats("login", loginStats)
	printStats("reset-request", resetStats)

	es := engine.EmailStats()
	fmt.Printf("emails: sent=%d failed=%d dropped=%d\n", es.Sent, es.Failed, es.Dropped)

	if *metrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(engine).Render())
	}
}

func openStore(backend, addr, prefix string) (store.Store, func(), error) {
	switch backend {
	case "memory":
		return memory.New(), func() {}, nil
	case "redis":
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}

	return redisstore.New(client, redisstore.Config{Prefix: prefix}), cleanup, nil
}

var linkToken = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

// awaitToken polls outbox until the verification email to addr arrives.
func awaitToken(outbox *mail.Recorder, addr string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if msg, ok := outbox.Last(addr); ok {
			if m := linkToken.FindStringSubmatch(msg.Text); m != nil {
				return m[1], nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no verification email for %s", addr)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// workerCtx spreads requests over a /16 of synthetic client addresses.
func workerCtx(ctx context.Context, i int) context.Context {
	return auth.WithClientIP(ctx, fmt.Sprintf("10.0.%d.%d", (i/256)%256, i%256))
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
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
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
