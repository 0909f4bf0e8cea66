package rate

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSweepInterval is the minimum gap between two sweeps of expired entries.
const DefaultSweepInterval = 5 * time.Minute

// Policy caps a key at Limit hits per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until ResetAt, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Stats exposes sweep activity for tuning.
type Stats struct {
	Entries      int
	Sweeps       uint64
	EntriesSwept uint64
	LastSweep    time.Time
}

// Config tunes a [Limiter]. Zero values select defaults.
type Config struct {
	SweepInterval time.Duration
	Now           func() time.Time
}

type key struct {
	identifier string
	endpoint   string
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a mutex-guarded fixed-window counter table. It is safe for
// concurrent use; check-and-increment is atomic per key.
type Limiter struct {
	mu        sync.Mutex
	entries   map[key]*entry
	lastSweep time.Time

	sweepInterval time.Duration
	now           func() time.Time

	sweeps       atomic.Uint64
	entriesSwept atomic.Uint64
}

// New creates an empty [Limiter].
func New(cfg Config) *Limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		entries:       make(map[key]*entry),
		sweepInterval: cfg.SweepInterval,
		now:           cfg.Now,
		lastSweep:     cfg.Now(),
	}
}

// Check records one hit for (identifier, endpoint) under p and reports
// whether it is allowed. A non-positive limit denies every request.
func (l *Limiter) Check(identifier, endpoint string, p Policy) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}

	k := key{identifier: identifier, endpoint: endpoint}
	e, ok := l.entries[k]
	if !ok || !now.Before(e.resetAt) {
		resetAt := now.Add(p.Window)
		if p.Limit <= 0 {
			return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
		}
		l.entries[k] = &entry{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: p.Limit - 1, ResetAt: resetAt}
	}

	if e.count >= p.Limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Result{Allowed: true, Remaining: p.Limit - e.count, ResetAt: e.resetAt}
}

// Reset drops the counter for (identifier, endpoint).
func (l *Limiter) Reset(identifier, endpoint string) {
	l.mu.Lock()
	delete(l.entries, key{identifier: identifier, endpoint: endpoint})
	l.mu.Unlock()
}

// Stats returns a point-in-time view of the table and sweep counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	n := len(l.entries)
	last := l.lastSweep
	l.mu.Unlock()

	return Stats{
		Entries:      n,
		Sweeps:       l.sweeps.Load(),
		EntriesSwept: l.entriesSwept.Load(),
		LastSweep:    last,
	}
}

func (l *Limiter) sweepLocked(now time.Time) {
	var removed uint64
	for k, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	l.lastSweep = now
	l.sweeps.Add(1)
	l.entriesSwept.Add(removed)
}
