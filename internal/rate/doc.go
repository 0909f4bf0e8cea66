// Package rate provides the in-process fixed-window counter behind every
// rate-limited endpoint.
//
// # Window semantics
//
// Each (identifier, endpoint) key moves through Empty → Active(count,
// resetAt) → Expired. The first hit in a window creates the entry with
// count=1 and resetAt=now+window. Later hits increment until count reaches
// the limit; further hits are denied without touching the entry. An entry
// whose resetAt is at or before now is treated as absent.
//
// Expired entries are removed lazily: a sweep runs inside Check only when
// SweepInterval has elapsed since the previous sweep. No background
// goroutine is started.
//
// # What this package must NOT do
//
//   - Persist counters or share them across processes; state is lost on restart.
//   - Know endpoint names or policies (those live in internal/limiters).
package rate
