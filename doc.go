// Package auth provides a credential authentication engine: registration,
// login, email verification and password reset over a pluggable user store,
// with per-client fixed-window rate limiting.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// auth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([User], [Identity], [RateLimitResult], [MetricsSnapshot]).
// Flow orchestration, rate limiting, token generation and client address
// hashing live under internal/ and are never exported. Persistence is
// supplied by the caller through the store package; outbound email through
// the mail package.
//
// # What this package must NOT do
//
//   - Mint or revoke sessions. Login returns an [Identity]; the caller hands
//     it to the session package.
//   - Log plaintext passwords, full tokens or raw client addresses.
//   - Hold package-level mutable state. Everything is owned by an Engine.
//   - Retry failed store or mail calls.
package auth
