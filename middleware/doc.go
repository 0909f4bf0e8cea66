// Package middleware holds the HTTP-facing session gate.
//
// # Gate
//
// [Decide] is the pure routing decision: given a path and whether the
// request carries a valid session, it either allows the request or names a
// redirect target. [Gate] wraps it for page routes; [Guard] rejects API
// requests without a valid session with 401.
//
// Sessions are read from the session cookie first, then from an
// "Authorization: Bearer" header.
//
// # What this package must NOT do
//
//   - Mint sessions or check credentials.
//   - Touch storage.
package middleware
