// Package flows contains the orchestrators behind every Engine operation.
//
// Each Run* function accepts a typed dependency struct and performs one
// account operation: register, login, verification request/confirm, or
// password-reset request/confirm. The Engine builds the dependency structs
// once and delegates to these functions.
//
// # Architecture boundaries
//
// Flows coordinate the store, the password hasher, the token generator,
// the rate limiter, and the mailer. They do NOT own any of these resources;
// ownership stays with the Engine. Public error values arrive through
// [Errors] so this package never imports the root package.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Log plaintext passwords or full tokens; use tokens.Fingerprint.
package flows
