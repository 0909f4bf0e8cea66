// Package session mints and verifies the signed session token handed to a
// browser after a successful login.
//
// Tokens are HS256 JWTs carrying the user id (sub), email and display name.
// Sessions are stateless: there is no server-side revocation list, so a
// token stays valid until it expires.
//
// # What this package must NOT do
//
//   - Authenticate credentials; it only signs identities the engine vouches for.
//   - Persist sessions.
package session
