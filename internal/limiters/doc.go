// Package limiters binds named endpoints to fixed-window policies on top of
// the internal/rate counter table.
//
// # Endpoints
//
//   - [Register]: 5 per hour per client.
//   - [Login]: 10 per 15 minutes per client.
//   - [PasswordReset]: 5 per hour per client.
//   - [VerificationResend]: 3 per hour per client.
//   - [Generic]: 100 per minute per client, for everything else.
//
// The defaults above are overridable through [Policies].
//
// A nil *Set allows everything.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package except internal/rate.
//   - Decide what happens after a denial; flows map ErrRateLimited to a response.
package limiters
