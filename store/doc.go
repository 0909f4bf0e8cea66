// Package store defines the persistence contract every user/token backend
// satisfies.
//
// # Contract
//
// A [Store] owns user records and the two single-use token slots attached to
// each record: email verification and password reset. Tokens are looked up
// by value through a secondary index that the adapter maintains in the same
// atomic step as the record write. Setting a token of one purpose replaces
// and unindexes the previous token of that purpose for the same user.
//
// Emails are passed through [NormalizeEmail] by every adapter before they
// are stored or looked up.
//
// Absence is reported as [ErrNotFound]; a second user with the same
// normalized email is rejected with [ErrDuplicateEmail].
//
// # Adapters
//
//   - store/memory: process-local reference implementation.
//   - store/postgres: database/sql over pgx with goose migrations.
//   - store/redisstore: JSON documents with WATCH/MULTI index maintenance.
//
// store/storetest holds the shared contract suite each adapter runs.
//
// # What this package must NOT do
//
//   - Hash passwords, generate tokens, or judge expiry; adapters persist
//     whatever the engine hands them.
package store
