// Package password implements one-way credential hashing for stored passwords.
//
// # Algorithms
//
// [Bcrypt] is the default, at cost 12 unless configured. [Argon2] produces
// Argon2id digests in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both satisfy [Hasher]. Verify reports a mismatch as (false, nil); an error
// is returned only when the stored digest cannot be interpreted at all.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes, entropy) is enforced by the engine before Hash is called.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other package of this module.
//   - Log plaintext passwords.
package password
