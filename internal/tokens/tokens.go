// Package tokens mints opaque single-use bearer tokens for verification and
// password-reset links.
//
// Tokens carry no structure; the only operation besides generation is
// [Fingerprint], which yields a short non-reversible tag safe for logs.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Size is the number of random bytes behind each token (256 bits).
const Size = 32

// Generate returns a base64url (unpadded) encoding of Size random bytes.
func Generate() (string, error) {
	var raw [Size]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Fingerprint returns the first 8 hex characters of SHA-256(token).
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
