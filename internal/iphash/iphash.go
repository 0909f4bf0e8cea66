// Package iphash turns client addresses into salted one-way identifiers used
// as rate-limit keys.
//
// # What this package must NOT do
//
//   - Return or log raw client addresses.
//   - Fail a request because no address could be determined.
package iphash

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Unknown is the address used when no client IP can be determined.
const Unknown = "unknown"

// FallbackSalt is used when no salt is configured. It is rejected in
// production deployments.
const FallbackSalt = "development-only-ip-hash-salt"

// Hash returns hex(SHA-256(salt + ":" + ip)).
func Hash(ip, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + ip))
	return hex.EncodeToString(sum[:])
}

// ClientIP extracts the client address from r: the first X-Forwarded-For
// entry, then X-Real-IP, else [Unknown].
func ClientIP(r *http.Request) string {
	if r == nil {
		return Unknown
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	return Unknown
}
