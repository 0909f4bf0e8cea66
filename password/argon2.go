package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidDigest  = errors.New("invalid password digest")
	ErrInvalidArgon2  = errors.New("invalid argon2 configuration")
	ErrUnsupportedAlg = errors.New("unsupported argon2 variant")
)

// Argon2Config holds Argon2id tuning parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return fmt.Errorf("%w: memory below 8 MiB", ErrInvalidArgon2)
	case c.Time < 1:
		return fmt.Errorf("%w: time must be >= 1", ErrInvalidArgon2)
	case c.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrInvalidArgon2)
	case c.SaltLength < 16:
		return fmt.Errorf("%w: salt shorter than 16 bytes", ErrInvalidArgon2)
	case c.KeyLength < 16:
		return fmt.Errorf("%w: key shorter than 16 bytes", ErrInvalidArgon2)
	}
	return nil
}

// Argon2 hashes passwords with Argon2id and encodes results as PHC strings.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns an Argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a PHC-formatted argon2id digest with a fresh random salt.
func (a *Argon2) Hash(plaintext string) (string, error) {
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify recomputes the key with the digest's own parameters and compares in
// constant time. A malformed digest returns ErrInvalidDigest.
func (a *Argon2) Verify(plaintext, digest string) (bool, error) {
	p, err := parseDigest(digest)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsRehash reports whether digest was produced with weaker parameters than
// the hasher's current configuration.
func (a *Argon2) NeedsRehash(digest string) bool {
	p, err := parseDigest(digest)
	if err != nil {
		return true
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.salt)) < a.cfg.SaltLength ||
		uint32(len(p.key)) < a.cfg.KeyLength
}

type argon2Digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// parseDigest decodes "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func parseDigest(digest string) (argon2Digest, error) {
	var out argon2Digest
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return out, ErrInvalidDigest
	}
	if parts[1] != "argon2id" {
		return out, ErrUnsupportedAlg
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return out, ErrInvalidDigest
	}

	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return out, ErrInvalidDigest
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v == 0 {
				return out, ErrInvalidDigest
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v == 0 {
				return out, ErrInvalidDigest
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v == 0 {
				return out, ErrInvalidDigest
			}
			out.parallelism = uint8(v)
		default:
			return out, ErrInvalidDigest
		}
	}
	if out.memory == 0 || out.time == 0 || out.parallelism == 0 {
		return out, ErrInvalidDigest
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) == 0 {
		return out, ErrInvalidDigest
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return out, ErrInvalidDigest
	}
	return out, nil
}
