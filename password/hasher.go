package password

import (
	"errors"
	"strings"
)

// Hasher is a one-way adaptive hash for password storage.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
	NeedsRehash(digest string) bool
}

// Algorithm selects a [Hasher] implementation.
type Algorithm string

const (
	AlgorithmBcrypt Algorithm = "bcrypt"
	AlgorithmArgon2 Algorithm = "argon2"
)

// Config selects and tunes the hasher built by [New].
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig returns bcrypt at cost 12 with Argon2 parameters prefilled
// for callers that switch algorithms.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2: Argon2Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// New builds the hasher named by cfg.Algorithm.
func New(cfg Config) (Hasher, error) {
	switch Algorithm(strings.ToLower(string(cfg.Algorithm))) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(cfg.BcryptCost)
	case AlgorithmArgon2:
		return NewArgon2(cfg.Argon2)
	default:
		return nil, errors.New("unsupported password algorithm")
	}
}
