package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}

	digest, err := h.Hash("Password123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if digest == "Password123" {
		t.Fatal("digest must not equal plaintext")
	}

	ok, err := h.Verify("Password123", digest)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("Password124", digest)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestBcryptSaltsEveryHash(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	a, _ := h.Hash("Password123")
	b, _ := h.Hash("Password123")
	if a == b {
		t.Fatal("expected distinct digests for identical input")
	}
}

func TestBcryptDefaultCost(t *testing.T) {
	h, err := NewBcrypt(0)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	if h.Cost() != DefaultBcryptCost {
		t.Fatalf("expected cost %d, got %d", DefaultBcryptCost, h.Cost())
	}
}

func TestBcryptRejectsInvalidCost(t *testing.T) {
	if _, err := NewBcrypt(99); err == nil {
		t.Fatal("expected error for cost 99")
	}
}

func TestBcryptMalformedDigest(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)
	ok, err := h.Verify("Password123", "not-a-digest")
	if err != nil || ok {
		t.Fatalf("expected silent mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestBcryptLongInputUsesEveryByte(t *testing.T) {
	h, _ := NewBcrypt(bcrypt.MinCost)

	long := strings.Repeat("a", 100) + "Z9"
	digest, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash failed for %d-byte input: %v", len(long), err)
	}
	ok, err := h.Verify(long, digest)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	// Same first 72 bytes, different tail.
	ok, err = h.Verify(strings.Repeat("a", 100)+"Z8", digest)
	if err != nil || ok {
		t.Fatalf("expected mismatch on differing tail, got ok=%v err=%v", ok, err)
	}
	if h.NeedsRehash(digest) {
		t.Fatal("fresh digest should not need rehash")
	}
}

func TestBcryptNeedsRehash(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	high, _ := NewBcrypt(bcrypt.MinCost + 1)

	digest, _ := low.Hash("Password123")
	if low.NeedsRehash(digest) {
		t.Fatal("same cost should not need rehash")
	}
	if !high.NeedsRehash(digest) {
		t.Fatal("higher configured cost should need rehash")
	}
	if !high.NeedsRehash("garbage") {
		t.Fatal("malformed digest should need rehash")
	}
}

func TestNewSelectsAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := h.(*Bcrypt); !ok {
		t.Fatalf("expected *Bcrypt, got %T", h)
	}

	cfg.Algorithm = AlgorithmArgon2
	h, err = New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := h.(*Argon2); !ok {
		t.Fatalf("expected *Argon2, got %T", h)
	}

	cfg.Algorithm = "scrypt"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
