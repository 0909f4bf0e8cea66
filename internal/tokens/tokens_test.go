package tokens

import (
	"encoding/base64"
	"testing"
)

func TestGenerateProducesDistinctURLSafeTokens(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token not base64url: %v", err)
		}
		if len(raw) != Size {
			t.Fatalf("expected %d bytes, got %d", Size, len(raw))
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("abc")
	if len(a) != 8 {
		t.Fatalf("expected 8 chars, got %q", a)
	}
	// sha256("abc") = ba7816bf...
	if a != "ba7816bf" {
		t.Fatalf("unexpected fingerprint %q", a)
	}
	if Fingerprint("abc") != a {
		t.Fatal("fingerprint must be deterministic")
	}
	if Fingerprint("") != "" {
		t.Fatal("empty token should have empty fingerprint")
	}
}
