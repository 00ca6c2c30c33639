package crypto

import (
	"bytes"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	salt, err := RandBytes(16)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	h := HashPassword([]byte("correct horse"), salt)
	if !VerifyPassword([]byte("correct horse"), salt, h) {
		t.Fatalf("verify should succeed for matching password")
	}
	if VerifyPassword([]byte("wrong"), salt, h) {
		t.Fatalf("verify should fail for wrong password")
	}
}

func TestHashDependsOnSalt(t *testing.T) {
	t.Parallel()

	h1 := HashPassword([]byte("pw"), []byte("salt-one........"))
	h2 := HashPassword([]byte("pw"), []byte("salt-two........"))
	if bytes.Equal(h1, h2) {
		t.Fatalf("different salts must produce different hashes")
	}
}

func TestRandBytesLength(t *testing.T) {
	t.Parallel()

	b, err := RandBytes(32)
	if err != nil || len(b) != 32 {
		t.Fatalf("RandBytes: len=%d err=%v", len(b), err)
	}
}
