package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHashAndCompare(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !h.Compare(hash, "s3cret") {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if h.Compare(hash, "wrong") {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if h.Compare("", "s3cret") {
		t.Fatalf("empty stored hash must never match")
	}
}

func TestPlainHasher(t *testing.T) {
	var h PlainHasher
	stored, err := h.Hash("alice123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Compare(stored, "alice123") || h.Compare(stored, "alice") {
		t.Fatalf("plain compare mismatch")
	}
	if _, err := h.Hash(""); err == nil {
		t.Fatalf("expected empty password to fail")
	}
}

func TestHashersRejectOverlongPasswords(t *testing.T) {
	limit := strings.Repeat("p", MaxPasswordBytes)
	for name, h := range map[string]interface {
		Hash(string) (string, error)
	}{
		"bcrypt": BcryptHasher{Cost: bcrypt.MinCost},
		"plain":  PlainHasher{},
	} {
		if _, err := h.Hash(limit); err != nil {
			t.Fatalf("%s: %d bytes should hash: %v", name, MaxPasswordBytes, err)
		}
		if _, err := h.Hash(limit + "p"); !errors.Is(err, ErrPasswordTooLong) {
			t.Fatalf("%s: expected ErrPasswordTooLong, got %v", name, err)
		}
	}
}
