package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by every hasher for passwords over MaxPasswordBytes,
// so swapping hashers never changes which passwords are accepted.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// BcryptHasher hashes passwords with bcrypt. A zero Cost uses bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// Compare reports whether password matches the stored hash.
func (h BcryptHasher) Compare(stored, password string) bool {
	if stored == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
	return err == nil
}

// PlainHasher stores passwords unchanged. Only meant for tests and local fixtures.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	return password, nil
}

func (PlainHasher) Compare(stored, password string) bool {
	return stored != "" && stored == password
}
