// Package sessioning maps opaque session handles to logged-in users.
package sessioning

import (
	"fmt"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

// Holder wraps a session store with logged-in/logged-out preconditions.
type Holder struct {
	sessions store.SessionStore
}

func New(sessions store.SessionStore) *Holder {
	return &Holder{sessions: sessions}
}

// Start binds userID to a fresh handle. handle is the caller's current one,
// which must not already resolve.
func (h *Holder) Start(handle, userID string) (string, error) {
	if err := h.AssertLoggedOut(handle); err != nil {
		return "", err
	}
	next, err := h.sessions.NewSession(userID)
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	return next, nil
}

// End unbinds handle.
func (h *Holder) End(handle string) error {
	if _, err := h.User(handle); err != nil {
		return err
	}
	if err := h.sessions.DeleteSession(handle); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// User resolves handle to a user id.
func (h *Holder) User(handle string) (string, error) {
	if handle == "" {
		return "", loggedOut()
	}
	userID, ok, err := h.sessions.GetUserIDByToken(handle)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	if !ok {
		return "", loggedOut()
	}
	return userID, nil
}

// IsLoggedIn reports whether handle resolves to a user.
func (h *Holder) IsLoggedIn(handle string) (bool, error) {
	if handle == "" {
		return false, nil
	}
	_, ok, err := h.sessions.GetUserIDByToken(handle)
	if err != nil {
		return false, fmt.Errorf("resolve session: %w", err)
	}
	return ok, nil
}

// AssertLoggedOut fails when handle resolves to a user.
func (h *Holder) AssertLoggedOut(handle string) error {
	in, err := h.IsLoggedIn(handle)
	if err != nil {
		return err
	}
	if in {
		return domain.NotAllowed("You must be logged out!").WithCode(domain.CodeLoggedIn)
	}
	return nil
}

func loggedOut() error {
	return domain.NotAllowed("You must be logged in!").WithCode(domain.CodeLoggedOut)
}
