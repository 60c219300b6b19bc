package app

import (
	"context"
	"strings"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
)

// Login authenticates the credentials and binds a fresh session handle.
// handle is the client's current handle, which must not be logged in.
func (a *App) Login(ctx context.Context, handle, username, password string) (string, error) {
	userID, err := a.users.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return a.sessions.Start(handle, userID)
}

// Logout ends the session behind handle.
func (a *App) Logout(_ context.Context, handle string) error {
	return a.sessions.End(handle)
}

// SessionUser returns the account of the logged-in caller.
func (a *App) SessionUser(ctx context.Context, c Caller) (domain.User, error) {
	return a.users.GetByID(ctx, c.UserID)
}

// Register creates an account. Only logged-out clients may register.
func (a *App) Register(ctx context.Context, handle, username, password, role, location string) (domain.User, error) {
	if err := a.sessions.AssertLoggedOut(handle); err != nil {
		return domain.User{}, err
	}
	u, err := a.users.Create(ctx, username, password, role, location)
	if err != nil {
		return domain.User{}, err
	}
	a.publish(ctx, events.UserRegistered, u.ID, u.ID, map[string]string{"role": string(u.Role)})
	return u, nil
}

func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	return a.users.List(ctx, "")
}

func (a *App) GetUser(ctx context.Context, username string) (domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return domain.User{}, domain.BadValues("Username must be non-empty!")
	}
	return a.users.GetByUsername(ctx, username)
}

func (a *App) UserRole(ctx context.Context, c Caller) (domain.UserRole, error) {
	return a.users.Role(ctx, c.UserID)
}

func (a *App) UpdateUsername(ctx context.Context, c Caller, username string) error {
	return a.users.UpdateUsername(ctx, c.UserID, username)
}

func (a *App) UpdatePassword(ctx context.Context, c Caller, current, next string) error {
	return a.users.UpdatePassword(ctx, c.UserID, current, next)
}

func (a *App) UpdateLocation(ctx context.Context, c Caller, location string) error {
	return a.users.UpdateLocation(ctx, c.UserID, location)
}

// DeleteAccount ends the caller's session and removes the account. Records
// that reference the user are kept and later render as DELETED_USER.
func (a *App) DeleteAccount(ctx context.Context, c Caller) error {
	if err := a.sessions.End(c.Handle); err != nil {
		return err
	}
	if err := a.users.Delete(ctx, c.UserID); err != nil {
		return err
	}
	a.publish(ctx, events.UserDeleted, c.UserID, c.UserID, nil)
	return nil
}
