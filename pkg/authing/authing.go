// Package authing is the user directory: accounts, roles and display names.
package authing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodshare/pkg/auth"
	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

// Users is the persistence the directory needs.
type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

// PasswordHasher turns passwords into stored values and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(stored, password string) bool
}

// Directory manages user accounts.
type Directory struct {
	users  Users
	hasher PasswordHasher
}

// New builds a Directory.
func New(users Users, hasher PasswordHasher) *Directory {
	return &Directory{users: users, hasher: hasher}
}

// Create registers a user and returns it with the password redacted.
func (d *Directory) Create(ctx context.Context, username, password, role, location string) (domain.User, error) {
	username = strings.TrimSpace(username)
	location = strings.TrimSpace(location)
	if username == "" || password == "" || strings.TrimSpace(role) == "" {
		return domain.User{}, domain.BadValues("Username, password, and role must be non-empty!")
	}
	if err := d.assertUsernameUnique(ctx, username); err != nil {
		return domain.User{}, err
	}
	parsed, ok := domain.ParseUserRole(role)
	if !ok {
		return domain.User{}, domain.BadValues("Role must be one of 'Recipient', 'Donor', or 'Volunteer'. Role %s is invalid.", role)
	}
	if parsed == domain.RoleDonor && location == "" {
		return domain.User{}, domain.BadValues("Location must be provided for Donor users!")
	}
	hashed, err := d.hash(password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:        domain.NewID(),
		Username:  username,
		Password:  hashed,
		Role:      parsed,
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, usernameTaken(username)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return redact(u), nil
}

// Authenticate returns the id of the user with matching credentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (string, error) {
	u, ok, err := d.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !d.hasher.Compare(u.Password, password) {
		return "", domain.NotAllowed("Username or password is incorrect.").WithCode(domain.CodeBadCredentials)
	}
	return u.ID, nil
}

// GetByID returns a redacted user.
func (d *Directory) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, err := d.get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return redact(u), nil
}

// GetByUsername returns a redacted user.
func (d *Directory) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	u, ok, err := d.users.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, domain.NotFound("User not found!")
	}
	return redact(u), nil
}

// List returns every user, or only the one named username when it is set.
func (d *Directory) List(ctx context.Context, username string) ([]domain.User, error) {
	if username != "" {
		u, ok, err := d.users.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		if !ok {
			return []domain.User{}, nil
		}
		return []domain.User{redact(u)}, nil
	}
	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = redact(users[i])
	}
	return users, nil
}

// IDsToUsernames resolves ids in order. Ids without an account map to
// domain.DeletedUsername.
func (d *Directory) IDsToUsernames(ctx context.Context, ids []string) ([]string, error) {
	users, err := d.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve usernames: %w", err)
	}
	byID := make(map[string]string, len(users))
	for _, u := range users {
		byID[u.ID] = u.Username
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		name, ok := byID[id]
		if !ok {
			name = domain.DeletedUsername
		}
		out[i] = name
	}
	return out, nil
}

// UpdateUsername renames a user.
func (d *Directory) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.BadValues("Username must be non-empty!")
	}
	u, err := d.get(ctx, id)
	if err != nil {
		return err
	}
	if err := d.assertUsernameUnique(ctx, username); err != nil {
		return err
	}
	u.Username = username
	if err := d.users.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return usernameTaken(username)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (d *Directory) hash(password string) (string, error) {
	hashed, err := d.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", domain.BadValues("Password must be at most %d bytes!", auth.MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}

// UpdatePassword replaces the password after checking the current one.
func (d *Directory) UpdatePassword(ctx context.Context, id, current, next string) error {
	u, ok, err := d.users.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.NotFound("User not found")
	}
	if !d.hasher.Compare(u.Password, current) {
		return domain.NotAllowed("The given current password is wrong!")
	}
	if next == "" {
		return domain.BadValues("New password must be non-empty!")
	}
	hashed, err := d.hash(next)
	if err != nil {
		return err
	}
	u.Password = hashed
	if err := d.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateLocation changes the user's address. Donors cannot clear it.
func (d *Directory) UpdateLocation(ctx context.Context, id, location string) error {
	u, err := d.get(ctx, id)
	if err != nil {
		return err
	}
	location = strings.TrimSpace(location)
	if u.Role == domain.RoleDonor && location == "" {
		return domain.BadValues("Location must be provided for Donor users!")
	}
	u.Location = location
	if err := d.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes the account. Records that reference it are kept.
func (d *Directory) Delete(ctx context.Context, id string) error {
	if err := d.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// AssertExists fails with NotFound when id has no account.
func (d *Directory) AssertExists(ctx context.Context, id string) error {
	_, err := d.get(ctx, id)
	return err
}

// AssertIsRole fails with NotAllowed unless the user has role.
func (d *Directory) AssertIsRole(ctx context.Context, id string, role domain.UserRole) error {
	u, err := d.get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != role {
		return domain.NotAllowed("User is not a %s!", role)
	}
	return nil
}

func (d *Directory) Role(ctx context.Context, id string) (domain.UserRole, error) {
	u, err := d.get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (d *Directory) Location(ctx context.Context, id string) (string, error) {
	u, err := d.get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Location, nil
}

func (d *Directory) get(ctx context.Context, id string) (domain.User, error) {
	u, ok, err := d.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, domain.NotFound("User not found!")
	}
	return u, nil
}

func (d *Directory) assertUsernameUnique(ctx context.Context, username string) error {
	_, taken, err := d.users.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if taken {
		return usernameTaken(username)
	}
	return nil
}

func usernameTaken(username string) *domain.Error {
	return domain.NotAllowed("User with username %s already exists!", username).WithCode(domain.CodeUsernameTaken)
}

func redact(u domain.User) domain.User {
	u.Password = ""
	return u
}
