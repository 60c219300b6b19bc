// Package posting holds food-donation listings.
package posting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

// Listings is the persistence the registry needs.
type Listings interface {
	CreateListing(ctx context.Context, l domain.Listing) error
	GetListing(ctx context.Context, id string) (domain.Listing, bool, error)
	ListListings(ctx context.Context) ([]domain.Listing, error)
	ListListingsByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error)
	UpdateListing(ctx context.Context, l domain.Listing) error
	DeleteListing(ctx context.Context, id string) error
}

// Patch is a partial listing update; nil fields are left unchanged.
type Patch struct {
	FoodName       *string
	ExpirationTime *time.Time
	Quantity       *int
}

// Registry manages listings.
type Registry struct {
	listings Listings
	now      func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(listings Listings, opts ...Option) *Registry {
	r := &Registry{listings: listings, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new listing authored by author.
func (r *Registry) Create(ctx context.Context, author, foodName string, expiration time.Time, quantity int) (domain.Listing, error) {
	foodName = strings.TrimSpace(foodName)
	if foodName == "" {
		return domain.Listing{}, domain.BadValues("Food name must be non-empty!")
	}
	if quantity <= 0 {
		return domain.Listing{}, domain.BadValues("Quantity must be positive!")
	}
	now := r.now().UTC()
	if err := r.assertFuture(expiration, now); err != nil {
		return domain.Listing{}, err
	}
	l := domain.Listing{
		ID:             domain.NewID(),
		AuthorID:       author,
		FoodName:       foodName,
		ExpirationTime: expiration.UTC(),
		Quantity:       quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.listings.CreateListing(ctx, l); err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	return l, nil
}

// Update applies p to listing id.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (domain.Listing, error) {
	l, err := r.Get(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	now := r.now().UTC()
	if p.FoodName != nil {
		name := strings.TrimSpace(*p.FoodName)
		if name == "" {
			return domain.Listing{}, domain.BadValues("Food name must be non-empty!")
		}
		l.FoodName = name
	}
	if p.ExpirationTime != nil {
		if err := r.assertFuture(*p.ExpirationTime, now); err != nil {
			return domain.Listing{}, err
		}
		l.ExpirationTime = p.ExpirationTime.UTC()
	}
	if p.Quantity != nil {
		if *p.Quantity <= 0 {
			return domain.Listing{}, domain.BadValues("Quantity must be positive!")
		}
		l.Quantity = *p.Quantity
	}
	l.UpdatedAt = now
	if err := r.listings.UpdateListing(ctx, l); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Listing{}, notFound()
		}
		return domain.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	return l, nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.listings.DeleteListing(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// Get returns a listing or NotFound.
func (r *Registry) Get(ctx context.Context, id string) (domain.Listing, error) {
	l, ok, err := r.listings.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if !ok {
		return domain.Listing{}, notFound()
	}
	return l, nil
}

// List returns all listings newest first.
func (r *Registry) List(ctx context.Context) ([]domain.Listing, error) {
	ls, err := r.listings.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return ls, nil
}

// ListByAuthor returns an author's listings, latest expiration first.
func (r *Registry) ListByAuthor(ctx context.Context, author string) ([]domain.Listing, error) {
	ls, err := r.listings.ListListingsByAuthor(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return ls, nil
}

// Expired reports whether l has expired at the current instant.
func (r *Registry) Expired(l domain.Listing) bool {
	return !l.ExpirationTime.After(r.now())
}

// IsExpired looks up id and reports whether it has expired.
func (r *Registry) IsExpired(ctx context.Context, id string) (bool, error) {
	l, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return r.Expired(l), nil
}

func (r *Registry) AssertNotExpired(ctx context.Context, id string) error {
	expired, err := r.IsExpired(ctx, id)
	if err != nil {
		return err
	}
	if expired {
		return domain.NotAllowed("Post is expired!")
	}
	return nil
}

// AssertAuthorIsUser fails unless user wrote listing id.
func (r *Registry) AssertAuthorIsUser(ctx context.Context, id, user string) error {
	l, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.AuthorID != user {
		return domain.Mismatch(domain.CodeAuthorMismatch, user, id, l.AuthorID)
	}
	return nil
}

func (r *Registry) assertFuture(expiration, now time.Time) error {
	if !expiration.After(now) {
		return domain.NotAllowed("Expiration time must be in the future!").WithCode(domain.CodeInvalidExpirationTime)
	}
	return nil
}

func notFound() error {
	return domain.NotFound("Post does not exist!")
}
