package store

import (
	"context"
	"errors"

	"foodshare/pkg/domain"
)

var (
	// ErrDuplicate is returned when a write would violate a uniqueness rule
	// (username, one claim per listing, one delivery per claim).
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by updates and deletes addressed to a missing record.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence operations for every concept collection.
// Lookups return (value, found, err); absence is not an error.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error

	// listings
	CreateListing(ctx context.Context, l domain.Listing) error
	GetListing(ctx context.Context, id string) (domain.Listing, bool, error)
	ListListings(ctx context.Context) ([]domain.Listing, error)
	ListListingsByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error)
	UpdateListing(ctx context.Context, l domain.Listing) error
	DeleteListing(ctx context.Context, id string) error

	// claims
	CreateClaim(ctx context.Context, c domain.Claim) error
	GetClaim(ctx context.Context, id string) (domain.Claim, bool, error)
	GetClaimByListing(ctx context.Context, listingID string) (domain.Claim, bool, error)
	ListClaims(ctx context.Context) ([]domain.Claim, error)
	ListClaimsByClaimer(ctx context.Context, claimerID string) ([]domain.Claim, error)
	SetClaimStatus(ctx context.Context, id string, status domain.ClaimStatus) error
	DeleteClaim(ctx context.Context, id string) error

	// deliveries
	CreateDelivery(ctx context.Context, d domain.Delivery) error
	GetDelivery(ctx context.Context, id string) (domain.Delivery, bool, error)
	GetDeliveryByClaim(ctx context.Context, claimID string) (domain.Delivery, bool, error)
	ListDeliveries(ctx context.Context) ([]domain.Delivery, error)
	ListDeliveriesByDeliverer(ctx context.Context, delivererID string) ([]domain.Delivery, error)
	SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
	DeleteDelivery(ctx context.Context, id string) error
	DeleteDeliveriesByClaim(ctx context.Context, claimID string) error

	// messages
	CreateMessage(ctx context.Context, m domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
	ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, id string) error

	// tags
	GetTagSet(ctx context.Context, listingID string) (domain.TagSet, bool, error)
	SaveTagSet(ctx context.Context, t domain.TagSet) error
	ListTagSets(ctx context.Context) ([]domain.TagSet, error)
	DeleteTagSet(ctx context.Context, listingID string) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
