// Package claiming tracks recipients' claims on listings.
package claiming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

// Claims is the persistence the tracker needs.
type Claims interface {
	CreateClaim(ctx context.Context, c domain.Claim) error
	GetClaim(ctx context.Context, id string) (domain.Claim, bool, error)
	GetClaimByListing(ctx context.Context, listingID string) (domain.Claim, bool, error)
	ListClaims(ctx context.Context) ([]domain.Claim, error)
	ListClaimsByClaimer(ctx context.Context, claimerID string) ([]domain.Claim, error)
	SetClaimStatus(ctx context.Context, id string, status domain.ClaimStatus) error
	DeleteClaim(ctx context.Context, id string) error
}

// Tracker manages claims. A listing holds at most one claim.
type Tracker struct {
	claims Claims
}

func New(claims Claims) *Tracker {
	return &Tracker{claims: claims}
}

// CreatePickupClaim records a pickup claim in status Requested.
func (t *Tracker) CreatePickupClaim(ctx context.Context, claimer, listing string) (domain.Claim, error) {
	return t.create(ctx, domain.Claim{ListingID: listing, ClaimerID: claimer, Method: domain.MethodPickup})
}

// CreateDeliveryClaim records a delivery claim to address in status Requested.
func (t *Tracker) CreateDeliveryClaim(ctx context.Context, claimer, listing, address, instructions string) (domain.Claim, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Claim{}, domain.BadValues("Delivery address must be non-empty!")
	}
	return t.create(ctx, domain.Claim{
		ListingID:    listing,
		ClaimerID:    claimer,
		Method:       domain.MethodDelivery,
		Address:      address,
		Instructions: strings.TrimSpace(instructions),
	})
}

func (t *Tracker) create(ctx context.Context, c domain.Claim) (domain.Claim, error) {
	now := time.Now().UTC()
	c.ID = domain.NewID()
	c.Status = domain.ClaimRequested
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := t.claims.CreateClaim(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Claim{}, alreadyClaimed(c.ListingID)
		}
		return domain.Claim{}, fmt.Errorf("create claim: %w", err)
	}
	return c, nil
}

// DeleteByListing removes the claim on listing and returns it, if there was one.
func (t *Tracker) DeleteByListing(ctx context.Context, listing string) (domain.Claim, bool, error) {
	c, ok, err := t.GetByListing(ctx, listing)
	if err != nil || !ok {
		return domain.Claim{}, false, err
	}
	if err := t.claims.DeleteClaim(ctx, c.ID); err != nil {
		return domain.Claim{}, false, fmt.Errorf("delete claim: %w", err)
	}
	return c, true, nil
}

// Complete moves claim id to Completed.
func (t *Tracker) Complete(ctx context.Context, id string) error {
	if err := t.claims.SetClaimStatus(ctx, id, domain.ClaimCompleted); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return fmt.Errorf("complete claim: %w", err)
	}
	return nil
}

// Get returns a claim or NotFound.
func (t *Tracker) Get(ctx context.Context, id string) (domain.Claim, error) {
	c, ok, err := t.claims.GetClaim(ctx, id)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("get claim: %w", err)
	}
	if !ok {
		return domain.Claim{}, notFound(id)
	}
	return c, nil
}

// GetByListing returns the claim on listing, if any.
func (t *Tracker) GetByListing(ctx context.Context, listing string) (domain.Claim, bool, error) {
	c, ok, err := t.claims.GetClaimByListing(ctx, listing)
	if err != nil {
		return domain.Claim{}, false, fmt.Errorf("get claim: %w", err)
	}
	return c, ok, nil
}

// List returns all claims newest first.
func (t *Tracker) List(ctx context.Context) ([]domain.Claim, error) {
	cs, err := t.claims.ListClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return cs, nil
}

func (t *Tracker) ListByClaimer(ctx context.Context, claimer string) ([]domain.Claim, error) {
	cs, err := t.claims.ListClaimsByClaimer(ctx, claimer)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return cs, nil
}

// ListIncompleteDeliveryClaims returns Requested claims with the Delivery method.
func (t *Tracker) ListIncompleteDeliveryClaims(ctx context.Context) ([]domain.Claim, error) {
	all, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Claim, 0, len(all))
	for _, c := range all {
		if c.Method == domain.MethodDelivery && c.Status != domain.ClaimCompleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *Tracker) IsListingClaimed(ctx context.Context, listing string) (bool, error) {
	_, ok, err := t.GetByListing(ctx, listing)
	return ok, err
}

func (t *Tracker) AssertIsNotClaimed(ctx context.Context, listing string) error {
	claimed, err := t.IsListingClaimed(ctx, listing)
	if err != nil {
		return err
	}
	if claimed {
		return alreadyClaimed(listing)
	}
	return nil
}

func (t *Tracker) AssertIsClaimed(ctx context.Context, listing string) error {
	claimed, err := t.IsListingClaimed(ctx, listing)
	if err != nil {
		return err
	}
	if !claimed {
		return domain.NotAllowed("Item %s is not claimed!", listing)
	}
	return nil
}

// AssertClaimerIsUser fails unless user placed claim id.
func (t *Tracker) AssertClaimerIsUser(ctx context.Context, id, user string) error {
	c, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.ClaimerID != user {
		return domain.Mismatch(domain.CodeClaimerMismatch, user, id, c.ClaimerID)
	}
	return nil
}

func (t *Tracker) AssertNotCompleted(ctx context.Context, id string) error {
	c, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.ClaimCompleted {
		return domain.NotAllowed("Claim %s is already completed!", id)
	}
	return nil
}

func (t *Tracker) AssertIsPickup(ctx context.Context, id string) error {
	return t.assertMethod(ctx, id, domain.MethodPickup, "pickup")
}

func (t *Tracker) AssertIsDelivery(ctx context.Context, id string) error {
	return t.assertMethod(ctx, id, domain.MethodDelivery, "delivery")
}

func (t *Tracker) assertMethod(ctx context.Context, id string, method domain.ClaimMethod, label string) error {
	c, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Method != method {
		return domain.NotAllowed("Claim %s is not a %s claim!", id, label)
	}
	return nil
}

func alreadyClaimed(listing string) error {
	return domain.NotAllowed("Item %s is already claimed!", listing).WithCode(domain.CodeAlreadyClaimed)
}

func notFound(id string) error {
	return domain.NotFound("Claim %s does not exist!", id)
}
