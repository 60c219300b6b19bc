package app

import (
	"context"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
)

// CreatePickupClaim lets a Recipient claim a live, unclaimed listing for pickup.
func (a *App) CreatePickupClaim(ctx context.Context, c Caller, listing string) (ClaimView, error) {
	if err := a.assertClaimable(ctx, c, listing); err != nil {
		return ClaimView{}, err
	}
	claim, err := a.claims.CreatePickupClaim(ctx, c.UserID, listing)
	if err != nil {
		return ClaimView{}, err
	}
	return a.claimCreated(ctx, claim)
}

// CreateDeliveryClaim lets a Recipient request delivery of a live, unclaimed listing.
func (a *App) CreateDeliveryClaim(ctx context.Context, c Caller, listing, address, instructions string) (ClaimView, error) {
	if err := a.assertClaimable(ctx, c, listing); err != nil {
		return ClaimView{}, err
	}
	claim, err := a.claims.CreateDeliveryClaim(ctx, c.UserID, listing, address, instructions)
	if err != nil {
		return ClaimView{}, err
	}
	return a.claimCreated(ctx, claim)
}

func (a *App) assertClaimable(ctx context.Context, c Caller, listing string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleRecipient); err != nil {
		return err
	}
	if err := a.posts.AssertNotExpired(ctx, listing); err != nil {
		return err
	}
	return a.claims.AssertIsNotClaimed(ctx, listing)
}

func (a *App) claimCreated(ctx context.Context, claim domain.Claim) (ClaimView, error) {
	a.publish(ctx, events.ClaimCreated, claim.ID, claim.ClaimerID, map[string]string{
		"listing": claim.ListingID,
		"method":  string(claim.Method),
	})
	return a.claimView(ctx, claim, true)
}

// CancelClaim withdraws the caller's claim on listing. A delivery that has
// already started blocks the cancellation; one that has not is removed first.
func (a *App) CancelClaim(ctx context.Context, c Caller, listing string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleRecipient); err != nil {
		return err
	}
	claim, ok, err := a.claims.GetByListing(ctx, listing)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("Claim for post %s does not exist!", listing)
	}
	if err := a.claims.AssertClaimerIsUser(ctx, claim.ID, c.UserID); err != nil {
		return err
	}
	delivery, hasDelivery, err := a.deliveries.GetByClaim(ctx, claim.ID)
	if err != nil {
		return err
	}
	if hasDelivery {
		if err := a.deliveries.AssertNotStarted(ctx, delivery.ID); err != nil {
			return err
		}
	}
	if err := a.deliveries.DeleteByClaim(ctx, claim.ID); err != nil {
		return err
	}
	if _, _, err := a.claims.DeleteByListing(ctx, listing); err != nil {
		return err
	}
	a.publish(ctx, events.ClaimCancelled, claim.ID, c.UserID, map[string]string{"listing": listing})
	return nil
}

// CompletePickupClaim marks the caller's pickup claim as collected.
func (a *App) CompletePickupClaim(ctx context.Context, c Caller, claimID string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleRecipient); err != nil {
		return err
	}
	if err := a.claims.AssertClaimerIsUser(ctx, claimID, c.UserID); err != nil {
		return err
	}
	if err := a.claims.AssertIsPickup(ctx, claimID); err != nil {
		return err
	}
	if err := a.claims.AssertNotCompleted(ctx, claimID); err != nil {
		return err
	}
	if err := a.claims.Complete(ctx, claimID); err != nil {
		return err
	}
	a.publish(ctx, events.ClaimCompleted, claimID, c.UserID, map[string]string{"method": string(domain.MethodPickup)})
	return nil
}

// UserClaims lists the caller's claims with the claimed listings attached.
func (a *App) UserClaims(ctx context.Context, c Caller) ([]ClaimView, error) {
	claims, err := a.claims.ListByClaimer(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return a.claimViews(ctx, claims, true)
}

// ListingClaim returns the claim on listing, or nil when it is unclaimed.
func (a *App) ListingClaim(ctx context.Context, listing string) (*ClaimView, error) {
	claim, ok, err := a.claims.GetByListing(ctx, listing)
	if err != nil || !ok {
		return nil, err
	}
	view, err := a.claimView(ctx, claim, false)
	if err != nil {
		return nil, err
	}
	return &view, nil
}
