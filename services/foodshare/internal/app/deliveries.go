package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"foodshare/pkg/domain"
	"foodshare/pkg/events"
)

// AcceptDelivery assigns the calling Volunteer to an open delivery claim.
func (a *App) AcceptDelivery(ctx context.Context, c Caller, claimID string) (DeliveryView, error) {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleVolunteer); err != nil {
		return DeliveryView{}, err
	}
	if err := a.claims.AssertNotCompleted(ctx, claimID); err != nil {
		return DeliveryView{}, err
	}
	if err := a.claims.AssertIsDelivery(ctx, claimID); err != nil {
		return DeliveryView{}, err
	}
	if err := a.deliveries.AssertNoDelivery(ctx, claimID); err != nil {
		return DeliveryView{}, err
	}
	d, err := a.deliveries.Accept(ctx, c.UserID, claimID)
	if err != nil {
		return DeliveryView{}, err
	}
	a.publish(ctx, events.DeliveryAccepted, d.ID, c.UserID, map[string]string{"claim": claimID})
	return a.deliveryView(ctx, d)
}

// UnacceptDelivery releases a delivery the caller accepted but has not started.
func (a *App) UnacceptDelivery(ctx context.Context, c Caller, id string) error {
	if err := a.assertOwnDelivery(ctx, c, id); err != nil {
		return err
	}
	if err := a.deliveries.AssertNotStarted(ctx, id); err != nil {
		return err
	}
	if err := a.deliveries.Unaccept(ctx, id); err != nil {
		return err
	}
	a.publish(ctx, events.DeliveryUnaccepted, id, c.UserID, nil)
	return nil
}

// StartDelivery records that the caller picked the food up from the donor.
func (a *App) StartDelivery(ctx context.Context, c Caller, id string) error {
	if err := a.assertOwnDelivery(ctx, c, id); err != nil {
		return err
	}
	if err := a.deliveries.AssertNotStarted(ctx, id); err != nil {
		return err
	}
	if err := a.deliveries.Start(ctx, id); err != nil {
		return err
	}
	a.publish(ctx, events.DeliveryStarted, id, c.UserID, nil)
	return nil
}

// CompleteDelivery completes the underlying claim and then the delivery.
// The two writes are not atomic; a failure between them leaves the claim
// completed and the delivery in progress.
func (a *App) CompleteDelivery(ctx context.Context, c Caller, id string) error {
	if err := a.deliveries.AssertInProgress(ctx, id); err != nil {
		return err
	}
	if err := a.assertOwnDelivery(ctx, c, id); err != nil {
		return err
	}
	d, err := a.deliveries.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.claims.Complete(ctx, d.ClaimID); err != nil {
		return err
	}
	a.publish(ctx, events.ClaimCompleted, d.ClaimID, c.UserID, map[string]string{"method": string(domain.MethodDelivery)})
	if err := a.deliveries.Complete(ctx, id); err != nil {
		return err
	}
	a.publish(ctx, events.DeliveryCompleted, id, c.UserID, map[string]string{"claim": d.ClaimID})
	return nil
}

func (a *App) assertOwnDelivery(ctx context.Context, c Caller, id string) error {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleVolunteer); err != nil {
		return err
	}
	return a.deliveries.AssertDelivererIsUser(ctx, id, c.UserID)
}

// ListDeliveries lists every delivery, or only those of the named deliverer.
func (a *App) ListDeliveries(ctx context.Context, deliverer string) ([]DeliveryView, error) {
	var (
		deliveries []domain.Delivery
		err        error
	)
	if deliverer != "" {
		u, lookupErr := a.users.GetByUsername(ctx, deliverer)
		if lookupErr != nil {
			return nil, lookupErr
		}
		deliveries, err = a.deliveries.ListByDeliverer(ctx, u.ID)
	} else {
		deliveries, err = a.deliveries.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return a.deliveryViews(ctx, deliveries)
}

// DeliveryStatus returns the delivery for claimID, or nil when none was accepted.
func (a *App) DeliveryStatus(ctx context.Context, claimID string) (*DeliveryView, error) {
	d, ok, err := a.deliveries.GetByClaim(ctx, claimID)
	if err != nil || !ok {
		return nil, err
	}
	view, err := a.deliveryView(ctx, d)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// AvailableRequests lists incomplete delivery claims no volunteer has accepted.
func (a *App) AvailableRequests(ctx context.Context, c Caller) ([]ClaimView, error) {
	if err := a.users.AssertIsRole(ctx, c.UserID, domain.RoleVolunteer); err != nil {
		return nil, err
	}
	open, err := a.claims.ListIncompleteDeliveryClaims(ctx)
	if err != nil {
		return nil, err
	}
	taken := make([]bool, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)
	for i, claim := range open {
		g.Go(func() error {
			has, err := a.deliveries.HasDeliveryForClaim(gctx, claim.ID)
			taken[i] = has
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	available := make([]domain.Claim, 0, len(open))
	for i, claim := range open {
		if !taken[i] {
			available = append(available, claim)
		}
	}
	return a.claimViews(ctx, available, true)
}

// UserDeliveries lists the deliveries the caller accepted.
func (a *App) UserDeliveries(ctx context.Context, c Caller) ([]DeliveryView, error) {
	deliveries, err := a.deliveries.ListByDeliverer(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return a.deliveryViews(ctx, deliveries)
}
