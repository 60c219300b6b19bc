// Package delivering tracks volunteers' deliveries of delivery claims.
package delivering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodshare/pkg/domain"
	"foodshare/pkg/store"
)

// Deliveries is the persistence the tracker needs.
type Deliveries interface {
	CreateDelivery(ctx context.Context, d domain.Delivery) error
	GetDelivery(ctx context.Context, id string) (domain.Delivery, bool, error)
	GetDeliveryByClaim(ctx context.Context, claimID string) (domain.Delivery, bool, error)
	ListDeliveries(ctx context.Context) ([]domain.Delivery, error)
	ListDeliveriesByDeliverer(ctx context.Context, delivererID string) ([]domain.Delivery, error)
	SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
	DeleteDelivery(ctx context.Context, id string) error
	DeleteDeliveriesByClaim(ctx context.Context, claimID string) error
}

// Tracker manages deliveries: Not Started -> In Progress -> Completed.
type Tracker struct {
	deliveries Deliveries
}

func New(deliveries Deliveries) *Tracker {
	return &Tracker{deliveries: deliveries}
}

// Accept binds deliverer to claim in status Not Started.
func (t *Tracker) Accept(ctx context.Context, deliverer, claim string) (domain.Delivery, error) {
	now := time.Now().UTC()
	d := domain.Delivery{
		ID:          domain.NewID(),
		ClaimID:     claim,
		DelivererID: deliverer,
		Status:      domain.DeliveryNotStarted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.deliveries.CreateDelivery(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Delivery{}, alreadyAccepted(claim)
		}
		return domain.Delivery{}, fmt.Errorf("create delivery: %w", err)
	}
	return d, nil
}

// Unaccept deletes a delivery that has not started.
func (t *Tracker) Unaccept(ctx context.Context, id string) error {
	if err := t.AssertNotStarted(ctx, id); err != nil {
		return err
	}
	if err := t.deliveries.DeleteDelivery(ctx, id); err != nil {
		return fmt.Errorf("delete delivery: %w", err)
	}
	return nil
}

// Start moves a Not Started delivery to In Progress.
func (t *Tracker) Start(ctx context.Context, id string) error {
	if err := t.AssertNotStarted(ctx, id); err != nil {
		return err
	}
	return t.setStatus(ctx, id, domain.DeliveryInProgress)
}

// Complete moves an In Progress delivery to Completed.
func (t *Tracker) Complete(ctx context.Context, id string) error {
	if err := t.AssertInProgress(ctx, id); err != nil {
		return err
	}
	return t.setStatus(ctx, id, domain.DeliveryCompleted)
}

func (t *Tracker) setStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	if err := t.deliveries.SetDeliveryStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return fmt.Errorf("set delivery status: %w", err)
	}
	return nil
}

// DeleteByClaim removes every delivery bound to claim.
func (t *Tracker) DeleteByClaim(ctx context.Context, claim string) error {
	if err := t.deliveries.DeleteDeliveriesByClaim(ctx, claim); err != nil {
		return fmt.Errorf("delete deliveries: %w", err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, id string) (domain.Delivery, error) {
	d, ok, err := t.deliveries.GetDelivery(ctx, id)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	if !ok {
		return domain.Delivery{}, notFound(id)
	}
	return d, nil
}

// GetByClaim returns the delivery bound to claim, if any.
func (t *Tracker) GetByClaim(ctx context.Context, claim string) (domain.Delivery, bool, error) {
	d, ok, err := t.deliveries.GetDeliveryByClaim(ctx, claim)
	if err != nil {
		return domain.Delivery{}, false, fmt.Errorf("get delivery: %w", err)
	}
	return d, ok, nil
}

func (t *Tracker) HasDeliveryForClaim(ctx context.Context, claim string) (bool, error) {
	_, ok, err := t.GetByClaim(ctx, claim)
	return ok, err
}

// List returns all deliveries newest first.
func (t *Tracker) List(ctx context.Context) ([]domain.Delivery, error) {
	ds, err := t.deliveries.ListDeliveries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return ds, nil
}

func (t *Tracker) ListByDeliverer(ctx context.Context, deliverer string) ([]domain.Delivery, error) {
	ds, err := t.deliveries.ListDeliveriesByDeliverer(ctx, deliverer)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return ds, nil
}

// ListIncompleteByDeliverer returns the deliverer's deliveries that are not Completed.
func (t *Tracker) ListIncompleteByDeliverer(ctx context.Context, deliverer string) ([]domain.Delivery, error) {
	return t.filterByDeliverer(ctx, deliverer, func(s domain.DeliveryStatus) bool { return s != domain.DeliveryCompleted })
}

// ListCompletedByDeliverer returns the deliverer's Completed deliveries.
func (t *Tracker) ListCompletedByDeliverer(ctx context.Context, deliverer string) ([]domain.Delivery, error) {
	return t.filterByDeliverer(ctx, deliverer, func(s domain.DeliveryStatus) bool { return s == domain.DeliveryCompleted })
}

func (t *Tracker) filterByDeliverer(ctx context.Context, deliverer string, keep func(domain.DeliveryStatus) bool) ([]domain.Delivery, error) {
	all, err := t.ListByDeliverer(ctx, deliverer)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Delivery, 0, len(all))
	for _, d := range all {
		if keep(d.Status) {
			out = append(out, d)
		}
	}
	return out, nil
}

// AssertDelivererIsUser fails unless user accepted delivery id.
func (t *Tracker) AssertDelivererIsUser(ctx context.Context, id, user string) error {
	d, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.DelivererID != user {
		return domain.Mismatch(domain.CodeDelivererMismatch, user, id, d.DelivererID)
	}
	return nil
}

func (t *Tracker) AssertNotStarted(ctx context.Context, id string) error {
	d, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != domain.DeliveryNotStarted {
		return domain.NotAllowed("Delivery %s has already started!", id)
	}
	return nil
}

func (t *Tracker) AssertInProgress(ctx context.Context, id string) error {
	d, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != domain.DeliveryInProgress {
		return domain.NotAllowed("Delivery %s is not in progress!", id)
	}
	return nil
}

// AssertNoDelivery fails when claim already has a delivery.
func (t *Tracker) AssertNoDelivery(ctx context.Context, claim string) error {
	has, err := t.HasDeliveryForClaim(ctx, claim)
	if err != nil {
		return err
	}
	if has {
		return alreadyAccepted(claim)
	}
	return nil
}

func alreadyAccepted(claim string) error {
	return domain.NotAllowed("Request %s already has a deliverer!", claim).WithCode(domain.CodeAlreadyAccepted)
}

func notFound(id string) error {
	return domain.NotFound("Delivery %s does not exist!", id)
}
