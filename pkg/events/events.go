// Package events publishes lifecycle events for listings, claims, deliveries
// and messages to an external stream.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types.
const (
	UserRegistered     = "user.registered"
	UserDeleted        = "user.deleted"
	ListingCreated     = "listing.created"
	ListingUpdated     = "listing.updated"
	ListingDeleted     = "listing.deleted"
	ClaimCreated       = "claim.created"
	ClaimCancelled     = "claim.cancelled"
	ClaimCompleted     = "claim.completed"
	DeliveryAccepted   = "delivery.accepted"
	DeliveryUnaccepted = "delivery.unaccepted"
	DeliveryStarted    = "delivery.started"
	DeliveryCompleted  = "delivery.completed"
	MessageSent        = "message.sent"
	MessageDeleted     = "message.deleted"
	TagAdded           = "tag.added"
	TagDeleted         = "tag.deleted"
)

// Event describes one successful mutation.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	EntityID   string            `json:"entityId"`
	ActorID    string            `json:"actorId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
