package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"foodshare/internal/metrics"
	"foodshare/internal/util"
	"foodshare/pkg/auth"
	"foodshare/pkg/authing"
	"foodshare/pkg/claiming"
	"foodshare/pkg/delivering"
	"foodshare/pkg/domain"
	"foodshare/pkg/events"
	"foodshare/pkg/messaging"
	"foodshare/pkg/posting"
	"foodshare/pkg/sessioning"
	"foodshare/pkg/store"
	"foodshare/pkg/tagging"
)

const (
	defaultFanout       = 8
	eventPublishTimeout = 2 * time.Second
)

// Config holds the collaborators of the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	// Hasher defaults to bcrypt.
	Hasher authing.PasswordHasher
	// Events defaults to a publisher that drops everything.
	Events  events.Publisher
	Metrics *metrics.Metrics
	// Fanout bounds concurrent per-listing lookups in filtered listings.
	Fanout int
	Now    func() time.Time
}

// App sequences the concept modules for each request and enforces the
// invariants that span more than one of them.
type App struct {
	users      *authing.Directory
	sessions   *sessioning.Holder
	posts      *posting.Registry
	claims     *claiming.Tracker
	deliveries *delivering.Tracker
	messages   *messaging.Log
	tags       *tagging.Index

	events  events.Publisher
	metrics *metrics.Metrics
	fanout  int
	now     func() time.Time
}

// Caller identifies the client behind a request: its session handle and,
// once authenticated, the user the handle resolves to.
type Caller struct {
	Handle string
	UserID string
}

// New wires the concept modules over a shared store.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session store is required")
	}
	if cfg.Hasher == nil {
		cfg.Hasher = auth.BcryptHasher{}
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = defaultFanout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		users:      authing.New(cfg.Store, cfg.Hasher),
		sessions:   sessioning.New(cfg.Sessions),
		posts:      posting.New(cfg.Store, posting.WithClock(cfg.Now)),
		claims:     claiming.New(cfg.Store),
		deliveries: delivering.New(cfg.Store),
		messages:   messaging.New(cfg.Store),
		tags:       tagging.New(cfg.Store),
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		fanout:     cfg.Fanout,
		now:        cfg.Now,
	}, nil
}

// Authenticate resolves handle to a Caller carrying the session's user.
func (a *App) Authenticate(handle string) (Caller, error) {
	userID, err := a.sessions.User(handle)
	if err != nil {
		return Caller{}, err
	}
	return Caller{Handle: handle, UserID: userID}, nil
}

// publish emits a lifecycle event. Failures are logged and counted but never
// reach the caller, and a client hanging up does not cancel the publish.
func (a *App) publish(ctx context.Context, typ, entity, actor string, attrs map[string]string) {
	e := events.Event{
		ID:         domain.NewID(),
		Type:       typ,
		EntityID:   entity,
		ActorID:    actor,
		Attributes: attrs,
		OccurredAt: a.now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	err := a.events.Publish(pubCtx, e)
	a.metrics.RecordEvent(typ, err)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("publish event failed",
			slog.String("type", typ),
			slog.String("entity_id", entity),
			slog.Any("err", err),
		)
	}
}
