package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"foodshare/pkg/domain"
)

// MemoryStore keeps every collection in-process. Used for local runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]domain.User
	username map[string]string // username -> user ID

	listings     map[string]domain.Listing
	listingOrder []string

	claims         map[string]domain.Claim
	claimOrder     []string
	claimByListing map[string]string // listing ID -> claim ID

	deliveries      map[string]domain.Delivery
	deliveryOrder   []string
	deliveryByClaim map[string]string // claim ID -> delivery ID

	messages map[string]domain.Message
	tags     map[string]domain.TagSet // listing ID -> tag set
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]domain.User),
		username:        make(map[string]string),
		listings:        make(map[string]domain.Listing),
		claims:          make(map[string]domain.Claim),
		claimByListing:  make(map[string]string),
		deliveries:      make(map[string]domain.Delivery),
		deliveryByClaim: make(map[string]string),
		messages:        make(map[string]domain.Message),
		tags:            make(map[string]domain.TagSet),
	}
}

// CreateUser registers a user; usernames are unique.
func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.username[u.Username]; taken {
		return ErrDuplicate
	}
	m.users[u.ID] = u
	m.username[u.Username] = u.ID
	return nil
}

// GetUser returns a user by ID.
func (m *MemoryStore) GetUser(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.username[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (m *MemoryStore) GetUsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// UpdateUser replaces a user record, keeping the username index in sync.
func (m *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if prev.Username != u.Username {
		if _, taken := m.username[u.Username]; taken {
			return ErrDuplicate
		}
		delete(m.username, prev.Username)
		m.username[u.Username] = u.ID
	}
	m.users[u.ID] = u
	return nil
}

// DeleteUser removes a user. Records referencing the user are left alone.
func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.username, u.Username)
		delete(m.users, id)
	}
	return nil
}

// CreateListing stores a listing and tracks insertion order.
func (m *MemoryStore) CreateListing(_ context.Context, l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.listings[l.ID]; !exists {
		m.listingOrder = append(m.listingOrder, l.ID)
	}
	m.listings[l.ID] = l
	return nil
}

// GetListing retrieves a listing by ID.
func (m *MemoryStore) GetListing(_ context.Context, id string) (domain.Listing, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	return l, ok, nil
}

// ListListings returns listings newest first.
func (m *MemoryStore) ListListings(_ context.Context) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Listing, 0, len(m.listingOrder))
	for i := len(m.listingOrder) - 1; i >= 0; i-- {
		if l, ok := m.listings[m.listingOrder[i]]; ok {
			res = append(res, l)
		}
	}
	return res, nil
}

// ListListingsByAuthor returns an author's listings, latest expiration first.
func (m *MemoryStore) ListListingsByAuthor(_ context.Context, authorID string) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Listing, 0)
	for _, id := range m.listingOrder {
		if l, ok := m.listings[id]; ok && l.AuthorID == authorID {
			res = append(res, l)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ExpirationTime.After(res[j].ExpirationTime) })
	return res, nil
}

// UpdateListing replaces a listing record.
func (m *MemoryStore) UpdateListing(_ context.Context, l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.ID]; !ok {
		return ErrNotFound
	}
	m.listings[l.ID] = l
	return nil
}

// DeleteListing removes a listing only; dependent records are the caller's concern.
func (m *MemoryStore) DeleteListing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, id)
	m.listingOrder = without(m.listingOrder, id)
	return nil
}

// CreateClaim stores a claim; a listing holds at most one claim.
func (m *MemoryStore) CreateClaim(_ context.Context, c domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, claimed := m.claimByListing[c.ListingID]; claimed {
		return ErrDuplicate
	}
	m.claims[c.ID] = c
	m.claimByListing[c.ListingID] = c.ID
	m.claimOrder = append(m.claimOrder, c.ID)
	return nil
}

// GetClaim retrieves a claim by ID.
func (m *MemoryStore) GetClaim(_ context.Context, id string) (domain.Claim, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	return c, ok, nil
}

// GetClaimByListing returns the claim placed on a listing, if any.
func (m *MemoryStore) GetClaimByListing(_ context.Context, listingID string) (domain.Claim, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.claimByListing[listingID]
	if !ok {
		return domain.Claim{}, false, nil
	}
	c, ok := m.claims[id]
	return c, ok, nil
}

// ListClaims returns claims newest first.
func (m *MemoryStore) ListClaims(_ context.Context) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Claim, 0, len(m.claimOrder))
	for i := len(m.claimOrder) - 1; i >= 0; i-- {
		if c, ok := m.claims[m.claimOrder[i]]; ok {
			res = append(res, c)
		}
	}
	return res, nil
}

// ListClaimsByClaimer returns a user's claims in creation order.
func (m *MemoryStore) ListClaimsByClaimer(_ context.Context, claimerID string) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Claim, 0)
	for _, id := range m.claimOrder {
		if c, ok := m.claims[id]; ok && c.ClaimerID == claimerID {
			res = append(res, c)
		}
	}
	return res, nil
}

// SetClaimStatus updates a claim's status.
func (m *MemoryStore) SetClaimStatus(_ context.Context, id string, status domain.ClaimStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.claims[id] = c
	return nil
}

// DeleteClaim removes a claim.
func (m *MemoryStore) DeleteClaim(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil
	}
	delete(m.claims, id)
	if m.claimByListing[c.ListingID] == id {
		delete(m.claimByListing, c.ListingID)
	}
	m.claimOrder = without(m.claimOrder, id)
	return nil
}

// CreateDelivery stores a delivery; a claim holds at most one delivery.
func (m *MemoryStore) CreateDelivery(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.deliveryByClaim[d.ClaimID]; taken {
		return ErrDuplicate
	}
	m.deliveries[d.ID] = d
	m.deliveryByClaim[d.ClaimID] = d.ID
	m.deliveryOrder = append(m.deliveryOrder, d.ID)
	return nil
}

// GetDelivery retrieves a delivery by ID.
func (m *MemoryStore) GetDelivery(_ context.Context, id string) (domain.Delivery, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[id]
	return d, ok, nil
}

// GetDeliveryByClaim returns the delivery bound to a claim, if any.
func (m *MemoryStore) GetDeliveryByClaim(_ context.Context, claimID string) (domain.Delivery, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.deliveryByClaim[claimID]
	if !ok {
		return domain.Delivery{}, false, nil
	}
	d, ok := m.deliveries[id]
	return d, ok, nil
}

// ListDeliveries returns deliveries newest first.
func (m *MemoryStore) ListDeliveries(_ context.Context) ([]domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Delivery, 0, len(m.deliveryOrder))
	for i := len(m.deliveryOrder) - 1; i >= 0; i-- {
		if d, ok := m.deliveries[m.deliveryOrder[i]]; ok {
			res = append(res, d)
		}
	}
	return res, nil
}

// ListDeliveriesByDeliverer returns a volunteer's deliveries in creation order.
func (m *MemoryStore) ListDeliveriesByDeliverer(_ context.Context, delivererID string) ([]domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Delivery, 0)
	for _, id := range m.deliveryOrder {
		if d, ok := m.deliveries[id]; ok && d.DelivererID == delivererID {
			res = append(res, d)
		}
	}
	return res, nil
}

// SetDeliveryStatus updates a delivery's status.
func (m *MemoryStore) SetDeliveryStatus(_ context.Context, id string, status domain.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	m.deliveries[id] = d
	return nil
}

// DeleteDelivery removes a delivery.
func (m *MemoryStore) DeleteDelivery(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteDeliveryLocked(id)
	return nil
}

// DeleteDeliveriesByClaim removes the deliveries bound to a claim.
func (m *MemoryStore) DeleteDeliveriesByClaim(_ context.Context, claimID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range append([]string(nil), m.deliveryOrder...) {
		if d, ok := m.deliveries[id]; ok && d.ClaimID == claimID {
			m.deleteDeliveryLocked(id)
		}
	}
	return nil
}

func (m *MemoryStore) deleteDeliveryLocked(id string) {
	d, ok := m.deliveries[id]
	if !ok {
		return
	}
	delete(m.deliveries, id)
	if m.deliveryByClaim[d.ClaimID] == id {
		delete(m.deliveryByClaim, d.ClaimID)
	}
	m.deliveryOrder = without(m.deliveryOrder, id)
}

// CreateMessage records a message.
func (m *MemoryStore) CreateMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MemoryStore) GetMessage(_ context.Context, id string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	return msg, ok, nil
}

// ListMessages returns messages from sender to receiver ordered by (SentAt, Seq).
func (m *MemoryStore) ListMessages(_ context.Context, senderID, receiverID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if msg.SenderID == senderID && msg.ReceiverID == receiverID {
			res = append(res, msg)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].SentAt.Equal(res[j].SentAt) {
			return res[i].SentAt.Before(res[j].SentAt)
		}
		return res[i].Seq < res[j].Seq
	})
	return res, nil
}

// DeleteMessage removes a message.
func (m *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	return nil
}

// GetTagSet returns the tag set for a listing.
func (m *MemoryStore) GetTagSet(_ context.Context, listingID string) (domain.TagSet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tags[listingID]
	if !ok {
		return domain.TagSet{}, false, nil
	}
	return copyTagSet(t), true, nil
}

// SaveTagSet creates or replaces the tag set for a listing.
func (m *MemoryStore) SaveTagSet(_ context.Context, t domain.TagSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[t.ListingID] = copyTagSet(t)
	return nil
}

// ListTagSets returns every tag set ordered by listing ID.
func (m *MemoryStore) ListTagSets(_ context.Context) ([]domain.TagSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.TagSet, 0, len(m.tags))
	for _, t := range m.tags {
		res = append(res, copyTagSet(t))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ListingID < res[j].ListingID })
	return res, nil
}

// DeleteTagSet removes the tag set of a listing.
func (m *MemoryStore) DeleteTagSet(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags, listingID)
	return nil
}

func copyTagSet(t domain.TagSet) domain.TagSet {
	t.Tags = append([]string(nil), t.Tags...)
	return t
}

func without(ids []string, id string) []string {
	filtered := ids[:0]
	for _, item := range ids {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
