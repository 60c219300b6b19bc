package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleDonor     UserRole = "Donor"
	RoleRecipient UserRole = "Recipient"
	RoleVolunteer UserRole = "Volunteer"
)

// ParseUserRole accepts only the exact role names.
func ParseUserRole(role string) (UserRole, bool) {
	switch UserRole(role) {
	case RoleDonor, RoleRecipient, RoleVolunteer:
		return UserRole(role), true
	default:
		return "", false
	}
}

type ClaimMethod string

const (
	MethodPickup   ClaimMethod = "Pickup"
	MethodDelivery ClaimMethod = "Delivery"
)

type ClaimStatus string

const (
	ClaimRequested ClaimStatus = "Requested"
	ClaimCompleted ClaimStatus = "Completed"
)

type DeliveryStatus string

const (
	DeliveryNotStarted DeliveryStatus = "Not Started"
	DeliveryInProgress DeliveryStatus = "In Progress"
	DeliveryCompleted  DeliveryStatus = "Completed"
)

// DeletedUsername stands in for ids that no longer resolve to an account.
const DeletedUsername = "DELETED_USER"

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      UserRole  `json:"role"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Listing struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author"`
	FoodName       string    `json:"foodName"`
	ExpirationTime time.Time `json:"expirationTime"`
	Quantity       int       `json:"quantity"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Claim struct {
	ID           string      `json:"id"`
	ListingID    string      `json:"item"`
	ClaimerID    string      `json:"claimUser"`
	Method       ClaimMethod `json:"method"`
	Status       ClaimStatus `json:"status"`
	Address      string      `json:"claimAddress,omitempty"`
	Instructions string      `json:"instructions,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type Delivery struct {
	ID          string         `json:"id"`
	ClaimID     string         `json:"request"`
	DelivererID string         `json:"deliverer"`
	Status      DeliveryStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"from"`
	ReceiverID string    `json:"to"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"time"`
	Seq        int64     `json:"-"`
}

type TagSet struct {
	ID        string   `json:"id"`
	ListingID string   `json:"item"`
	Tags      []string `json:"tags"`
}

// HasAll reports whether every tag in want is present in the set.
func (t TagSet) HasAll(want []string) bool {
	have := make(map[string]struct{}, len(t.Tags))
	for _, tag := range t.Tags {
		have[tag] = struct{}{}
	}
	for _, tag := range want {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}
