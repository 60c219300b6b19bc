package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID        string    `gorm:"primaryKey"`
	Username  string    `gorm:"uniqueIndex;not null"`
	Password  string    `gorm:"not null"`
	Role      string    `gorm:"not null"`
	Location  string
	CreatedAt time.Time `gorm:"not null"`
}

type ListingModel struct {
	ID             string    `gorm:"primaryKey"`
	AuthorID       string    `gorm:"not null;index"`
	FoodName       string    `gorm:"not null"`
	ExpirationTime time.Time `gorm:"not null;index"`
	Quantity       int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// ClaimModel carries a unique listing_id so that two racing claims on one
// listing cannot both land.
type ClaimModel struct {
	ID           string `gorm:"primaryKey"`
	ListingID    string `gorm:"uniqueIndex;not null"`
	ClaimerID    string `gorm:"not null;index"`
	Method       string `gorm:"not null"`
	Status       string `gorm:"not null"`
	Address      string
	Instructions string
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type DeliveryModel struct {
	ID          string    `gorm:"primaryKey"`
	ClaimID     string    `gorm:"uniqueIndex;not null"`
	DelivererID string    `gorm:"not null;index"`
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID         string    `gorm:"primaryKey"`
	SenderID   string    `gorm:"not null;index:idx_message_pair,priority:1"`
	ReceiverID string    `gorm:"not null;index:idx_message_pair,priority:2"`
	Content    string    `gorm:"type:text;not null"`
	SentAt     time.Time `gorm:"not null"`
	Seq        int64     `gorm:"not null"`
}

type TagSetModel struct {
	ID        string                      `gorm:"primaryKey"`
	ListingID string                      `gorm:"uniqueIndex;not null"`
	Tags      datatypes.JSONSlice[string] `gorm:"not null"`
}
