package offer

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// TTL is the window a pending offer stays open before the expiry sweep
// closes it.
const TTL = 48 * time.Hour

// Offer is a brand's proposal to a creator inside a chat room. A brand holds
// at most one pending offer per creator; the partial unique index below
// enforces it at the storage layer.
type Offer struct {
	ID            string          `gorm:"column:id;primaryKey;type:char(26)"`
	BrandID       string          `gorm:"column:brand_id;not null;uniqueIndex:idx_offers_pending,where:status = 'pending'"`
	CreatorID     string          `gorm:"column:creator_id;index;not null;uniqueIndex:idx_offers_pending,where:status = 'pending'"`
	ChatRoomID    string          `gorm:"column:chat_room_id;not null"`
	Budget        decimal.Decimal `gorm:"column:budget;type:decimal(12,2);not null"`
	EstimatedDays int             `gorm:"column:estimated_days;not null"`
	Status        Status          `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	ExpiresAt     time.Time       `gorm:"column:expires_at;index;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Offer) TableName() string { return "offers" }

// IsTerminal reports whether the offer reached a final state.
func (o *Offer) IsTerminal() bool {
	return o.Status != StatusPending
}
