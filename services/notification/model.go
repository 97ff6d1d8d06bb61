package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindOfferReceived       Kind = "offer_received"
	KindOfferAccepted       Kind = "offer_accepted"
	KindOfferRejected       Kind = "offer_rejected"
	KindOfferExpired        Kind = "offer_expired"
	KindMilestoneOverdue    Kind = "milestone_overdue"
	KindMilestonePenalty    Kind = "milestone_penalty"
	KindCreatorSuspended    Kind = "creator_suspended"
	KindExtensionRequested  Kind = "extension_requested"
	KindPaymentCompleted    Kind = "payment_completed"
	KindPaymentFailed       Kind = "payment_failed"
	KindWithdrawalCompleted Kind = "withdrawal_completed"
	KindWithdrawalFailed    Kind = "withdrawal_failed"
)

// Notification is an append-only fan-out record. Only the read state ever
// mutates after creation.
type Notification struct {
	ID        string         `gorm:"column:id;primaryKey;type:char(26)"`
	UserID    string         `gorm:"column:user_id;index;not null"`
	Type      Kind           `gorm:"column:type;type:varchar(50);not null"`
	Title     string         `gorm:"column:title;type:varchar(255);not null"`
	Message   string         `gorm:"column:message;type:text"`
	Data      datatypes.JSON `gorm:"column:data"`
	IsRead    bool           `gorm:"column:is_read;default:false"`
	ReadAt    *time.Time     `gorm:"column:read_at"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

// Event is a workflow state change to fan out. Payload is one of the typed
// payload structs below; it is marshaled once at dispatch.
type Event struct {
	Kind       Kind
	Title      string
	Message    string
	Recipients []string
	Payload    any

	// ChatRoomID, when set, additionally emits a best-effort system chat
	// message into the room.
	ChatRoomID  string
	ChatMessage string
}

type OverduePayload struct {
	MilestoneID        string    `json:"milestone_id"`
	ContractID         string    `json:"contract_id"`
	MilestoneType      string    `json:"milestone_type"`
	Deadline           time.Time `json:"deadline"`
	JustificationHours int       `json:"justification_hours"`
}

type PenaltyPayload struct {
	MilestoneID string    `json:"milestone_id"`
	CreatorID   string    `json:"creator_id"`
	Reason      string    `json:"reason"`
	Until       time.Time `json:"until"`
}

type SuspensionPayload struct {
	CreatorID    string    `json:"creator_id"`
	OverdueCount int       `json:"overdue_count"`
	Until        time.Time `json:"until"`
}

type OfferPayload struct {
	OfferID   string    `json:"offer_id"`
	BrandID   string    `json:"brand_id"`
	CreatorID string    `json:"creator_id"`
	Budget    string    `json:"budget"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PaymentPayload struct {
	PaymentID  string `json:"payment_id"`
	ContractID string `json:"contract_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
}

type WithdrawalPayload struct {
	WithdrawalID  string `json:"withdrawal_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type ExtensionPayload struct {
	MilestoneID   string `json:"milestone_id"`
	ContractID    string `json:"contract_id"`
	Days          int    `json:"days"`
	Justification string `json:"justification"`
}
