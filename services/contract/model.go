package contract

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusDisputed      Status = "disputed"
	StatusPaymentFailed Status = "payment_failed"
)

type WorkflowStatus string

const (
	WorkflowActive           WorkflowStatus = "active"
	WorkflowWaitingReview    WorkflowStatus = "waiting_review"
	WorkflowPaymentPending   WorkflowStatus = "payment_pending"
	WorkflowPaymentAvailable WorkflowStatus = "payment_available"
	WorkflowPaymentWithdrawn WorkflowStatus = "payment_withdrawn"
	WorkflowTerminated       WorkflowStatus = "terminated"
)

// PlatformFeeRate is the platform's cut of every contract budget.
var PlatformFeeRate = decimal.NewFromFloat(0.10)

// Contract binds a brand and a creator after an offer is accepted. The budget
// split is fixed at creation: fee + creator amount always equals the budget.
type Contract struct {
	ID                   string          `gorm:"column:id;primaryKey;type:char(26)"`
	Code                 string          `gorm:"column:code;uniqueIndex;type:varchar(30)"`
	OfferID              string          `gorm:"column:offer_id;uniqueIndex;not null"`
	BrandID              string          `gorm:"column:brand_id;index;not null"`
	CreatorID            string          `gorm:"column:creator_id;index;not null"`
	ChatRoomID           string          `gorm:"column:chat_room_id;not null"`
	Budget               decimal.Decimal `gorm:"column:budget;type:decimal(12,2);not null"`
	PlatformFee          decimal.Decimal `gorm:"column:platform_fee;type:decimal(12,2);not null"`
	CreatorAmount        decimal.Decimal `gorm:"column:creator_amount;type:decimal(12,2);not null"`
	Status               Status          `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	WorkflowStatus       WorkflowStatus  `gorm:"column:workflow_status;type:varchar(30);not null;default:'active'"`
	StartedAt            *time.Time      `gorm:"column:started_at"`
	ExpectedCompletionAt *time.Time      `gorm:"column:expected_completion_at"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Contract) TableName() string { return "contracts" }

// SplitBudget computes the platform fee and creator amount for a budget.
// The fee is rounded to cents; the creator amount is the exact remainder so
// the two always sum back to the budget.
func SplitBudget(budget decimal.Decimal) (fee, creatorAmount decimal.Decimal) {
	fee = budget.Mul(PlatformFeeRate).Round(2)
	creatorAmount = budget.Sub(fee)
	return fee, creatorAmount
}
