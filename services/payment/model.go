package payment

import (
	"encoding/json"
	"time"

	"creatorhub-platform/pkg/gateway"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

// MaxAttempts bounds gateway retries for a single record across batch runs.
const MaxAttempts = 3

// JobPayment is a brand-side charge funding a contract.
type JobPayment struct {
	ID             string          `gorm:"column:id;primaryKey;type:char(26)"`
	ContractID     string          `gorm:"column:contract_id;index;not null"`
	BrandID        string          `gorm:"column:brand_id;index;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Currency       string          `gorm:"column:currency;type:varchar(3);default:'BRL'"`
	Status         Status          `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	GatewayOrderID string          `gorm:"column:gateway_order_id"`
	Attempts       int             `gorm:"column:attempts;default:0"`
	LastError      string          `gorm:"column:last_error;type:text"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (JobPayment) TableName() string { return "job_payments" }

// Withdrawal is a creator payout request. WithdrawalDetails freezes the bank
// account used at processing time; verification later diffs it against the
// creator's current account.
type Withdrawal struct {
	ID            string          `gorm:"column:id;primaryKey;type:char(26)"`
	Code          string          `gorm:"column:code;uniqueIndex;type:varchar(30)"`
	CreatorID     string          `gorm:"column:creator_id;index;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Method        string          `gorm:"column:method;type:varchar(20);default:'bank_transfer'"`
	Status        Status          `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	TransactionID string          `gorm:"column:transaction_id"`
	Details       datatypes.JSON  `gorm:"column:withdrawal_details"`
	Attempts      int             `gorm:"column:attempts;default:0"`
	LastError     string          `gorm:"column:last_error;type:text"`
	RequestedAt   time.Time       `gorm:"column:requested_at;autoCreateTime"`
	ProcessedAt   *time.Time      `gorm:"column:processed_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Withdrawal) TableName() string { return "withdrawals" }

func (w *Withdrawal) DecodeDetails() (*gateway.BankDetails, error) {
	if len(w.Details) == 0 {
		return nil, nil
	}
	var d gateway.BankDetails
	if err := json.Unmarshal(w.Details, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MinorUnits converts a decimal amount into gateway cents.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}
