package creator

import (
	"time"
)

// Creator is a content creator account. Penalty and suspension windows are
// exclusive restrictions: at most one of each may be active, and a new
// violation never stacks days onto a window that is still in the future.
type Creator struct {
	ID                 string     `gorm:"column:id;primaryKey;type:char(26)"`
	Name               string     `gorm:"column:name;type:varchar(255);not null"`
	Email              string     `gorm:"column:email;uniqueIndex;type:varchar(255);not null"`
	PenaltyUntil       *time.Time `gorm:"column:penalty_until"`
	PenaltyReason      string     `gorm:"column:penalty_reason;type:text"`
	PenaltyMilestoneID string     `gorm:"column:penalty_milestone_id;type:char(26)"`
	SuspendedUntil     *time.Time `gorm:"column:suspended_until"`
	SuspensionReason   string     `gorm:"column:suspension_reason;type:text"`
	SuspensionCount    int        `gorm:"column:suspension_count;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Creator) TableName() string { return "creators" }

// IsPenalized reports whether an invite penalty window is active.
func (c *Creator) IsPenalized(now time.Time) bool {
	return c.PenaltyUntil != nil && c.PenaltyUntil.After(now)
}

// IsSuspended reports whether an account suspension window is active.
func (c *Creator) IsSuspended(now time.Time) bool {
	return c.SuspendedUntil != nil && c.SuspendedUntil.After(now)
}

// CanReceiveInvites is the gate checked before a brand may send an offer.
func (c *Creator) CanReceiveInvites(now time.Time) bool {
	return !c.IsPenalized(now) && !c.IsSuspended(now)
}

// BankAccount is a creator's current payout destination. Withdrawal
// verification compares these fields against the snapshot captured at
// withdrawal time.
type BankAccount struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	CreatorID string    `gorm:"column:creator_id;uniqueIndex;not null"`
	BankCode  string    `gorm:"column:bank_code;type:varchar(10);not null"`
	Agencia   string    `gorm:"column:agencia;type:varchar(10);not null"`
	AgenciaDV string    `gorm:"column:agencia_dv;type:varchar(2)"`
	Conta     string    `gorm:"column:conta;type:varchar(20);not null"`
	ContaDV   string    `gorm:"column:conta_dv;type:varchar(2)"`
	CPF       string    `gorm:"column:cpf;type:varchar(14);not null"`
	LegalName string    `gorm:"column:legal_name;type:varchar(255)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BankAccount) TableName() string { return "bank_accounts" }
