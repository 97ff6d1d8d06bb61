package timeline

import (
	"time"

	"creatorhub-platform/services/contract"
)

type MilestoneType string

const (
	TypeScriptSubmission MilestoneType = "script_submission"
	TypeScriptApproval   MilestoneType = "script_approval"
	TypeVideoSubmission  MilestoneType = "video_submission"
	TypeFinalApproval    MilestoneType = "final_approval"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDelayed   Status = "delayed"
	StatusCompleted Status = "completed"
)

// Milestone is a deadline-bound checkpoint within a contract.
//
// DelayNotifiedAt is written at most once per overdue transition; it is the
// idempotency guard for the deadline sweep. IsDelayed stays true once overdue
// processing has run, and only an approved extension clears it.
type Milestone struct {
	ID               string            `gorm:"column:id;primaryKey;type:char(26)"`
	ContractID       string            `gorm:"column:contract_id;index;not null"`
	Contract         contract.Contract `gorm:"foreignKey:ContractID"`
	MilestoneType    MilestoneType     `gorm:"column:milestone_type;type:varchar(30);not null"`
	Title            string            `gorm:"column:title;type:varchar(255);not null"`
	Position         int               `gorm:"column:position;not null"`
	Deadline         time.Time         `gorm:"column:deadline;index;not null"`
	Status           Status            `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	IsDelayed        bool              `gorm:"column:is_delayed;default:false"`
	DelayNotifiedAt  *time.Time        `gorm:"column:delay_notified_at"`
	PenaltyApplied   bool              `gorm:"column:penalty_applied;default:false"`
	PenaltyAppliedAt *time.Time        `gorm:"column:penalty_applied_at"`
	ExtensionDays    int               `gorm:"column:extension_days;default:0"`
	Justification    string            `gorm:"column:justification;type:text"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Milestone) TableName() string { return "campaign_timelines" }

// IsOverdue reports whether the deadline has passed without completion.
func (m *Milestone) IsOverdue(now time.Time) bool {
	return m.Status != StatusCompleted && m.Deadline.Before(now)
}

// defaultLadder spaces the four standard milestones across the contract's
// estimated duration.
var defaultLadder = []struct {
	Type     MilestoneType
	Title    string
	Fraction float64
}{
	{TypeScriptSubmission, "Script submission", 0.25},
	{TypeScriptApproval, "Script approval", 0.40},
	{TypeVideoSubmission, "Video submission", 0.75},
	{TypeFinalApproval, "Final approval", 1.00},
}
