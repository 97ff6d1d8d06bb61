package task

import (
	"time"

	"gorm.io/datatypes"
)

// Job is an execution record for one sweep run.
type Job struct {
	ID          string         `gorm:"column:id;primaryKey;type:char(26)"`
	TaskName    string         `gorm:"column:task_name;index;not null"`
	Status      string         `gorm:"column:status;type:varchar(20);default:'pending'"` // pending|running|success|failed
	ErrorMsg    string         `gorm:"column:error_msg;type:text"`
	Summary     string         `gorm:"column:summary;type:text"`
	StartedAt   *time.Time     `gorm:"column:started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
}

func (Job) TableName() string { return "jobs" }
