package timeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxExtensionDays caps a creator-requested deadline extension.
const MaxExtensionDays = 7

// Notifier fans out workflow events. Satisfied by *notification.Service.
type Notifier interface {
	Dispatch(ctx context.Context, ev notification.Event) error
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	creators *creator.Service
	notifier Notifier
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Creators *creator.Service
	Notifier *notification.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		creators: p.Creators,
		notifier: p.Notifier,
	}
}

// CreateDefaultLadder creates the four standard milestones for a new
// contract inside the caller's transaction, spacing deadlines across the
// estimated duration.
func (s *Service) CreateDefaultLadder(ctx context.Context, tx *gorm.DB, c *contract.Contract, estimatedDays int) ([]*Milestone, error) {
	if estimatedDays <= 0 {
		return nil, errutil.ValidationFailed("estimated days must be positive")
	}

	start := time.Now()
	if c.StartedAt != nil {
		start = *c.StartedAt
	}

	milestones := make([]*Milestone, 0, len(defaultLadder))
	for i, step := range defaultLadder {
		offset := int(math.Ceil(float64(estimatedDays) * step.Fraction))
		milestones = append(milestones, &Milestone{
			ID:            s.node.Generate().String(),
			ContractID:    c.ID,
			MilestoneType: step.Type,
			Title:         step.Title,
			Position:      i + 1,
			Deadline:      start.AddDate(0, 0, offset),
			Status:        StatusPending,
		})
	}

	if err := tx.WithContext(ctx).Create(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Milestone, error) {
	var m Milestone
	if err := s.db.WithContext(ctx).Preload("Contract").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Approve marks a milestone approved by the brand.
func (s *Service) Approve(ctx context.Context, milestoneID, brandID string) error {
	m, err := s.Get(ctx, milestoneID)
	if err != nil {
		return err
	}
	if m.Contract.BrandID != brandID {
		return errutil.Forbidden("milestone belongs to another brand")
	}

	res := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("id = ? AND status = ?", milestoneID, StatusPending).
		Update("status", StatusApproved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("milestone is not pending approval")
	}
	return nil
}

// Complete marks a milestone done. The ladder is ordered: a milestone cannot
// complete while an earlier one is still open.
func (s *Service) Complete(ctx context.Context, milestoneID, brandID string) error {
	m, err := s.Get(ctx, milestoneID)
	if err != nil {
		return err
	}
	if m.Contract.BrandID != brandID {
		return errutil.Forbidden("milestone belongs to another brand")
	}

	var openEarlier int64
	if err := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("contract_id = ? AND position < ? AND status <> ?", m.ContractID, m.Position, StatusCompleted).
		Count(&openEarlier).Error; err != nil {
		return err
	}
	if openEarlier > 0 {
		return errutil.UnprocessableEntity("earlier milestones are still open")
	}

	res := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("id = ? AND status <> ?", milestoneID, StatusCompleted).
		Update("status", StatusCompleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("milestone already completed")
	}

	// last milestone done moves the contract into review
	if m.Position == len(defaultLadder) {
		if err := s.db.WithContext(ctx).Model(&contract.Contract{}).
			Where("id = ? AND workflow_status = ?", m.ContractID, contract.WorkflowActive).
			Update("workflow_status", contract.WorkflowWaitingReview).Error; err != nil {
			zap.L().Warn("failed to move contract to review", zap.String("contract_id", m.ContractID), zap.Error(err))
		}
	}
	return nil
}

// RequestExtension lets the creator push a delayed milestone's deadline once,
// by at most MaxExtensionDays. The extension clears the delay flags so the
// sweep treats the milestone as fresh against its new deadline.
func (s *Service) RequestExtension(ctx context.Context, milestoneID, creatorID string, days int, justification string) error {
	if days <= 0 || days > MaxExtensionDays {
		return errutil.ValidationFailed(fmt.Sprintf("extension must be between 1 and %d days", MaxExtensionDays))
	}
	if justification == "" {
		return errutil.ValidationFailed("justification is required")
	}

	m, err := s.Get(ctx, milestoneID)
	if err != nil {
		return err
	}
	if m.Contract.CreatorID != creatorID {
		return errutil.Forbidden("milestone belongs to another creator")
	}

	res := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("id = ? AND status = ? AND extension_days = 0", milestoneID, StatusDelayed).
		Updates(map[string]any{
			"deadline":          m.Deadline.AddDate(0, 0, days),
			"status":            StatusPending,
			"is_delayed":        false,
			"delay_notified_at": nil,
			"extension_days":    days,
			"justification":     justification,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("milestone is not delayed or was already extended")
	}

	if err := s.notifier.Dispatch(ctx, notification.Event{
		Kind:       notification.KindExtensionRequested,
		Title:      "Deadline extension granted",
		Message:    fmt.Sprintf("The deadline for %q was extended by %d day(s).", m.Title, days),
		Recipients: []string{m.Contract.BrandID},
		Payload: notification.ExtensionPayload{
			MilestoneID:   m.ID,
			ContractID:    m.ContractID,
			Days:          days,
			Justification: justification,
		},
		ChatRoomID: m.Contract.ChatRoomID,
	}); err != nil {
		zap.L().Warn("failed to notify extension", zap.String("milestone_id", m.ID), zap.Error(err))
	}

	return nil
}
