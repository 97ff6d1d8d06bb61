package creator

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In

	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

func (s *Service) Get(ctx context.Context, id string) (*Creator, error) {
	var c Creator
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) BankAccount(ctx context.Context, creatorID string) (*BankAccount, error) {
	var acc BankAccount
	if err := s.db.WithContext(ctx).Where("creator_id = ?", creatorID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// ApplyInvitePenalty places a 7-day invite block on the creator. The update is
// guarded so an already-active window is left untouched; it returns whether
// the penalty was actually applied.
func (s *Service) ApplyInvitePenalty(ctx context.Context, tx *gorm.DB, creatorID, milestoneID, reason string, until time.Time) (bool, error) {
	if tx == nil {
		tx = s.db
	}

	now := time.Now()
	res := tx.WithContext(ctx).Model(&Creator{}).
		Where("id = ?", creatorID).
		Where("penalty_until IS NULL OR penalty_until < ?", now).
		Updates(map[string]any{
			"penalty_until":        until,
			"penalty_reason":       reason,
			"penalty_milestone_id": milestoneID,
		})
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected > 0 {
		zap.L().Info("invite penalty applied",
			zap.String("creator_id", creatorID),
			zap.String("milestone_id", milestoneID),
			zap.Time("until", until),
		)
	}
	return res.RowsAffected > 0, nil
}

// Suspend places an account suspension on the creator. Same no-stacking guard
// as ApplyInvitePenalty: a window still in the future is never extended.
func (s *Service) Suspend(ctx context.Context, tx *gorm.DB, creatorID, reason string, until time.Time) (bool, error) {
	if tx == nil {
		tx = s.db
	}

	now := time.Now()
	res := tx.WithContext(ctx).Model(&Creator{}).
		Where("id = ?", creatorID).
		Where("suspended_until IS NULL OR suspended_until < ?", now).
		Updates(map[string]any{
			"suspended_until":   until,
			"suspension_reason": reason,
			"suspension_count":  gorm.Expr("suspension_count + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected > 0 {
		zap.L().Warn("creator suspended",
			zap.String("creator_id", creatorID),
			zap.String("reason", reason),
			zap.Time("until", until),
		)
	}
	return res.RowsAffected > 0, nil
}
