package timeline

import (
	"context"
	"fmt"
	"time"

	"creatorhub-platform/services/notification"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// JustificationWindowHours is how long a creator has to justify a delay
	// before escalation is considered final.
	JustificationWindowHours = 24

	// PenaltyDays is the length of both the invite penalty and the account
	// suspension window.
	PenaltyDays = 7

	// penaltyOverdueAge is how long a single milestone must be overdue
	// before it draws an invite penalty on its own.
	penaltyOverdueAge = 7 * 24 * time.Hour

	// suspensionThreshold is the number of concurrently overdue milestones
	// that triggers an account suspension.
	suspensionThreshold = 2
)

// Summary is the sweep result reported to the operator.
type Summary struct {
	Processed          int
	WarningsSent       int
	PenaltiesApplied   int
	SuspensionsApplied int
	Errors             int
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d warnings_sent=%d penalties_applied=%d suspensions_applied=%d errors=%d",
		s.Processed, s.WarningsSent, s.PenaltiesApplied, s.SuspensionsApplied, s.Errors)
}

// CheckDeadlines is the milestone deadline sweep. It finds overdue,
// un-notified milestones, marks them delayed, notifies both parties, and
// escalates repeat or long-running delays to penalties or suspensions.
//
// Each milestone is processed independently: a failure is logged and counted,
// never aborting the rest of the sweep. Idempotency and safety under
// overlapping runs come from the conditional update on delay_notified_at;
// a concurrent sweep that loses the update race skips the milestone.
func (s *Service) CheckDeadlines(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	var due []Milestone
	if err := s.db.WithContext(ctx).
		Preload("Contract").
		Where("deadline < ? AND status <> ? AND delay_notified_at IS NULL", now, StatusCompleted).
		Order("deadline ASC").
		Find(&due).Error; err != nil {
		return summary, err
	}

	if len(due) == 0 {
		return summary, nil
	}

	// One overdue-count snapshot per sweep. Escalation decisions below all
	// read from this map so a creator is not double-counted as rows change
	// mid-sweep.
	overdue, err := s.overdueCountByCreator(ctx, now)
	if err != nil {
		return summary, err
	}

	for i := range due {
		m := &due[i]

		claimed, err := s.claimDelay(ctx, m.ID, now)
		if err != nil {
			zap.L().Error("failed to mark milestone delayed", zap.String("milestone_id", m.ID), zap.Error(err))
			summary.Errors++
			continue
		}
		if !claimed {
			continue
		}
		summary.Processed++

		if err := s.notifyDelay(ctx, m, now); err != nil {
			zap.L().Error("failed to send delay notifications", zap.String("milestone_id", m.ID), zap.Error(err))
			summary.Errors++
		} else {
			summary.WarningsSent++
		}

		if err := s.escalate(ctx, m, overdue[m.Contract.CreatorID], now, &summary); err != nil {
			zap.L().Error("failed to escalate overdue milestone", zap.String("milestone_id", m.ID), zap.Error(err))
			summary.Errors++
		}
	}

	zap.L().Info("deadline sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("warnings_sent", summary.WarningsSent),
		zap.Int("penalties_applied", summary.PenaltiesApplied),
		zap.Int("suspensions_applied", summary.SuspensionsApplied),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// claimDelay performs the guarded delayed transition. RowsAffected zero means
// another sweep got here first.
func (s *Service) claimDelay(ctx context.Context, milestoneID string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Milestone{}).
		Where("id = ? AND delay_notified_at IS NULL AND status <> ?", milestoneID, StatusCompleted).
		Updates(map[string]any{
			"status":            StatusDelayed,
			"is_delayed":        true,
			"delay_notified_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Service) notifyDelay(ctx context.Context, m *Milestone, now time.Time) error {
	msg := fmt.Sprintf(
		"Milestone %q is overdue (deadline %s). The creator has %d hours to submit a justification.",
		m.Title, m.Deadline.Format("2006-01-02"), JustificationWindowHours,
	)

	return s.notifier.Dispatch(ctx, notification.Event{
		Kind:       notification.KindMilestoneOverdue,
		Title:      "Milestone overdue",
		Message:    msg,
		Recipients: []string{m.Contract.CreatorID, m.Contract.BrandID},
		Payload: notification.OverduePayload{
			MilestoneID:        m.ID,
			ContractID:         m.ContractID,
			MilestoneType:      string(m.MilestoneType),
			Deadline:           m.Deadline,
			JustificationHours: JustificationWindowHours,
		},
		ChatRoomID: m.Contract.ChatRoomID,
	})
}

// escalate applies the penalty rules in order of severity: repeated overdue
// milestones suspend the account, a single long-overdue milestone draws an
// invite penalty. Both windows are no-stacking; an active one is left alone.
func (s *Service) escalate(ctx context.Context, m *Milestone, overdueCount int, now time.Time, summary *Summary) error {
	creatorID := m.Contract.CreatorID
	until := now.AddDate(0, 0, PenaltyDays)

	if overdueCount >= suspensionThreshold {
		reason := fmt.Sprintf("%d milestones overdue across active contracts", overdueCount)
		applied, err := s.creators.Suspend(ctx, nil, creatorID, reason, until)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		summary.SuspensionsApplied++

		return s.notifier.Dispatch(ctx, notification.Event{
			Kind:       notification.KindCreatorSuspended,
			Title:      "Account suspended",
			Message:    fmt.Sprintf("Your account is suspended until %s: %s.", until.Format("2006-01-02"), reason),
			Recipients: []string{creatorID},
			Payload: notification.SuspensionPayload{
				CreatorID:    creatorID,
				OverdueCount: overdueCount,
				Until:        until,
			},
		})
	}

	if now.Sub(m.Deadline) >= penaltyOverdueAge && !m.PenaltyApplied {
		reason := fmt.Sprintf("milestone %q overdue for more than %d days", m.Title, PenaltyDays)

		// milestone flag and creator window move together
		var penaltyApplied bool
		err := s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.WithContext(ctx).Model(&Milestone{}).
				Where("id = ? AND penalty_applied = ?", m.ID, false).
				Updates(map[string]any{
					"penalty_applied":    true,
					"penalty_applied_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			applied, err := s.creators.ApplyInvitePenalty(ctx, tx, creatorID, m.ID, reason, until)
			if err != nil {
				return err
			}
			penaltyApplied = applied
			return nil
		})
		if err != nil {
			return err
		}

		if penaltyApplied {
			summary.PenaltiesApplied++
			return s.notifier.Dispatch(ctx, notification.Event{
				Kind:       notification.KindMilestonePenalty,
				Title:      "Invitation penalty applied",
				Message:    fmt.Sprintf("You cannot receive new invitations until %s: %s.", until.Format("2006-01-02"), reason),
				Recipients: []string{creatorID},
				Payload: notification.PenaltyPayload{
					MilestoneID: m.ID,
					CreatorID:   creatorID,
					Reason:      reason,
					Until:       until,
				},
			})
		}
	}

	return nil
}

type creatorOverdue struct {
	CreatorID string
	Total     int
}

func (s *Service) overdueCountByCreator(ctx context.Context, now time.Time) (map[string]int, error) {
	var rows []creatorOverdue
	err := s.db.WithContext(ctx).Model(&Milestone{}).
		Select("contracts.creator_id AS creator_id, COUNT(*) AS total").
		Joins("JOIN contracts ON contracts.id = campaign_timelines.contract_id").
		Where("campaign_timelines.deadline < ? AND campaign_timelines.status <> ?", now, StatusCompleted).
		Group("contracts.creator_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.CreatorID] = r.Total
	}
	return counts, nil
}
