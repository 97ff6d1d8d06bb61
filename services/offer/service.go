package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"
	"creatorhub-platform/services/timeline"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	creators  *creator.Service
	contracts *contract.Service
	timelines *timeline.Service
	chat      *chat.Service
	notifier  *notification.Service
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Creators  *creator.Service
	Contracts *contract.Service
	Timelines *timeline.Service
	Chat      *chat.Service
	Notifier  *notification.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		creators:  p.Creators,
		contracts: p.Contracts,
		timelines: p.Timelines,
		chat:      p.Chat,
		notifier:  p.Notifier,
	}
}

type CreateInput struct {
	BrandID       string
	CreatorID     string
	ChatRoomID    string
	Budget        decimal.Decimal
	EstimatedDays int
}

// Create opens a pending offer to a creator. Creators under an active penalty
// or suspension window cannot be invited.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Offer, error) {
	if in.Budget.LessThanOrEqual(decimal.Zero) {
		return nil, errutil.ValidationFailed("budget must be positive")
	}
	if in.EstimatedDays <= 0 {
		return nil, errutil.ValidationFailed("estimated days must be positive")
	}

	c, err := s.creators.Get(ctx, in.CreatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("creator not found")
		}
		return nil, err
	}
	if !c.CanReceiveInvites(time.Now()) {
		return nil, errutil.Forbidden("creator cannot receive invitations at this time")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&Offer{}).
		Where("brand_id = ? AND creator_id = ? AND status = ?", in.BrandID, in.CreatorID, StatusPending).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, errutil.Conflict("a pending offer to this creator already exists")
	}

	o := &Offer{
		ID:            s.node.Generate().String(),
		BrandID:       in.BrandID,
		CreatorID:     in.CreatorID,
		ChatRoomID:    in.ChatRoomID,
		Budget:        in.Budget,
		EstimatedDays: in.EstimatedDays,
		Status:        StatusPending,
		ExpiresAt:     time.Now().Add(TTL),
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}

	if _, err := s.chat.PostOffer(ctx, in.ChatRoomID, in.BrandID,
		fmt.Sprintf("New offer: %s for %d day(s)", in.Budget.StringFixed(2), in.EstimatedDays),
		chat.OfferPayload{
			OfferID:       o.ID,
			Budget:        o.Budget.StringFixed(2),
			EstimatedDays: o.EstimatedDays,
			Status:        string(o.Status),
			ExpiresAt:     o.ExpiresAt,
		}); err != nil {
		zap.L().Warn("failed to post offer chat message", zap.String("offer_id", o.ID), zap.Error(err))
	}

	if err := s.notifier.Dispatch(ctx, notification.Event{
		Kind:       notification.KindOfferReceived,
		Title:      "New offer received",
		Message:    fmt.Sprintf("You received an offer of %s.", o.Budget.StringFixed(2)),
		Recipients: []string{o.CreatorID},
		Payload:    s.payload(o),
	}); err != nil {
		zap.L().Warn("failed to notify offer", zap.String("offer_id", o.ID), zap.Error(err))
	}

	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Offer, error) {
	var o Offer
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// Accept moves a pending offer to accepted and creates its contract with the
// default milestone ladder, all in one transaction. The guarded update makes
// acceptance exactly-once: whichever caller flips the row wins, everyone else
// gets a conflict.
func (s *Service) Accept(ctx context.Context, offerID, creatorID string) (*contract.Contract, error) {
	var created *contract.Contract

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Offer{}).
			Where("id = ? AND creator_id = ? AND status = ?", offerID, creatorID, StatusPending).
			Update("status", StatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("offer is not pending")
		}

		var o Offer
		if err := tx.Where("id = ?", offerID).First(&o).Error; err != nil {
			return err
		}

		c, err := s.contracts.CreateFromOffer(ctx, tx, contract.NewFromOfferInput{
			OfferID:       o.ID,
			BrandID:       o.BrandID,
			CreatorID:     o.CreatorID,
			ChatRoomID:    o.ChatRoomID,
			Budget:        o.Budget,
			EstimatedDays: o.EstimatedDays,
		})
		if err != nil {
			return err
		}

		if _, err := s.timelines.CreateDefaultLadder(ctx, tx, c, o.EstimatedDays); err != nil {
			return err
		}

		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Dispatch(ctx, notification.Event{
		Kind:        notification.KindOfferAccepted,
		Title:       "Offer accepted",
		Message:     fmt.Sprintf("Your offer was accepted. Contract %s is now active.", created.Code),
		Recipients:  []string{created.BrandID},
		Payload:     notification.OfferPayload{OfferID: offerID, BrandID: created.BrandID, CreatorID: created.CreatorID, Budget: created.Budget.StringFixed(2)},
		ChatRoomID:  created.ChatRoomID,
		ChatMessage: fmt.Sprintf("Offer accepted — contract %s started.", created.Code),
	}); err != nil {
		zap.L().Warn("failed to notify acceptance", zap.String("offer_id", offerID), zap.Error(err))
	}

	return created, nil
}

// Reject is the creator-side terminal transition.
func (s *Service) Reject(ctx context.Context, offerID, creatorID string) error {
	if err := s.transition(ctx, offerID, StatusRejected, "creator_id = ?", creatorID); err != nil {
		return err
	}

	o, err := s.Get(ctx, offerID)
	if err != nil {
		return err
	}
	if err := s.notifier.Dispatch(ctx, notification.Event{
		Kind:       notification.KindOfferRejected,
		Title:      "Offer rejected",
		Message:    "The creator declined your offer.",
		Recipients: []string{o.BrandID},
		Payload:    s.payload(o),
	}); err != nil {
		zap.L().Warn("failed to notify rejection", zap.String("offer_id", offerID), zap.Error(err))
	}
	return nil
}

// Cancel is the brand-side terminal transition.
func (s *Service) Cancel(ctx context.Context, offerID, brandID string) error {
	return s.transition(ctx, offerID, StatusCancelled, "brand_id = ?", brandID)
}

func (s *Service) transition(ctx context.Context, offerID string, to Status, guard string, args ...any) error {
	where := append([]any{offerID, StatusPending}, args...)
	res := s.db.WithContext(ctx).Model(&Offer{}).
		Where("id = ? AND status = ? AND "+guard, where...).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("offer is not pending")
	}
	return nil
}

// ExpireDue closes every pending offer whose expiry has passed. A single
// conditional UPDATE keeps the sweep idempotent and race-free: a second run,
// or an overlapping one, simply matches zero rows.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Offer{}).
		Where("status = ? AND expires_at <= ?", StatusPending, now).
		Update("status", StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		zap.L().Info("expired pending offers", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *Service) payload(o *Offer) notification.OfferPayload {
	return notification.OfferPayload{
		OfferID:   o.ID,
		BrandID:   o.BrandID,
		CreatorID: o.CreatorID,
		Budget:    o.Budget.StringFixed(2),
		ExpiresAt: o.ExpiresAt,
	}
}
