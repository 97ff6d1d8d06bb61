package contract

import (
	"context"
	"time"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node, seq: p.Seq}
}

// NewFromOfferInput carries the accepted-offer fields a contract is built from.
type NewFromOfferInput struct {
	OfferID       string
	BrandID       string
	CreatorID     string
	ChatRoomID    string
	Budget        decimal.Decimal
	EstimatedDays int
}

// CreateFromOffer creates the contract for an accepted offer inside the
// caller's transaction. The unique index on offer_id makes the operation
// exactly-once: a duplicate create surfaces as a conflict.
func (s *Service) CreateFromOffer(ctx context.Context, tx *gorm.DB, in NewFromOfferInput) (*Contract, error) {
	code, err := s.seq.NextContractCode(ctx)
	if err != nil {
		return nil, err
	}

	fee, creatorAmount := SplitBudget(in.Budget)

	now := time.Now()
	completion := now.AddDate(0, 0, in.EstimatedDays)
	c := &Contract{
		ID:                   s.node.Generate().String(),
		Code:                 code,
		OfferID:              in.OfferID,
		BrandID:              in.BrandID,
		CreatorID:            in.CreatorID,
		ChatRoomID:           in.ChatRoomID,
		Budget:               in.Budget,
		PlatformFee:          fee,
		CreatorAmount:        creatorAmount,
		Status:               StatusActive,
		WorkflowStatus:       WorkflowActive,
		StartedAt:            &now,
		ExpectedCompletionAt: &completion,
	}

	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		zap.L().Error("failed to create contract", zap.String("offer_id", in.OfferID), zap.Error(err))
		return nil, err
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Contract, error) {
	var c Contract
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// SubmitForReview moves an active contract into brand review.
func (s *Service) SubmitForReview(ctx context.Context, contractID, creatorID string) error {
	return s.transitionWorkflow(ctx, contractID,
		map[string]any{"workflow_status": WorkflowWaitingReview},
		"creator_id = ? AND workflow_status = ?", creatorID, WorkflowActive)
}

// ApproveWork accepts the delivered work and opens the payment window.
func (s *Service) ApproveWork(ctx context.Context, contractID, brandID string) error {
	return s.transitionWorkflow(ctx, contractID,
		map[string]any{"workflow_status": WorkflowPaymentPending},
		"brand_id = ? AND workflow_status = ?", brandID, WorkflowWaitingReview)
}

// MarkPaymentAvailable is invoked by the payment processor after a successful
// gateway charge.
func (s *Service) MarkPaymentAvailable(ctx context.Context, tx *gorm.DB, contractID string) error {
	if tx == nil {
		tx = s.db
	}
	res := tx.WithContext(ctx).Model(&Contract{}).
		Where("id = ? AND workflow_status = ?", contractID, WorkflowPaymentPending).
		Update("workflow_status", WorkflowPaymentAvailable)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("contract not awaiting payment")
	}
	return nil
}

// MarkPaymentFailed records a declined charge on the contract.
func (s *Service) MarkPaymentFailed(ctx context.Context, tx *gorm.DB, contractID string) error {
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx).Model(&Contract{}).
		Where("id = ?", contractID).
		Update("status", StatusPaymentFailed).Error
}

// MarkPaymentWithdrawn closes the payout loop after the creator withdraws.
func (s *Service) MarkPaymentWithdrawn(ctx context.Context, tx *gorm.DB, contractID string) error {
	if tx == nil {
		tx = s.db
	}
	res := tx.WithContext(ctx).Model(&Contract{}).
		Where("id = ? AND workflow_status = ?", contractID, WorkflowPaymentAvailable).
		Updates(map[string]any{
			"workflow_status": WorkflowPaymentWithdrawn,
			"status":          StatusCompleted,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("contract payment not available for withdrawal")
	}
	return nil
}

// Terminate ends the contract; allowed from any non-terminal state.
func (s *Service) Terminate(ctx context.Context, contractID, reason string) error {
	res := s.db.WithContext(ctx).Model(&Contract{}).
		Where("id = ? AND status NOT IN ?", contractID, []Status{StatusCompleted, StatusCancelled}).
		Updates(map[string]any{
			"status":          StatusCancelled,
			"workflow_status": WorkflowTerminated,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("contract already in a terminal state")
	}
	zap.L().Info("contract terminated", zap.String("contract_id", contractID), zap.String("reason", reason))
	return nil
}

func (s *Service) transitionWorkflow(ctx context.Context, contractID string, updates map[string]any, guard string, args ...any) error {
	res := s.db.WithContext(ctx).Model(&Contract{}).
		Where("id = ?", contractID).
		Where(guard, args...).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("illegal contract workflow transition")
	}
	return nil
}
