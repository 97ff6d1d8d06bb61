package payment

import (
	"context"
	"errors"

	"creatorhub-platform/pkg/errutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateForContract opens a pending charge for a contract awaiting funding.
// The batch processor picks it up on the next run.
func (p *Processor) CreateForContract(ctx context.Context, contractID, brandID string, amount decimal.Decimal) (*JobPayment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errutil.ValidationFailed("amount must be positive")
	}

	pay := &JobPayment{
		ID:         p.node.Generate().String(),
		ContractID: contractID,
		BrandID:    brandID,
		Amount:     amount,
		Status:     StatusPending,
	}
	if err := p.db.WithContext(ctx).Create(pay).Error; err != nil {
		return nil, err
	}
	return pay, nil
}

// RequestWithdrawal lets a creator withdraw a contract's released amount.
// The contract transition is guarded, so a double request cannot create two
// withdrawals for the same payout.
func (p *Processor) RequestWithdrawal(ctx context.Context, contractID, creatorID string) (*Withdrawal, error) {
	c, err := p.contracts.Get(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("contract not found")
		}
		return nil, err
	}
	if c.CreatorID != creatorID {
		return nil, errutil.Forbidden("contract belongs to another creator")
	}

	code, err := p.seq.NextWithdrawalCode(ctx)
	if err != nil {
		return nil, err
	}

	var w *Withdrawal
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.contracts.MarkPaymentWithdrawn(ctx, tx, contractID); err != nil {
			return err
		}

		w = &Withdrawal{
			ID:        p.node.Generate().String(),
			Code:      code,
			CreatorID: creatorID,
			Amount:    c.CreatorAmount,
			Status:    StatusPending,
		}
		return tx.Create(w).Error
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
