package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/pkg/gateway"
	"creatorhub-platform/pkg/sequence"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gateway is the slice of the payment gateway the processor needs.
// Satisfied by *gateway.Client.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderResponse, error)
	CreateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error)
}

type Processor struct {
	db        *gorm.DB
	node      *snowflake.Node
	gw        Gateway
	seq       sequence.Generator
	creators  *creator.Service
	contracts *contract.Service
	notifier  *notification.Service
}

type ProcessorParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Gateway   *gateway.Client
	Seq       sequence.Generator
	Creators  *creator.Service
	Contracts *contract.Service
	Notifier  *notification.Service
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		db:        p.DB,
		node:      p.Node,
		gw:        p.Gateway,
		seq:       p.Seq,
		creators:  p.Creators,
		contracts: p.Contracts,
		notifier:  p.Notifier,
	}
}

// BatchResult is the summary a batch command prints.
type BatchResult struct {
	Processed int
	Failed    int
}

func (r BatchResult) String() string {
	return fmt.Sprintf("processed=%d failed=%d", r.Processed, r.Failed)
}

// ProcessPayment charges the gateway for one pending payment. The guarded
// pending→processing claim makes the call safe under overlapping batch runs:
// only the claimer proceeds to the gateway.
//
// A timeout or gateway outage leaves the outcome unknown, so the record is
// returned to pending for a later run instead of being marked failed —
// until MaxAttempts, after which it is dead-lettered as failed.
func (p *Processor) ProcessPayment(ctx context.Context, paymentID string) error {
	claimed, err := p.claim(ctx, &JobPayment{}, paymentID)
	if err != nil {
		return err
	}
	if !claimed {
		return errutil.Conflict("payment is not pending")
	}

	var pay JobPayment
	if err := p.db.WithContext(ctx).Where("id = ?", paymentID).First(&pay).Error; err != nil {
		return err
	}

	resp, err := p.gw.CreateOrder(ctx, gateway.OrderRequest{
		CustomerID: pay.BrandID,
		Code:       pay.ID,
		Items: []gateway.OrderItem{{
			Description: fmt.Sprintf("Contract %s funding", pay.ContractID),
			Quantity:    1,
			Amount:      MinorUnits(pay.Amount),
		}},
	})
	if err != nil {
		return p.settlePaymentError(ctx, &pay, err)
	}

	if resp.Status != gateway.StatusPaid {
		return p.failPayment(ctx, &pay, fmt.Sprintf("gateway returned status %q", resp.Status))
	}

	now := time.Now()
	if err := p.db.WithContext(ctx).Model(&JobPayment{}).
		Where("id = ? AND status = ?", pay.ID, StatusProcessing).
		Updates(map[string]any{
			"status":           StatusCompleted,
			"gateway_order_id": resp.ID,
			"last_error":       "",
			"updated_at":       now,
		}).Error; err != nil {
		return err
	}

	if err := p.contracts.MarkPaymentAvailable(ctx, nil, pay.ContractID); err != nil {
		zap.L().Warn("payment completed but contract not updated",
			zap.String("payment_id", pay.ID),
			zap.String("contract_id", pay.ContractID),
			zap.Error(err),
		)
	}

	p.notify(ctx, notification.KindPaymentCompleted, "Payment completed",
		fmt.Sprintf("Funding of %s for contract %s is confirmed.", pay.Amount.StringFixed(2), pay.ContractID),
		[]string{pay.BrandID},
		notification.PaymentPayload{PaymentID: pay.ID, ContractID: pay.ContractID, Amount: pay.Amount.StringFixed(2), Status: string(StatusCompleted)})

	return nil
}

// ProcessWithdrawal pays out one pending withdrawal. The creator's current
// bank account is snapshotted into the record before the transfer so a later
// audit can detect post-hoc account swaps.
func (p *Processor) ProcessWithdrawal(ctx context.Context, withdrawalID string) error {
	claimed, err := p.claim(ctx, &Withdrawal{}, withdrawalID)
	if err != nil {
		return err
	}
	if !claimed {
		return errutil.Conflict("withdrawal is not pending")
	}

	var w Withdrawal
	if err := p.db.WithContext(ctx).Where("id = ?", withdrawalID).First(&w).Error; err != nil {
		return err
	}

	acc, err := p.creators.BankAccount(ctx, w.CreatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p.failWithdrawal(ctx, &w, "creator has no bank account on file")
		}
		return err
	}

	details := gateway.BankDetails{
		BankCode:  acc.BankCode,
		Agencia:   acc.Agencia,
		AgenciaDV: acc.AgenciaDV,
		Conta:     acc.Conta,
		ContaDV:   acc.ContaDV,
		CPF:       acc.CPF,
		LegalName: acc.LegalName,
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("id = ?", w.ID).
		Update("withdrawal_details", datatypes.JSON(raw)).Error; err != nil {
		return err
	}

	resp, err := p.gw.CreateTransfer(ctx, gateway.TransferRequest{
		Code:        w.Code,
		Amount:      MinorUnits(w.Amount),
		BankAccount: details,
	})
	if err != nil {
		return p.settleWithdrawalError(ctx, &w, err)
	}

	now := time.Now()
	if err := p.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("id = ? AND status = ?", w.ID, StatusProcessing).
		Updates(map[string]any{
			"status":         StatusCompleted,
			"transaction_id": resp.ID,
			"processed_at":   now,
			"last_error":     "",
		}).Error; err != nil {
		return err
	}

	p.notify(ctx, notification.KindWithdrawalCompleted, "Withdrawal completed",
		fmt.Sprintf("Your withdrawal of %s was transferred.", w.Amount.StringFixed(2)),
		[]string{w.CreatorID},
		notification.WithdrawalPayload{WithdrawalID: w.ID, Amount: w.Amount.StringFixed(2), Status: string(StatusCompleted), TransactionID: resp.ID})

	return nil
}

// RunPaymentBatch processes every pending payment. Per-record failures are
// expected: they are logged, counted, and never abort the batch.
func (p *Processor) RunPaymentBatch(ctx context.Context) (BatchResult, error) {
	var ids []string
	if err := p.db.WithContext(ctx).Model(&JobPayment{}).
		Where("status = ? AND attempts < ?", StatusPending, MaxAttempts).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return BatchResult{}, err
	}

	return p.runBatch(ctx, "payment", ids, p.ProcessPayment), nil
}

// RunWithdrawalBatch processes every pending withdrawal.
func (p *Processor) RunWithdrawalBatch(ctx context.Context) (BatchResult, error) {
	var ids []string
	if err := p.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("status = ? AND attempts < ?", StatusPending, MaxAttempts).
		Order("requested_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return BatchResult{}, err
	}

	return p.runBatch(ctx, "withdrawal", ids, p.ProcessWithdrawal), nil
}

func (p *Processor) runBatch(ctx context.Context, kind string, ids []string, process func(context.Context, string) error) BatchResult {
	var result BatchResult
	for _, id := range ids {
		if err := process(ctx, id); err != nil {
			zap.L().Error("record failed in batch",
				zap.String("kind", kind),
				zap.String("id", id),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		result.Processed++
	}

	zap.L().Info("batch finished",
		zap.String("kind", kind),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result
}

// claim flips pending→processing and bumps the attempt counter in one guarded
// update.
func (p *Processor) claim(ctx context.Context, model any, id string) (bool, error) {
	res := p.db.WithContext(ctx).Model(model).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{
			"status":   StatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	return res.RowsAffected > 0, res.Error
}

func (p *Processor) settlePaymentError(ctx context.Context, pay *JobPayment, callErr error) error {
	// Attempts is already post-claim here, so the budget check is direct:
	// a record that has used all MaxAttempts gateway calls dead-letters.
	if gateway.IsRetryable(callErr) && pay.Attempts < MaxAttempts {
		// outcome unknown: hand the record back to a later run
		return p.db.WithContext(ctx).Model(&JobPayment{}).
			Where("id = ? AND status = ?", pay.ID, StatusProcessing).
			Updates(map[string]any{
				"status":     StatusPending,
				"last_error": callErr.Error(),
			}).Error
	}
	return p.failPayment(ctx, pay, callErr.Error())
}

func (p *Processor) failPayment(ctx context.Context, pay *JobPayment, reason string) error {
	if err := p.db.WithContext(ctx).Model(&JobPayment{}).
		Where("id = ? AND status = ?", pay.ID, StatusProcessing).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": reason,
		}).Error; err != nil {
		return err
	}

	if err := p.contracts.MarkPaymentFailed(ctx, nil, pay.ContractID); err != nil {
		zap.L().Warn("failed to flag contract payment failure",
			zap.String("contract_id", pay.ContractID), zap.Error(err))
	}

	p.notify(ctx, notification.KindPaymentFailed, "Payment failed",
		fmt.Sprintf("Funding for contract %s failed: %s", pay.ContractID, reason),
		[]string{pay.BrandID},
		notification.PaymentPayload{PaymentID: pay.ID, ContractID: pay.ContractID, Amount: pay.Amount.StringFixed(2), Status: string(StatusFailed)})

	return errutil.GatewayDeclined(reason)
}

func (p *Processor) settleWithdrawalError(ctx context.Context, w *Withdrawal, callErr error) error {
	if gateway.IsRetryable(callErr) && w.Attempts < MaxAttempts {
		return p.db.WithContext(ctx).Model(&Withdrawal{}).
			Where("id = ? AND status = ?", w.ID, StatusProcessing).
			Updates(map[string]any{
				"status":     StatusPending,
				"last_error": callErr.Error(),
			}).Error
	}
	return p.failWithdrawal(ctx, w, callErr.Error())
}

func (p *Processor) failWithdrawal(ctx context.Context, w *Withdrawal, reason string) error {
	if err := p.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("id = ? AND status = ?", w.ID, StatusProcessing).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": reason,
		}).Error; err != nil {
		return err
	}

	p.notify(ctx, notification.KindWithdrawalFailed, "Withdrawal failed",
		fmt.Sprintf("Your withdrawal of %s failed: %s", w.Amount.StringFixed(2), reason),
		[]string{w.CreatorID},
		notification.WithdrawalPayload{WithdrawalID: w.ID, Amount: w.Amount.StringFixed(2), Status: string(StatusFailed), Reason: reason})

	return errutil.GatewayDeclined(reason)
}

func (p *Processor) notify(ctx context.Context, kind notification.Kind, title, message string, recipients []string, payload any) {
	if err := p.notifier.Dispatch(ctx, notification.Event{
		Kind:       kind,
		Title:      title,
		Message:    message,
		Recipients: recipients,
		Payload:    payload,
	}); err != nil {
		zap.L().Warn("failed to dispatch payment notification", zap.String("kind", string(kind)), zap.Error(err))
	}
}
