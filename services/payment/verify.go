package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorhub-platform/pkg/gateway"
	"creatorhub-platform/services/creator"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxWithdrawalAmount is the gateway's single-transfer cap.
var MaxWithdrawalAmount = decimal.NewFromInt(50000)

// MaxProcessingTime flags withdrawals that took too long to settle.
const MaxProcessingTime = 72 * time.Hour

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
	OutcomePassed  Outcome = "passed"
)

type VerifyFilter struct {
	ID        string
	Status    string
	Method    string
	StartDate *time.Time
	EndDate   *time.Time
}

type VerifyResult struct {
	Withdrawal *Withdrawal
	Outcome    Outcome
	Reasons    []string
}

type VerifyReport struct {
	Total   int
	Passed  int
	Failed  int
	Pending int
	Results []VerifyResult
}

// VerifyWithdrawals is a read-only audit over withdrawals: it cross-checks
// the bank details snapshotted at processing time against the creator's
// current account and a set of sanity rules. It mutates nothing.
func (p *Processor) VerifyWithdrawals(ctx context.Context, filter VerifyFilter) (*VerifyReport, error) {
	q := p.db.WithContext(ctx).Model(&Withdrawal{})
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.StartDate != nil {
		q = q.Where("requested_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("requested_at <= ?", *filter.EndDate)
	}

	var withdrawals []*Withdrawal
	if err := q.Order("requested_at ASC").Find(&withdrawals).Error; err != nil {
		return nil, err
	}

	report := &VerifyReport{Total: len(withdrawals)}
	for _, w := range withdrawals {
		result := p.verifyOne(ctx, w)
		switch result.Outcome {
		case OutcomePassed:
			report.Passed++
		case OutcomeFailed:
			report.Failed++
		default:
			report.Pending++
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}

func (p *Processor) verifyOne(ctx context.Context, w *Withdrawal) VerifyResult {
	result := VerifyResult{Withdrawal: w}

	switch w.Status {
	case StatusPending, StatusProcessing:
		result.Outcome = OutcomePending
		return result
	case StatusFailed, StatusCancelled:
		result.Outcome = OutcomeFailed
		result.Reasons = append(result.Reasons, fmt.Sprintf("terminal status %q", w.Status))
		return result
	}

	var reasons []string

	if w.Amount.LessThanOrEqual(decimal.Zero) {
		reasons = append(reasons, "non-positive amount")
	}
	if w.Amount.GreaterThan(MaxWithdrawalAmount) {
		reasons = append(reasons, fmt.Sprintf("amount above transfer cap %s", MaxWithdrawalAmount.StringFixed(2)))
	}
	if w.TransactionID == "" {
		reasons = append(reasons, "missing gateway transaction id")
	}
	if w.ProcessedAt != nil && w.ProcessedAt.Sub(w.RequestedAt) > MaxProcessingTime {
		reasons = append(reasons, fmt.Sprintf("processing took longer than %s", MaxProcessingTime))
	}

	details, err := w.DecodeDetails()
	if err != nil || details == nil {
		reasons = append(reasons, "missing or malformed bank detail snapshot")
	} else {
		acc, err := p.creators.BankAccount(ctx, w.CreatorID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			reasons = append(reasons, "creator has no current bank account")
		case err != nil:
			reasons = append(reasons, fmt.Sprintf("bank account lookup failed: %v", err))
		default:
			reasons = append(reasons, diffBankDetails(details, acc)...)
		}
	}

	if len(reasons) > 0 {
		result.Outcome = OutcomeFailed
		result.Reasons = reasons
		return result
	}

	result.Outcome = OutcomePassed
	return result
}

func diffBankDetails(snapshot *gateway.BankDetails, current *creator.BankAccount) []string {
	var mismatches []string
	check := func(field, snap, cur string) {
		if snap != cur {
			mismatches = append(mismatches, fmt.Sprintf("%s mismatch: snapshot %q vs current %q", field, snap, cur))
		}
	}

	check("bank_code", snapshot.BankCode, current.BankCode)
	check("agencia", snapshot.Agencia, current.Agencia)
	check("agencia_dv", snapshot.AgenciaDV, current.AgenciaDV)
	check("conta", snapshot.Conta, current.Conta)
	check("conta_dv", snapshot.ContaDV, current.ContaDV)
	check("cpf", snapshot.CPF, current.CPF)

	return mismatches
}
