package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorhub-platform/pkg/errutil"
	"creatorhub-platform/pkg/gateway"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"
	"creatorhub-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeGateway struct {
	orderFn    func(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderResponse, error)
	transferFn func(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error)
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderResponse, error) {
	if f.orderFn != nil {
		return f.orderFn(ctx, req)
	}
	return &gateway.OrderResponse{ID: "order-" + req.Code, Status: gateway.StatusPaid}, nil
}

func (f *fakeGateway) CreateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error) {
	if f.transferFn != nil {
		return f.transferFn(ctx, req)
	}
	return &gateway.TransferResponse{ID: "transfer-" + req.Code, Status: gateway.StatusTransferred}, nil
}

type fakeSequence struct {
	n int
}

func (f *fakeSequence) NextContractCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("CT-202608-%04d", f.n), nil
}

func (f *fakeSequence) NextWithdrawalCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("WD-202608-%04d", f.n), nil
}

type fixture struct {
	db        *gorm.DB
	gw        *fakeGateway
	processor *Processor
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t,
		&creator.Creator{},
		&creator.BankAccount{},
		&chat.ChatRoom{},
		&chat.ChatMessage{},
		&notification.Notification{},
		&contract.Contract{},
		&JobPayment{},
		&Withdrawal{},
	)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	creators := creator.NewService(creator.ServiceParams{DB: db})
	chats := chat.NewService(chat.ServiceParams{DB: db, Node: node})
	notifier := notification.NewService(notification.ServiceParams{DB: db, Node: node, Chat: chats})
	contracts := contract.NewService(contract.ServiceParams{DB: db, Node: node, Seq: &fakeSequence{}})

	gw := &fakeGateway{}
	processor := &Processor{
		db:        db,
		node:      node,
		gw:        gw,
		seq:       &fakeSequence{},
		creators:  creators,
		contracts: contracts,
		notifier:  notifier,
	}

	return &fixture{db: db, gw: gw, processor: processor}
}

func (f *fixture) seedContract(t *testing.T, id string, workflow contract.WorkflowStatus) {
	require.NoError(t, f.db.Create(&contract.Contract{
		ID:             id,
		Code:           "CT-" + id,
		OfferID:        "offer-" + id,
		BrandID:        "brand-1",
		CreatorID:      "creator-1",
		ChatRoomID:     "room-" + id,
		Budget:         decimal.RequireFromString("1000.00"),
		PlatformFee:    decimal.RequireFromString("100.00"),
		CreatorAmount:  decimal.RequireFromString("900.00"),
		Status:         contract.StatusActive,
		WorkflowStatus: workflow,
	}).Error)
}

func (f *fixture) seedPayment(t *testing.T, id, contractID string) {
	require.NoError(t, f.db.Create(&JobPayment{
		ID:         id,
		ContractID: contractID,
		BrandID:    "brand-1",
		Amount:     decimal.RequireFromString("1000.00"),
		Status:     StatusPending,
	}).Error)
}

func (f *fixture) seedCreatorWithBank(t *testing.T, id string) {
	require.NoError(t, f.db.Create(&creator.Creator{
		ID:    id,
		Name:  "Creator " + id,
		Email: id + "@example.com",
	}).Error)
	require.NoError(t, f.db.Create(&creator.BankAccount{
		ID:        "bank-" + id,
		CreatorID: id,
		BankCode:  "341",
		Agencia:   "0001",
		AgenciaDV: "9",
		Conta:     "12345",
		ContaDV:   "6",
		CPF:       "123.456.789-00",
		LegalName: "Creator " + id,
	}).Error)
}

func (f *fixture) seedWithdrawal(t *testing.T, id, creatorID string, amount string) {
	require.NoError(t, f.db.Create(&Withdrawal{
		ID:        id,
		Code:      "WD-" + id,
		CreatorID: creatorID,
		Amount:    decimal.RequireFromString(amount),
		Status:    StatusPending,
	}).Error)
}

func (f *fixture) payment(t *testing.T, id string) *JobPayment {
	var p JobPayment
	require.NoError(t, f.db.Where("id = ?", id).First(&p).Error)
	return &p
}

func (f *fixture) withdrawal(t *testing.T, id string) *Withdrawal {
	var w Withdrawal
	require.NoError(t, f.db.Where("id = ?", id).First(&w).Error)
	return &w
}

func TestRunPaymentBatchMixedResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("c%d", i)
		f.seedContract(t, id, contract.WorkflowPaymentPending)
		f.seedPayment(t, fmt.Sprintf("p%d", i), id)
	}

	f.gw.orderFn = func(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderResponse, error) {
		if req.Code == "p2" {
			return nil, errutil.GatewayDeclined("card declined")
		}
		return &gateway.OrderResponse{ID: "order-" + req.Code, Status: gateway.StatusPaid}, nil
	}

	result, err := f.processor.RunPaymentBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 1, result.Failed)

	p1 := f.payment(t, "p1")
	require.Equal(t, StatusCompleted, p1.Status)
	require.Equal(t, "order-p1", p1.GatewayOrderID)

	p2 := f.payment(t, "p2")
	require.Equal(t, StatusFailed, p2.Status)
	require.Contains(t, p2.LastError, "card declined")

	// contracts follow their payments
	var c1, c2 contract.Contract
	require.NoError(t, f.db.Where("id = ?", "c1").First(&c1).Error)
	require.Equal(t, contract.WorkflowPaymentAvailable, c1.WorkflowStatus)
	require.NoError(t, f.db.Where("id = ?", "c2").First(&c2).Error)
	require.Equal(t, contract.StatusPaymentFailed, c2.Status)

	// failed record must not linger as pending or processing
	require.NotEqual(t, StatusPending, p2.Status)
	require.NotEqual(t, StatusProcessing, p2.Status)
}

func TestPaymentTimeoutReturnsToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContract(t, "c1", contract.WorkflowPaymentPending)
	f.seedPayment(t, "p1", "c1")

	f.gw.orderFn = func(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderResponse, error) {
		return nil, errutil.Timeout("gateway timed out")
	}

	// every budgeted attempt reaches the gateway before dead-lettering
	for attempt := 1; attempt < MaxAttempts; attempt++ {
		require.NoError(t, f.processor.ProcessPayment(ctx, "p1"))

		p := f.payment(t, "p1")
		require.Equal(t, StatusPending, p.Status)
		require.Equal(t, attempt, p.Attempts)
		require.Contains(t, p.LastError, "timed out")
	}

	err := f.processor.ProcessPayment(ctx, "p1")
	require.True(t, errutil.Is(err, errutil.StatusGatewayDeclined))

	p := f.payment(t, "p1")
	require.Equal(t, StatusFailed, p.Status)
	require.Equal(t, MaxAttempts, p.Attempts)

	// exhausted records are out of the batch's reach
	result, err := f.processor.RunPaymentBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Processed)
	require.Equal(t, 0, result.Failed)
}

func TestRunPaymentBatchSkipsExhaustedRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContract(t, "c1", contract.WorkflowPaymentPending)
	f.seedPayment(t, "p1", "c1")
	require.NoError(t, f.db.Model(&JobPayment{}).Where("id = ?", "p1").
		Update("attempts", MaxAttempts).Error)

	result, err := f.processor.RunPaymentBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Processed)
	require.Equal(t, 0, result.Failed)
}

func TestProcessPaymentClaimIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedContract(t, "c1", contract.WorkflowPaymentPending)
	f.seedPayment(t, "p1", "c1")

	require.NoError(t, f.processor.ProcessPayment(ctx, "p1"))

	err := f.processor.ProcessPayment(ctx, "p1")
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestProcessWithdrawalSnapshotsBankDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCreatorWithBank(t, "creator-1")
	f.seedWithdrawal(t, "w1", "creator-1", "900.00")

	require.NoError(t, f.processor.ProcessWithdrawal(ctx, "w1"))

	w := f.withdrawal(t, "w1")
	require.Equal(t, StatusCompleted, w.Status)
	require.Equal(t, "transfer-WD-w1", w.TransactionID)
	require.NotNil(t, w.ProcessedAt)

	details, err := w.DecodeDetails()
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, "341", details.BankCode)
	require.Equal(t, "123.456.789-00", details.CPF)

	var count int64
	require.NoError(t, f.db.Model(&notification.Notification{}).
		Where("user_id = ? AND type = ?", "creator-1", notification.KindWithdrawalCompleted).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcessWithdrawalWithoutBankAccountFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&creator.Creator{
		ID: "creator-1", Name: "No Bank", Email: "nobank@example.com",
	}).Error)
	f.seedWithdrawal(t, "w1", "creator-1", "900.00")

	err := f.processor.ProcessWithdrawal(ctx, "w1")
	require.True(t, errutil.Is(err, errutil.StatusGatewayDeclined))

	w := f.withdrawal(t, "w1")
	require.Equal(t, StatusFailed, w.Status)
	require.Contains(t, w.LastError, "no bank account")
}

func TestRunWithdrawalBatchContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCreatorWithBank(t, "creator-1")
	f.seedCreatorWithBank(t, "creator-2")
	f.seedWithdrawal(t, "w1", "creator-1", "900.00")
	f.seedWithdrawal(t, "w2", "creator-2", "450.00")

	f.gw.transferFn = func(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error) {
		if req.Code == "WD-w1" {
			return nil, errutil.GatewayDeclined("invalid account")
		}
		return &gateway.TransferResponse{ID: "transfer-" + req.Code, Status: gateway.StatusTransferred}, nil
	}

	result, err := f.processor.RunWithdrawalBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.Failed)

	require.Equal(t, StatusFailed, f.withdrawal(t, "w1").Status)
	require.Equal(t, StatusCompleted, f.withdrawal(t, "w2").Status)
}

func TestWithdrawalTimeoutRetryBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCreatorWithBank(t, "creator-1")
	f.seedWithdrawal(t, "w1", "creator-1", "900.00")

	f.gw.transferFn = func(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error) {
		return nil, errutil.Timeout("gateway timed out")
	}

	for attempt := 1; attempt < MaxAttempts; attempt++ {
		require.NoError(t, f.processor.ProcessWithdrawal(ctx, "w1"))

		w := f.withdrawal(t, "w1")
		require.Equal(t, StatusPending, w.Status)
		require.Equal(t, attempt, w.Attempts)
	}

	err := f.processor.ProcessWithdrawal(ctx, "w1")
	require.True(t, errutil.Is(err, errutil.StatusGatewayDeclined))

	w := f.withdrawal(t, "w1")
	require.Equal(t, StatusFailed, w.Status)
	require.Equal(t, MaxAttempts, w.Attempts)
}

func TestRequestWithdrawalGuardsOwnershipAndState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCreatorWithBank(t, "creator-1")
	f.seedContract(t, "c1", contract.WorkflowPaymentAvailable)

	_, err := f.processor.RequestWithdrawal(ctx, "c1", "someone-else")
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	w, err := f.processor.RequestWithdrawal(ctx, "c1", "creator-1")
	require.NoError(t, err)
	require.True(t, w.Amount.Equal(decimal.RequireFromString("900.00")))
	require.Equal(t, StatusPending, w.Status)

	// the guarded contract transition makes a second request impossible
	_, err = f.processor.RequestWithdrawal(ctx, "c1", "creator-1")
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	var count int64
	require.NoError(t, f.db.Model(&Withdrawal{}).Where("creator_id = ?", "creator-1").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMinorUnits(t *testing.T) {
	require.EqualValues(t, 100000, MinorUnits(decimal.RequireFromString("1000.00")))
	require.EqualValues(t, 1, MinorUnits(decimal.RequireFromString("0.01")))
	require.EqualValues(t, 123456, MinorUnits(decimal.RequireFromString("1234.56")))
}

func TestProcessedAtWithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCreatorWithBank(t, "creator-1")
	f.seedWithdrawal(t, "w1", "creator-1", "900.00")

	require.NoError(t, f.processor.ProcessWithdrawal(ctx, "w1"))

	w := f.withdrawal(t, "w1")
	require.True(t, w.ProcessedAt.Sub(w.RequestedAt) < MaxProcessingTime)
	require.WithinDuration(t, time.Now(), *w.ProcessedAt, 5*time.Second)
}
