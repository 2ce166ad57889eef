package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/core/numerator"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/assessment"
	"taxledger/pkg/logger"
)

type fixture struct {
	svc      *Service
	payments *memPayments
	ledger   *memLedger
	gateway  *fakeGateway
	events   *memEvents
	taxpayer id.ID
	a        *assessment.Assessment
}

var fixedNow = time.Date(2026, time.July, 15, 11, 30, 0, 0, time.UTC)

func newFixture(t *testing.T, amount string) *fixture {
	t.Helper()
	f := &fixture{
		payments: newMemPayments(),
		ledger:   newMemLedger(),
		gateway:  &fakeGateway{validSig: "good", payments: map[string]*RemotePayment{}, remote: map[string]*Order{}},
		events:   &memEvents{},
		taxpayer: id.New(),
	}
	f.a = f.ledger.add(f.taxpayer, amount)
	f.gateway.openOrder("order_1", f.a.ID)
	f.svc = NewService(ServiceConfig{
		Repo:      f.payments,
		Ledger:    f.ledger,
		Gateway:   f.gateway,
		Events:    f.events,
		Numerator: &numerator.MockGenerator{},
		TxManager: &serialTx{},
	})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) taxpayerCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: f.taxpayer.String(), Role: appctx.RoleTaxpayer})
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: appctx.RoleAdmin})
}

func (f *fixture) assessment(t *testing.T) *assessment.Assessment {
	t.Helper()
	a, err := f.ledger.GetByID(context.Background(), f.a.ID)
	require.NoError(t, err)
	return a
}

func TestRecordManual_PartialThenFull(t *testing.T) {
	f := newFixture(t, "450")
	ctx := adminCtx()

	p1, err := f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("200"), Mode: ModeCash})
	require.NoError(t, err)
	assert.Equal(t, "REC-2026-00001", p1.ReceiptNumber)
	assert.Equal(t, f.taxpayer, p1.TaxpayerID)
	assert.NotNil(t, p1.RecordedBy)
	assert.Equal(t, assessment.StatusPartiallyPaid, f.assessment(t).Status)

	p2, err := f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("250"), Mode: ModeCheque, Note: "chq 004512"})
	require.NoError(t, err)
	assert.Equal(t, "REC-2026-00002", p2.ReceiptNumber)

	a := f.assessment(t)
	assert.Equal(t, assessment.StatusPaid, a.Status)
	assert.True(t, a.Balance.IsZero())
	assert.True(t, a.PaidAmount.Equal(types.MustMoney("450")))
}

func TestRecordManual_Rejections(t *testing.T) {
	f := newFixture(t, "450")
	ctx := adminCtx()

	_, err := f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("10"), Mode: ModeOnline})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("10"), Mode: "upi"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.Zero(), Mode: ModeCash})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.RecordManual(ctx, ManualInput{AssessmentID: id.New(), Amount: types.MustMoney("10"), Mode: ModeCash})
	assert.True(t, apperror.IsNotFound(err))

	assert.Empty(t, f.payments.all())
	assert.True(t, f.assessment(t).PaidAmount.IsZero())
}

func TestRecordManual_ConcurrentPaymentsAllCount(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := adminCtx()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordManual(ctx, ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("25"), Mode: ModeCash})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a := f.assessment(t)
	assert.True(t, a.PaidAmount.Equal(types.MustMoney("500")), "paid %s", a.PaidAmount)
	assert.Equal(t, assessment.StatusPartiallyPaid, a.Status)

	seen := map[string]bool{}
	for _, p := range f.payments.all() {
		assert.False(t, seen[p.ReceiptNumber], "duplicate receipt %s", p.ReceiptNumber)
		seen[p.ReceiptNumber] = true
	}
	assert.Len(t, seen, 20)
}

func TestRecordManual_RunsHook(t *testing.T) {
	f := newFixture(t, "450")
	calls := 0
	f.svc.Hooks().OnAfterCreate(func(context.Context, *Payment) error {
		calls++
		return errors.New("cache down")
	})

	_, err := f.svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("1"), Mode: ModeCash})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, "450.50")

	res, err := f.svc.CreateOrder(f.taxpayerCtx(), f.a.ID)
	require.NoError(t, err)

	assert.Equal(t, types.Paise(45050), res.Amount)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, "order_1", res.OrderID)
	assert.Equal(t, "ORD-2026-000001", res.Receipt)
	require.Len(t, f.gateway.orders, 1)
	assert.Equal(t, f.a.ID.String(), f.gateway.orders[0].Notes["assessmentId"])
	assert.Equal(t, []EventKind{EventOrderCreated}, f.events.kinds())
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newFixture(t, "450")

	other := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: appctx.RoleTaxpayer})
	_, err := f.svc.CreateOrder(other, f.a.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("450"), Mode: ModeCash})
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(f.taxpayerCtx(), f.a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNothingDue))
	assert.Empty(t, f.gateway.orders)
}

func TestCreateOrder_GatewayFailure(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.orderErr = errors.New("connection refused")

	_, err := f.svc.CreateOrder(f.taxpayerCtx(), f.a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))
	require.Len(t, f.events.events, 1)
	assert.False(t, f.events.events[0].Success)
	assert.Contains(t, f.events.events[0].Error, "connection refused")
}

func TestVerifyOnline_RecordsPayment(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.payments["pay_1"] = &RemotePayment{ID: "pay_1", OrderID: "order_1", Amount: 45000, Status: "captured"}

	p, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{
		AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "good",
	})
	require.NoError(t, err)

	assert.Equal(t, ModeOnline, p.Mode)
	assert.True(t, p.Amount.Equal(types.MustMoney("450")))
	assert.Equal(t, "pay_1", *p.GatewayPaymentID)
	assert.Equal(t, assessment.StatusPaid, f.assessment(t).Status)
	assert.Equal(t, []EventKind{EventPaymentVerified}, f.events.kinds())
	assert.True(t, f.events.events[0].Success)
}

func TestVerifyOnline_SignatureMismatchMutatesNothing(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.payments["pay_1"] = &RemotePayment{ID: "pay_1", OrderID: "order_1", Amount: 45000, Status: "captured"}

	_, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{
		AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "forged",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSignatureMismatch))
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))

	assert.Empty(t, f.payments.all())
	a := f.assessment(t)
	assert.True(t, a.PaidAmount.IsZero())
	assert.Equal(t, assessment.StatusUnpaid, a.Status)
	assert.Equal(t, []EventKind{EventSignatureMismatch}, f.events.kinds())
}

func TestVerifyOnline_ReplayDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.payments["pay_1"] = &RemotePayment{ID: "pay_1", OrderID: "order_1", Amount: 20000, Status: "captured"}
	in := VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "good"}

	first, err := f.svc.VerifyOnline(f.taxpayerCtx(), in)
	require.NoError(t, err)
	second, err := f.svc.VerifyOnline(f.taxpayerCtx(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.payments.all(), 1)
	assert.True(t, f.assessment(t).PaidAmount.Equal(types.MustMoney("200")))
}

func TestVerifyOnline_Rejections(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.payments["pay_failed"] = &RemotePayment{ID: "pay_failed", OrderID: "order_1", Amount: 45000, Status: "failed"}
	f.gateway.payments["pay_other"] = &RemotePayment{ID: "pay_other", OrderID: "order_9", Amount: 45000, Status: "captured"}

	_, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_failed", Signature: "good"})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_other", Signature: "good"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: "pay_missing", Signature: "good"})
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))

	_, err = f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	assert.Empty(t, f.payments.all())
}

func TestVerifyOnline_OrderBoundToItsAssessment(t *testing.T) {
	f := newFixture(t, "1000")
	other := f.ledger.add(f.taxpayer, "300")

	order, err := f.svc.CreateOrder(f.taxpayerCtx(), f.a.ID)
	require.NoError(t, err)
	f.gateway.payments["pay_1"] = &RemotePayment{ID: "pay_1", OrderID: order.OrderID, Amount: order.Amount, Status: "captured"}

	_, err = f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{
		AssessmentID: other.ID, OrderID: order.OrderID, GatewayPaymentID: "pay_1", Signature: "good",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))

	assert.Empty(t, f.payments.all())
	b, err := f.ledger.GetByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.True(t, b.PaidAmount.IsZero())
	assert.Equal(t, assessment.StatusUnpaid, b.Status)
	assert.True(t, f.assessment(t).PaidAmount.IsZero())
	assert.Equal(t, []EventKind{EventOrderCreated, EventPaymentVerified}, f.events.kinds())
	assert.False(t, f.events.events[1].Success)

	// The same callback against the right assessment goes through.
	p, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{
		AssessmentID: f.a.ID, OrderID: order.OrderID, GatewayPaymentID: "pay_1", Signature: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, f.a.ID, p.AssessmentID)
	assert.Equal(t, assessment.StatusPaid, f.assessment(t).Status)
}

func TestVerifyOnline_UnknownOrder(t *testing.T) {
	f := newFixture(t, "450")
	f.gateway.payments["pay_1"] = &RemotePayment{ID: "pay_1", OrderID: "order_404", Amount: 45000, Status: "captured"}

	_, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{
		AssessmentID: f.a.ID, OrderID: "order_404", GatewayPaymentID: "pay_1", Signature: "good",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))
	assert.Empty(t, f.payments.all())
}

func (f *fixture) paidOnline(t *testing.T, gwID string, paise types.Paise) *Payment {
	t.Helper()
	f.gateway.payments[gwID] = &RemotePayment{ID: gwID, OrderID: "order_1", Amount: paise, Status: "captured"}
	p, err := f.svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{AssessmentID: f.a.ID, OrderID: "order_1", GatewayPaymentID: gwID, Signature: "good"})
	require.NoError(t, err)
	return p
}

func TestRefund_PartialThenFullLeavesLedgerAlone(t *testing.T) {
	f := newFixture(t, "450")
	p := f.paidOnline(t, "pay_1", 45000)
	before := f.assessment(t)

	r, err := f.svc.Refund(adminCtx(), p.ID, types.MustMoney("100"))
	require.NoError(t, err)
	assert.Equal(t, RefundPartial, r.RefundStatus)
	assert.Equal(t, []types.Paise{10000}, f.gateway.refunds)

	r, err = f.svc.Refund(adminCtx(), p.ID, types.MustMoney("350"))
	require.NoError(t, err)
	assert.Equal(t, RefundFull, r.RefundStatus)
	assert.True(t, r.RefundAmount.Equal(types.MustMoney("450")))
	assert.Equal(t, "rfnd_1", *r.GatewayRefundID)

	after := f.assessment(t)
	assert.True(t, before.PaidAmount.Equal(after.PaidAmount))
	assert.Equal(t, before.Status, after.Status)

	_, err = f.svc.Refund(adminCtx(), p.ID, types.MustMoney("0.01"))
	assert.True(t, apperror.HasCode(err, apperror.CodeRefundNotAllowed))
}

func TestRefund_OnlyOnlinePayments(t *testing.T) {
	f := newFixture(t, "450")
	cash, err := f.svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("100"), Mode: ModeCash})
	require.NoError(t, err)

	_, err = f.svc.Refund(adminCtx(), cash.ID, types.MustMoney("10"))
	assert.True(t, apperror.HasCode(err, apperror.CodeRefundNotAllowed))
	assert.Empty(t, f.gateway.refunds)
	assert.Empty(t, f.events.kinds())
}

func TestRefund_GatewayFailureKeepsPayment(t *testing.T) {
	f := newFixture(t, "450")
	p := f.paidOnline(t, "pay_1", 45000)
	f.gateway.refundErr = errors.New("timeout")

	_, err := f.svc.Refund(adminCtx(), p.ID, types.MustMoney("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))

	stored, err := f.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, RefundNone, stored.RefundStatus)
	assert.Equal(t, []EventKind{EventPaymentVerified, EventRefund}, f.events.kinds())
	assert.False(t, f.events.events[1].Success)
}

func TestRefund_UnrecordedGatewayRefundIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := logger.Default()
	logger.SetDefault(logger.NewFromCore(core))
	t.Cleanup(func() { logger.SetDefault(prev) })

	f := newFixture(t, "450")
	p := f.paidOnline(t, "pay_1", 45000)
	f.payments.updateErr = errors.New("connection reset")

	_, err := f.svc.Refund(adminCtx(), p.ID, types.MustMoney("100"))
	require.Error(t, err)
	assert.Equal(t, []types.Paise{10000}, f.gateway.refunds)

	stored, err := f.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, RefundNone, stored.RefundStatus)

	entries := logs.FilterMessage("gateway refund not recorded, reconcile manually").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "rfnd_1", fields["gateway_refund_id"])
	assert.Equal(t, "pay_1", fields["gateway_payment_id"])
	assert.Equal(t, "100.00", fields["amount"])

	assert.False(t, f.events.events[len(f.events.events)-1].Success)
}

func TestOnlineDisabled(t *testing.T) {
	f := newFixture(t, "450")
	svc := NewService(ServiceConfig{
		Repo: f.payments, Ledger: f.ledger, Numerator: &numerator.MockGenerator{}, TxManager: &serialTx{},
	})

	assert.False(t, svc.OnlineEnabled())
	_, err := svc.CreateOrder(f.taxpayerCtx(), f.a.ID)
	assert.Equal(t, 503, apperror.GetHTTPStatus(err))
	_, err = svc.VerifyOnline(f.taxpayerCtx(), VerifyInput{})
	assert.Equal(t, 503, apperror.GetHTTPStatus(err))
	_, err = svc.Refund(adminCtx(), id.New(), types.MustMoney("1"))
	assert.Equal(t, 503, apperror.GetHTTPStatus(err))

	_, err = svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("1"), Mode: ModeBankTransfer})
	assert.NoError(t, err)
}

func TestGet_ScopesToOwner(t *testing.T) {
	f := newFixture(t, "450")
	p, err := f.svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney("100"), Mode: ModeCash})
	require.NoError(t, err)

	_, err = f.svc.Get(f.taxpayerCtx(), p.ID)
	assert.NoError(t, err)

	other := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: appctx.RoleTaxpayer})
	_, err = f.svc.Get(other, p.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestExport_StreamsAll(t *testing.T) {
	f := newFixture(t, "450")
	for i := 1; i <= 3; i++ {
		_, err := f.svc.RecordManual(adminCtx(), ManualInput{AssessmentID: f.a.ID, Amount: types.MustMoney(fmt.Sprint(i)), Mode: ModeCash})
		require.NoError(t, err)
	}
	var receipts []string
	err := f.svc.Export(adminCtx(), Filter{}, func(p *Payment) error {
		receipts = append(receipts, p.ReceiptNumber)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"REC-2026-00001", "REC-2026-00002", "REC-2026-00003"}, receipts)
}
