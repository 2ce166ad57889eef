package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/id"
	"taxledger/internal/core/numerator"
	"taxledger/internal/core/tx"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
	"taxledger/pkg/logger"
)

// Currency is the only currency the ledger accepts.
const Currency = "INR"

// ManualInput records a payment taken outside the gateway.
type ManualInput struct {
	AssessmentID id.ID
	Amount       types.Money
	Mode         Mode
	Note         string
	PaidAt       *time.Time
}

// VerifyInput is the checkout callback a taxpayer's browser posts back.
type VerifyInput struct {
	AssessmentID     id.ID
	OrderID          string
	GatewayPaymentID string
	Signature        string
}

// OrderResult is what the client needs to open the checkout.
type OrderResult struct {
	OrderID      string      `json:"orderId"`
	Amount       types.Paise `json:"amount"`
	Currency     string      `json:"currency"`
	Receipt      string      `json:"receipt"`
	AssessmentID id.ID       `json:"assessmentId"`
}

// Service provides payment business logic.
type Service struct {
	repo      Repository
	ledger    Ledger
	gateway   Gateway
	events    EventLog
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Payment]
	now       func() time.Time
}

// ServiceConfig wires the payment service. Gateway may be nil when online
// payments are disabled.
type ServiceConfig struct {
	Repo      Repository
	Ledger    Ledger
	Gateway   Gateway
	Events    EventLog
	Numerator numerator.Generator
	TxManager tx.Manager
}

// NewService creates a new payment service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		gateway:   cfg.Gateway,
		events:    cfg.Events,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Payment](),
		now:       time.Now,
	}
}

// Hooks returns the hook registry. AfterCreate fires for every recorded
// payment, AfterUpdate for every refund.
func (s *Service) Hooks() *domain.HookRegistry[*Payment] {
	return s.hooks
}

// OnlineEnabled reports whether a gateway is configured.
func (s *Service) OnlineEnabled() bool {
	return s.gateway != nil
}

func (s *Service) requireGateway() error {
	if s.gateway == nil {
		return apperror.NewUnavailable("online payments are disabled")
	}
	return nil
}

// RecordManual books a counter payment (cash, cheque, bank transfer).
func (s *Service) RecordManual(ctx context.Context, in ManualInput) (*Payment, error) {
	if !in.Mode.Valid() {
		return nil, apperror.NewValidation("unknown payment mode").WithDetail("mode", string(in.Mode))
	}
	if in.Mode == ModeOnline {
		return nil, apperror.NewValidation("online payments are recorded through gateway verification").
			WithDetail("mode", string(in.Mode))
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}

	now := s.now()
	p := &Payment{
		ID:           id.New(),
		AssessmentID: in.AssessmentID,
		Amount:       types.RoundMoney(in.Amount),
		Mode:         in.Mode,
		RefundAmount: types.Zero(),
		RefundStatus: RefundNone,
		Note:         in.Note,
		PaidAt:       now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.PaidAt != nil {
		p.PaidAt = *in.PaidAt
	}
	if uid, err := id.Parse(appctx.GetUserID(ctx)); err == nil {
		p.RecordedBy = &uid
	}

	if _, err := s.reconcile(ctx, p); err != nil {
		return nil, err
	}
	s.afterCreate(ctx, p)
	return p, nil
}

// reconcile applies p to its assessment and stores both in one transaction.
// The assessment row is locked for the duration, so concurrent payments on
// the same assessment serialize.
func (s *Service) reconcile(ctx context.Context, p *Payment) (*assessment.Assessment, error) {
	var updated *assessment.Assessment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.ledger.GetForUpdate(ctx, p.AssessmentID)
		if err != nil {
			return err
		}
		if err := a.ApplyPayment(p.Amount); err != nil {
			return err
		}
		if a.Overpaid() {
			logger.Warn(ctx, "assessment overpaid",
				"assessment_id", a.ID,
				"amount", a.Amount.StringFixed(types.MoneyScale),
				"paid_amount", a.PaidAmount.StringFixed(types.MoneyScale))
		}
		a.UpdatedAt = s.now()
		if err := s.ledger.UpdateLedger(ctx, a); err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}

		receipt, err := s.numerator.GetNextNumber(ctx, numerator.ReceiptConfig(), nil, p.PaidAt)
		if err != nil {
			return fmt.Errorf("receipt number: %w", err)
		}
		p.ReceiptNumber = receipt
		p.TaxpayerID = a.TaxpayerID
		p.TaxpayerName = a.TaxpayerName
		p.FinancialYear = a.FinancialYear
		p.Period = string(a.Period)

		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"payment_id", p.ID,
		"assessment_id", p.AssessmentID,
		"mode", p.Mode,
		"amount", p.Amount.StringFixed(types.MoneyScale),
		"receipt", p.ReceiptNumber,
		"status", updated.Status)
	return updated, nil
}

func (s *Service) afterCreate(ctx context.Context, p *Payment) {
	if err := s.hooks.Run(ctx, domain.AfterCreate, p); err != nil {
		logger.Warn(ctx, "after-create hook failed", "payment_id", p.ID, "error", err)
	}
}

// loadOwned fetches an assessment and checks the caller may pay it.
func (s *Service) loadOwned(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	a, err := s.ledger.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !appctx.CanAccessTaxpayer(ctx, a.TaxpayerID.String()) {
		return nil, apperror.NewNotFound("assessment", assessmentID.String())
	}
	return a, nil
}

// CreateOrder opens a gateway order for the outstanding balance.
func (s *Service) CreateOrder(ctx context.Context, assessmentID id.ID) (*OrderResult, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	a, err := s.loadOwned(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !a.Balance.IsPositive() {
		return nil, apperror.NewBusinessRule(apperror.CodeNothingDue, "assessment has no outstanding balance").
			WithDetail("assessmentId", a.ID.String())
	}

	receipt, err := s.numerator.GetNextNumber(ctx, numerator.OrderConfig(),
		&numerator.Options{Strategy: numerator.StrategyCached, RangeSize: 50}, s.now())
	if err != nil {
		return nil, fmt.Errorf("order receipt: %w", err)
	}

	req := OrderRequest{
		Amount:   types.ToPaise(a.Balance),
		Currency: Currency,
		Receipt:  receipt,
		Notes:    map[string]string{NoteAssessmentID: a.ID.String()},
	}
	order, err := s.gateway.CreateOrder(ctx, req)
	event := &GatewayEvent{Kind: EventOrderCreated, AssessmentID: &a.ID}
	if err != nil {
		s.record(ctx, event, req, err)
		return nil, gatewayErr("create_order", err)
	}
	event.OrderID = order.ID
	s.record(ctx, event, order, nil)

	logger.Info(ctx, "gateway order created",
		"assessment_id", a.ID,
		"order_id", order.ID,
		"amount", order.Amount.String())

	return &OrderResult{
		OrderID:      order.ID,
		Amount:       order.Amount,
		Currency:     order.Currency,
		Receipt:      receipt,
		AssessmentID: a.ID,
	}, nil
}

// VerifyOnline checks a checkout callback and records the payment.
// Replaying the same gateway payment returns the stored payment.
func (s *Service) VerifyOnline(ctx context.Context, in VerifyInput) (*Payment, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	if in.OrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return nil, apperror.NewValidation("orderId, paymentId and signature are required")
	}

	event := &GatewayEvent{
		Kind:             EventPaymentVerified,
		AssessmentID:     &in.AssessmentID,
		OrderID:          in.OrderID,
		GatewayPaymentID: in.GatewayPaymentID,
	}

	if !s.gateway.VerifySignature(in.OrderID, in.GatewayPaymentID, in.Signature) {
		event.Kind = EventSignatureMismatch
		s.record(ctx, event, nil, errors.New("signature mismatch"))
		logger.Warn(ctx, "gateway signature mismatch",
			"order_id", in.OrderID,
			"gateway_payment_id", in.GatewayPaymentID)
		return nil, apperror.NewSignatureMismatch()
	}

	a, err := s.loadOwned(ctx, in.AssessmentID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.existing(ctx, in.GatewayPaymentID, a.ID); existing != nil || err != nil {
		return existing, err
	}

	remote, err := s.gateway.FetchPayment(ctx, in.GatewayPaymentID)
	if err != nil {
		s.record(ctx, event, nil, err)
		return nil, gatewayErr("fetch_payment", err)
	}
	if remote.OrderID != "" && remote.OrderID != in.OrderID {
		s.record(ctx, event, remote, errors.New("order mismatch"))
		return nil, apperror.NewValidation("payment does not belong to order").
			WithDetail("orderId", in.OrderID)
	}
	order, err := s.gateway.FetchOrder(ctx, in.OrderID)
	if err != nil {
		s.record(ctx, event, remote, err)
		return nil, gatewayErr("fetch_order", err)
	}
	if orderFor, ok := order.AssessmentID(); !ok || orderFor != a.ID {
		s.record(ctx, event, order, errors.New("order opened for another assessment"))
		logger.Warn(ctx, "gateway order does not match assessment",
			"order_id", in.OrderID,
			"assessment_id", a.ID,
			"order_assessment_id", order.Notes[NoteAssessmentID])
		return nil, apperror.NewValidation("order was not opened for this assessment").
			WithDetail("orderId", in.OrderID).
			WithDetail("assessmentId", a.ID.String())
	}
	if !remote.Settled() {
		s.record(ctx, event, remote, fmt.Errorf("payment status %s", remote.Status))
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "payment is not captured").
			WithDetail("status", remote.Status)
	}
	if !remote.Amount.IsPositive() {
		s.record(ctx, event, remote, errors.New("zero amount"))
		return nil, apperror.NewValidation("gateway reported no amount")
	}

	now := s.now()
	orderID, gwPaymentID := in.OrderID, in.GatewayPaymentID
	p := &Payment{
		ID:               id.New(),
		AssessmentID:     a.ID,
		Amount:           remote.Amount.Money(),
		Mode:             ModeOnline,
		GatewayOrderID:   &orderID,
		GatewayPaymentID: &gwPaymentID,
		RefundAmount:     types.Zero(),
		RefundStatus:     RefundNone,
		PaidAt:           now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.reconcile(ctx, p); err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			// Lost the race to a concurrent verification of the same payment.
			return s.existing(ctx, in.GatewayPaymentID, a.ID)
		}
		s.record(ctx, event, remote, err)
		return nil, err
	}

	event.PaymentID = &p.ID
	s.record(ctx, event, remote, nil)
	s.afterCreate(ctx, p)
	return p, nil
}

func (s *Service) existing(ctx context.Context, gatewayPaymentID string, assessmentID id.ID) (*Payment, error) {
	p, err := s.repo.GetByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if p.AssessmentID != assessmentID {
		return nil, apperror.NewConflict("gateway payment already recorded against another assessment").
			WithDetail("gatewayPaymentId", gatewayPaymentID)
	}
	logger.Info(ctx, "gateway payment already recorded", "payment_id", p.ID, "gateway_payment_id", gatewayPaymentID)
	return p, nil
}

// Refund returns part or all of an online payment through the gateway.
// The assessment ledger is left untouched.
func (s *Service) Refund(ctx context.Context, paymentID id.ID, amount types.Money) (*Payment, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	amount = types.RoundMoney(amount)

	var (
		p      *Payment
		remote *RemoteRefund
		event  *GatewayEvent
	)
	// The payment row stays locked across the gateway call so two refunds
	// of the same payment cannot both pass the refundable check.
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := p.CheckRefund(amount); err != nil {
			return err
		}

		event = &GatewayEvent{
			Kind:             EventRefund,
			AssessmentID:     &p.AssessmentID,
			PaymentID:        &p.ID,
			GatewayPaymentID: *p.GatewayPaymentID,
		}
		remote, err = s.gateway.Refund(ctx, *p.GatewayPaymentID, types.ToPaise(amount))
		if err != nil {
			return gatewayErr("refund", err)
		}
		if err := p.ApplyRefund(amount, remote.ID, s.now()); err != nil {
			return err
		}
		return s.repo.UpdateRefund(ctx, p)
	})

	if event != nil {
		var payload any
		if remote != nil {
			payload = remote
		}
		s.record(ctx, event, payload, err)
	}
	if err != nil {
		if remote != nil {
			// Money left the gateway but the payment row still shows no refund.
			logger.Error(ctx, "gateway refund not recorded, reconcile manually",
				"payment_id", paymentID,
				"amount", amount.StringFixed(types.MoneyScale),
				"gateway_payment_id", remote.PaymentID,
				"gateway_refund_id", remote.ID,
				"error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "payment refunded",
		"payment_id", p.ID,
		"amount", amount.StringFixed(types.MoneyScale),
		"refund_status", p.RefundStatus,
		"gateway_refund_id", remote.ID)

	if err := s.hooks.Run(ctx, domain.AfterUpdate, p); err != nil {
		logger.Warn(ctx, "after-update hook failed", "payment_id", p.ID, "error", err)
	}
	return p, nil
}

// Get returns a payment the caller is allowed to see.
func (s *Service) Get(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !appctx.CanAccessTaxpayer(ctx, p.TaxpayerID.String()) {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return p, nil
}

// List returns payments across all taxpayers, newest first by default.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Payment], error) {
	filter.Normalize()
	if filter.OrderBy == "" {
		filter.OrderBy = "-paid_at"
	}
	return s.repo.List(ctx, filter)
}

// ListForTaxpayer returns one taxpayer's payments.
func (s *Service) ListForTaxpayer(ctx context.Context, taxpayerID id.ID, filter Filter) (domain.ListResult[*Payment], error) {
	filter.TaxpayerID = &taxpayerID
	return s.List(ctx, filter)
}

// Export streams every payment matching filter to fn.
func (s *Service) Export(ctx context.Context, filter Filter, fn func(*Payment) error) error {
	if filter.OrderBy == "" {
		filter.OrderBy = "paid_at"
	}
	return s.repo.Each(ctx, filter, fn)
}

// record writes a gateway event. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, e *GatewayEvent, payload any, cause error) {
	if s.events == nil {
		return
	}
	e.ID = id.New()
	e.Provider = s.gateway.Name()
	e.CreatedAt = s.now()
	e.Success = cause == nil
	if cause != nil {
		e.Error = cause.Error()
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = b
		}
	}
	if err := s.events.Record(ctx, e); err != nil {
		logger.Error(ctx, "record gateway event", "kind", e.Kind, "error", err)
	}
}

func gatewayErr(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewGateway(op, err)
}
