package payment

import (
	"context"
	"sort"
	"sync"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/core/tx"
	"taxledger/internal/core/types"
	"taxledger/internal/domain"
	"taxledger/internal/domain/assessment"
)

type memPayments struct {
	mu        sync.Mutex
	items     map[id.ID]*Payment
	updateErr error
}

func newMemPayments() *memPayments {
	return &memPayments{items: make(map[id.ID]*Payment)}
}

func (r *memPayments) Create(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.GatewayPaymentID != nil {
		for _, q := range r.items {
			if q.GatewayPaymentID != nil && *q.GatewayPaymentID == *p.GatewayPaymentID {
				return apperror.NewDuplicate("payment", "gatewayPaymentId", *p.GatewayPaymentID)
			}
		}
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *memPayments) GetByID(_ context.Context, paymentID id.ID) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) GetForUpdate(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return r.GetByID(ctx, paymentID)
}

func (r *memPayments) GetByGatewayPaymentID(_ context.Context, gw string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == gw {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("payment", gw)
}

func (r *memPayments) UpdateRefund(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *memPayments) all() []*Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Payment, 0, len(r.items))
	for _, p := range r.items {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiptNumber < out[j].ReceiptNumber })
	return out
}

func (r *memPayments) List(_ context.Context, f Filter) (domain.ListResult[*Payment], error) {
	var out []*Payment
	for _, p := range r.all() {
		if f.TaxpayerID != nil && p.TaxpayerID != *f.TaxpayerID {
			continue
		}
		out = append(out, p)
	}
	return domain.ListResult[*Payment]{Items: out, TotalCount: int64(len(out)), Limit: f.Limit}, nil
}

func (r *memPayments) Each(_ context.Context, _ Filter, fn func(*Payment) error) error {
	for _, p := range r.all() {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

type memLedger struct {
	mu    sync.Mutex
	items map[id.ID]*assessment.Assessment
}

func newMemLedger() *memLedger {
	return &memLedger{items: make(map[id.ID]*assessment.Assessment)}
}

func (l *memLedger) add(taxpayerID id.ID, amount string) *assessment.Assessment {
	a := &assessment.Assessment{
		ID:            id.New(),
		TaxpayerID:    taxpayerID,
		FinancialYear: "2026-27",
		Period:        "H1",
		Amount:        types.MustMoney(amount),
		PaidAmount:    types.Zero(),
		TaxpayerName:  "Anu Varghese",
	}
	a.Reconcile()
	l.mu.Lock()
	l.items[a.ID] = a
	l.mu.Unlock()
	return a
}

func (l *memLedger) GetByID(_ context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.items[assessmentID]
	if !ok {
		return nil, apperror.NewNotFound("assessment", assessmentID.String())
	}
	cp := *a
	return &cp, nil
}

func (l *memLedger) GetForUpdate(ctx context.Context, assessmentID id.ID) (*assessment.Assessment, error) {
	return l.GetByID(ctx, assessmentID)
}

func (l *memLedger) UpdateLedger(_ context.Context, a *assessment.Assessment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *a
	l.items[a.ID] = &cp
	return nil
}

// serialTx runs one transaction at a time, standing in for row locks.
type serialTx struct {
	mu sync.Mutex
}

func (t *serialTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

var _ tx.Manager = (*serialTx)(nil)

type fakeGateway struct {
	mu        sync.Mutex
	validSig  string
	payments  map[string]*RemotePayment
	remote    map[string]*Order
	orderErr  error
	refundErr error
	orders    []OrderRequest
	refunds   []types.Paise
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, req)
	o := &Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created", Notes: req.Notes}
	g.remote[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.remote[orderID]
	if !ok {
		return nil, apperror.NewGateway("fetch_order", nil).WithDetail("orderId", orderID)
	}
	return o, nil
}

// openOrder registers a provider order for assessmentID.
func (g *fakeGateway) openOrder(orderID string, assessmentID id.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remote[orderID] = &Order{ID: orderID, Status: "created", Notes: map[string]string{NoteAssessmentID: assessmentID.String()}}
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*RemotePayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, apperror.NewGateway("fetch_payment", nil).WithDetail("paymentId", paymentID)
	}
	return p, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentID string, amount types.Paise) (*RemoteRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return &RemoteRefund{ID: "rfnd_1", PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == g.validSig
}

type memEvents struct {
	mu     sync.Mutex
	events []*GatewayEvent
}

func (m *memEvents) Record(_ context.Context, e *GatewayEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) kinds() []EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventKind, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind
	}
	return out
}
