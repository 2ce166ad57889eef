package payment

import (
	"context"
	"encoding/json"
	"time"

	"taxledger/internal/core/id"
	"taxledger/internal/core/types"
)

// Gateway is the online payment provider.
type Gateway interface {
	// Name identifies the provider in the event log.
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*RemotePayment, error)
	Refund(ctx context.Context, paymentID string, amount types.Paise) (*RemoteRefund, error)
	// VerifySignature checks the checkout callback signature.
	VerifySignature(orderID, paymentID, signature string) bool
}

// OrderRequest asks the provider to open a checkout order.
type OrderRequest struct {
	Amount   types.Paise       `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the provider's view of a checkout order.
type Order struct {
	ID       string            `json:"id"`
	Amount   types.Paise       `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// NoteAssessmentID is the order note that binds an order to an assessment.
const NoteAssessmentID = "assessmentId"

// AssessmentID returns the assessment the order was opened for.
func (o *Order) AssessmentID() (id.ID, bool) {
	v, err := id.Parse(o.Notes[NoteAssessmentID])
	if err != nil {
		return id.ID{}, false
	}
	return v, true
}

// RemotePayment is the provider's authoritative record of a payment.
type RemotePayment struct {
	ID       string      `json:"id"`
	OrderID  string      `json:"order_id"`
	Amount   types.Paise `json:"amount"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"`
	Method   string      `json:"method"`
}

// Settled reports whether the provider holds the money.
func (p *RemotePayment) Settled() bool {
	return p.Status == "captured" || p.Status == "authorized"
}

// RemoteRefund is the provider's record of a refund.
type RemoteRefund struct {
	ID        string      `json:"id"`
	PaymentID string      `json:"payment_id"`
	Amount    types.Paise `json:"amount"`
	Status    string      `json:"status"`
}

// EventKind names a gateway interaction.
type EventKind string

const (
	EventOrderCreated      EventKind = "order_created"
	EventPaymentVerified   EventKind = "payment_verified"
	EventSignatureMismatch EventKind = "signature_mismatch"
	EventRefund            EventKind = "refund"
)

// GatewayEvent is one row of the gateway interaction log.
type GatewayEvent struct {
	ID               id.ID           `json:"id"`
	Provider         string          `json:"provider"`
	Kind             EventKind       `json:"kind"`
	AssessmentID     *id.ID          `json:"assessmentId,omitempty"`
	PaymentID        *id.ID          `json:"paymentId,omitempty"`
	OrderID          string          `json:"orderId,omitempty"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// EventLog stores gateway events.
type EventLog interface {
	Record(ctx context.Context, e *GatewayEvent) error
}
