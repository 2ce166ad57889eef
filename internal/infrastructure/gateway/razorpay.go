// Package gateway adapts online payment providers to payment.Gateway.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxledger/internal/core/types"
	"taxledger/internal/domain/payment"
)

var tracer = otel.Tracer("taxledger/gateway")

// ErrNotConfigured is returned by NewRazorpay without credentials.
var ErrNotConfigured = errors.New("gateway key id and secret are required")

// Config holds provider credentials. BaseURL overrides the SDK's API host.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// orderAPI and paymentAPI are the parts of the SDK resources the adapter calls.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay implements payment.Gateway over razorpay-go.
type Razorpay struct {
	secret   string
	orders   orderAPI
	payments paymentAPI
}

// NewRazorpay creates the adapter.
func NewRazorpay(cfg Config) (*Razorpay, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, ErrNotConfigured
	}
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	if cfg.BaseURL != "" {
		razorpay.Request.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		secs := int16(cfg.Timeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		client.SetTimeout(secs)
	}
	return &Razorpay{secret: cfg.KeySecret, orders: client.Order, payments: client.Payment}, nil
}

// Name implements payment.Gateway.
func (r *Razorpay) Name() string { return "razorpay" }

// CreateOrder opens a checkout order.
func (r *Razorpay) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	data := map[string]interface{}{
		"amount":   int64(req.Amount),
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	var order payment.Order
	err := r.call(ctx, "create_order", func() (map[string]interface{}, error) {
		return r.orders.Create(data, nil)
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchOrder loads an order with its notes.
func (r *Razorpay) FetchOrder(ctx context.Context, orderID string) (*payment.Order, error) {
	var order payment.Order
	err := r.call(ctx, "fetch_order", func() (map[string]interface{}, error) {
		return r.orders.Fetch(orderID, nil, nil)
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment loads the provider's record of a payment.
func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*payment.RemotePayment, error) {
	var p payment.RemotePayment
	err := r.call(ctx, "fetch_payment", func() (map[string]interface{}, error) {
		return r.payments.Fetch(paymentID, nil, nil)
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Refund refunds amount paise of a captured payment.
func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount types.Paise) (*payment.RemoteRefund, error) {
	var rf payment.RemoteRefund
	err := r.call(ctx, "refund", func() (map[string]interface{}, error) {
		return r.payments.Refund(paymentID, int(amount), nil, nil)
	}, &rf)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderID|paymentID)).
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	if signature == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, strings.ToLower(signature), r.secret)
}

// call runs one SDK request inside a client span and decodes the answer
// into out. The SDK takes no context, so cancellation is checked up front.
func (r *Razorpay) call(ctx context.Context, op string, fn func() (map[string]interface{}, error), out any) (err error) {
	ctx, span := tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("gateway.provider", r.Name())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := fn()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := decode(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// decode maps an SDK response onto a payment struct. Razorpay sends empty
// notes as [] instead of {}, so notes are copied separately.
func decode(body map[string]interface{}, out any) error {
	notes := body["notes"]
	delete(body, "notes")

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return err
	}

	if order, ok := out.(*payment.Order); ok {
		if m, ok := notes.(map[string]interface{}); ok && len(m) > 0 {
			order.Notes = make(map[string]string, len(m))
			for k, v := range m {
				order.Notes[k] = fmt.Sprint(v)
			}
		}
	}
	return nil
}

var _ payment.Gateway = (*Razorpay)(nil)
