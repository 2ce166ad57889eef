package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"taxledger/internal/core/id"
	"taxledger/internal/domain/payment"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 4 * 1024

// GatewayEventLog writes the payment-provider call log to gateway_events.
// Payloads above the threshold are stored zstd-compressed.
type GatewayEventLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewGatewayEventLog creates a new gateway event log.
func NewGatewayEventLog(txManager *TxManager) (*GatewayEventLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &GatewayEventLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Record implements payment.EventLog.
func (l *GatewayEventLog) Record(ctx context.Context, e *payment.GatewayEvent) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	plain, compressed, algo := l.pack(e.Payload)

	const sql = `
		INSERT INTO gateway_events (
			id, provider, kind, assessment_id, payment_id, order_id,
			gateway_payment_id, success, error, payload, payload_compressed,
			compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := l.txManager.GetQuerier(ctx).Exec(ctx, sql,
		e.ID, e.Provider, e.Kind, e.AssessmentID, e.PaymentID, nullIfEmpty(e.OrderID),
		nullIfEmpty(e.GatewayPaymentID), e.Success, nullIfEmpty(e.Error),
		plain, compressed, algo, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gateway event: %w", err)
	}
	return nil
}

// ForAssessment returns the newest events that reference an assessment.
func (l *GatewayEventLog) ForAssessment(ctx context.Context, assessmentID id.ID, limit int) ([]payment.GatewayEvent, error) {
	const sql = `
		SELECT id, provider, kind, assessment_id, payment_id,
		       COALESCE(order_id, ''), COALESCE(gateway_payment_id, ''),
		       success, COALESCE(error, ''), payload, payload_compressed,
		       compression_algo, created_at
		FROM gateway_events
		WHERE assessment_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, sql, assessmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query gateway events: %w", err)
	}
	defer rows.Close()

	var events []payment.GatewayEvent
	for rows.Next() {
		var (
			e          payment.GatewayEvent
			plain      []byte
			compressed []byte
			algo       CompressionAlgo
		)
		err := rows.Scan(
			&e.ID, &e.Provider, &e.Kind, &e.AssessmentID, &e.PaymentID,
			&e.OrderID, &e.GatewayPaymentID, &e.Success, &e.Error,
			&plain, &compressed, &algo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gateway event: %w", err)
		}

		e.Payload, err = l.unpack(plain, compressed, algo)
		if err != nil {
			return nil, fmt.Errorf("gateway event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func (l *GatewayEventLog) pack(payload json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(payload) == 0 {
		return nil, nil, CompressionNone
	}
	if len(payload) <= l.compressThreshold {
		return payload, nil, CompressionNone
	}
	return nil, l.encoder.EncodeAll(payload, nil), CompressionZstd
}

func (l *GatewayEventLog) unpack(plain, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	if algo != CompressionZstd || len(compressed) == 0 {
		return plain, nil
	}
	out, err := l.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ payment.EventLog = (*GatewayEventLog)(nil)
