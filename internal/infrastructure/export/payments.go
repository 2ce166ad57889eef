package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"taxledger/internal/core/types"
	"taxledger/internal/domain/payment"
)

// XLSXContentType is the media type of the payments workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PaymentsSheet is the sheet name of the payments workbook.
const PaymentsSheet = "Payments"

// PaymentSource feeds payments to fn one at a time, stopping at the first error.
type PaymentSource func(fn func(*payment.Payment) error) error

var paymentHeaders = []any{
	"Receipt", "Paid at", "Taxpayer", "Financial year", "Period", "Mode",
	"Amount", "Refunded", "Refund status", "Gateway payment", "Note",
}

// PaymentsFilename returns the download name for an export taken at t.
func PaymentsFilename(t time.Time) string {
	return fmt.Sprintf("payments_%s.xlsx", t.Format("20060102_150405"))
}

// WritePayments streams every payment from src into a workbook and writes
// it to w. Nothing reaches w if src fails, so callers can still report
// the error. Returns the number of rows exported.
func WritePayments(w io.Writer, src PaymentSource) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PaymentsSheet); err != nil {
		return 0, err
	}
	sw, err := f.NewStreamWriter(PaymentsSheet)
	if err != nil {
		return 0, err
	}
	if err := sw.SetColWidth(1, 3, 22); err != nil {
		return 0, err
	}
	if err := sw.SetColWidth(10, 11, 26); err != nil {
		return 0, err
	}
	if err := sw.SetRow("A1", paymentHeaders); err != nil {
		return 0, err
	}

	rows := 0
	err = src(func(p *payment.Payment) error {
		cell, err := excelize.CoordinatesToCellName(1, rows+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, paymentRow(p)); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("export payments: %w", err)
	}

	if err := sw.Flush(); err != nil {
		return 0, err
	}
	if _, err := f.WriteTo(w); err != nil {
		return 0, err
	}
	return rows, nil
}

func paymentRow(p *payment.Payment) []any {
	gatewayID := ""
	if p.GatewayPaymentID != nil {
		gatewayID = *p.GatewayPaymentID
	}
	return []any{
		p.ReceiptNumber,
		p.PaidAt.Format("2006-01-02 15:04"),
		p.TaxpayerName,
		p.FinancialYear,
		p.Period,
		string(p.Mode),
		p.Amount.Round(types.MoneyScale).InexactFloat64(),
		p.RefundAmount.Round(types.MoneyScale).InexactFloat64(),
		string(p.RefundStatus),
		gatewayID,
		p.Note,
	}
}
