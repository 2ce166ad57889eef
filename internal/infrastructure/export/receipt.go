// Package export renders ledger data into documents: payment receipts as PDF
// and payment lists as XLSX workbooks.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"taxledger/internal/core/types"
	"taxledger/internal/domain/payment"
)

// Issuer is the authority printed on receipts.
type Issuer struct {
	Name    string
	Address string
}

// DefaultIssuer is used when the server is not configured with one.
var DefaultIssuer = Issuer{Name: "Professional Tax Office"}

const dateLayout = "02 Jan 2006"

// ReceiptPDF renders a payment receipt.
func ReceiptPDF(p *payment.Payment, issuer Issuer) ([]byte, error) {
	if p == nil {
		return nil, errors.New("receipt: nil payment")
	}
	if issuer.Name == "" {
		issuer = DefaultIssuer
	}

	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(10).
		WithTopMargin(15).
		WithRightMargin(10).
		Build()
	m := maroto.New(cfg)

	addHeader(m, p, issuer)
	addParty(m, p)
	addAmounts(m, p)
	addGateway(m, p)
	addFooter(m)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt: %w", err)
	}
	return doc.GetBytes(), nil
}

func addHeader(m core.Maroto, p *payment.Payment, issuer Issuer) {
	m.AddRow(28,
		col.New(7).Add(
			text.New(issuer.Name, props.Text{Size: 15, Style: fontstyle.Bold, Align: align.Left}),
			text.New(issuer.Address, props.Text{Size: 9, Top: 8, Align: align.Left}),
		),
		col.New(5).Add(
			text.New("PAYMENT RECEIPT", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
			text.New("# "+p.ReceiptNumber, props.Text{Size: 10, Top: 8, Align: align.Right}),
		),
	)
	m.AddRow(5, line.NewCol(12))
}

func addParty(m core.Maroto, p *payment.Payment) {
	m.AddRow(24,
		col.New(6).Add(
			text.New("Received from", props.Text{Size: 9, Style: fontstyle.Bold}),
			text.New(p.TaxpayerName, props.Text{Size: 11, Top: 5}),
			text.New("Taxpayer ID: "+p.TaxpayerID.String(), props.Text{Size: 8, Top: 11}),
		),
		col.New(6).Add(
			text.New("Date: "+p.PaidAt.Format(dateLayout), props.Text{Size: 10, Align: align.Right}),
			text.New(fmt.Sprintf("Financial year: %s %s", p.FinancialYear, p.Period),
				props.Text{Size: 10, Top: 5, Align: align.Right}),
			text.New("Mode: "+modeLabel(p.Mode), props.Text{Size: 10, Top: 10, Align: align.Right}),
		),
	)
}

func addAmounts(m core.Maroto, p *payment.Payment) {
	m.AddRow(5, line.NewCol(12))
	amountRow(m, "Professional tax paid", p.Amount, fontstyle.Bold)
	if p.RefundStatus != payment.RefundNone && p.RefundAmount.IsPositive() {
		amountRow(m, "Refunded", p.RefundAmount, fontstyle.Normal)
		amountRow(m, "Net received", p.Refundable(), fontstyle.Bold)
	}
	m.AddRow(5, line.NewCol(12))
}

func amountRow(m core.Maroto, label string, amount types.Money, style fontstyle.Type) {
	m.AddRow(8,
		col.New(8).Add(text.New(label, props.Text{Size: 11, Style: style})),
		col.New(4).Add(text.New(formatINR(amount), props.Text{Size: 11, Style: style, Align: align.Right})),
	)
}

func addGateway(m core.Maroto, p *payment.Payment) {
	if p.GatewayPaymentID == nil {
		if p.Note != "" {
			m.AddRow(8, col.New(12).Add(text.New("Note: "+p.Note, props.Text{Size: 9})))
		}
		return
	}
	order := ""
	if p.GatewayOrderID != nil {
		order = *p.GatewayOrderID
	}
	m.AddRow(12,
		col.New(12).Add(
			text.New("Gateway payment: "+*p.GatewayPaymentID, props.Text{Size: 9}),
			text.New("Order: "+order, props.Text{Size: 9, Top: 5}),
		),
	)
}

func addFooter(m core.Maroto) {
	m.AddRow(16,
		col.New(12).Add(
			text.New("This is a computer generated receipt and needs no signature.",
				props.Text{Size: 8, Top: 6, Style: fontstyle.Italic, Align: align.Center}),
		),
	)
}

func formatINR(m types.Money) string {
	return "INR " + groupIndian(m.StringFixed(types.MoneyScale))
}

// groupIndian inserts lakh-style separators: 125000.00 -> 1,25,000.00.
func groupIndian(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}

	head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + strings.Join(append(groups, tail), ",") + frac
}

func modeLabel(m payment.Mode) string {
	switch m {
	case payment.ModeBankTransfer:
		return "Bank transfer"
	case payment.ModeOnline:
		return "Online"
	case payment.ModeCash:
		return "Cash"
	case payment.ModeCheque:
		return "Cheque"
	default:
		return "Manual"
	}
}
