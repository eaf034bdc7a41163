// Package render assembles the read-only bundle an external HTML/PDF
// renderer consumes for one invoice. The engine computes nothing new
// here: amounts come from the stored invoice, formatting and wording
// come from caller-supplied functions, and the QR payload comes from the
// payment encoder.
package render

import (
	"strconv"

	"github.com/vuquang/nhatro/internal/types"
	"github.com/vuquang/nhatro/internal/vietqr"
)

// FormatCurrency renders a minor-unit amount for display.
type FormatCurrency func(amount int64) string

// Translate resolves a display string by key.
type Translate func(key string) string

// Line is one display row of the document.
type Line struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   string  `json:"unit_price"`
	Amount      string  `json:"amount"`
}

// Document is the complete render bundle for one invoice.
type Document struct {
	Title       string          `json:"title"`
	Invoice     types.Invoice   `json:"invoice"`
	Lease       types.Lease     `json:"lease"`
	Tenant      *types.Tenant   `json:"tenant,omitempty"`
	Room        types.Room      `json:"room"`
	Apartment   types.Apartment `json:"apartment"`
	Lines       []Line          `json:"lines"`
	Total       string          `json:"total"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	QRPayload   string          `json:"qr_payload,omitempty"`
}

// Input carries the records and callbacks a document is built from.
type Input struct {
	Invoice   types.Invoice
	Lease     types.Lease
	Tenant    *types.Tenant
	Room      types.Room
	Apartment types.Apartment
	Format    FormatCurrency
	T         Translate
	// Transfer, when set, adds a payment QR payload with the invoice
	// total and id as the memo.
	Transfer *vietqr.Request
}

// Build assembles the document. Item amounts are taken from the invoice
// verbatim — never re-derived at render time.
func Build(in Input) (Document, error) {
	format := in.Format
	if format == nil {
		format = func(v int64) string { return strconv.FormatInt(v, 10) }
	}
	t := in.T
	if t == nil {
		t = func(key string) string { return key }
	}

	doc := Document{
		Title:       t("invoice.title"),
		Invoice:     in.Invoice,
		Lease:       in.Lease,
		Tenant:      in.Tenant,
		Room:        in.Room,
		Apartment:   in.Apartment,
		Total:       format(in.Invoice.Total),
		PeriodStart: types.FormatDate(in.Invoice.PeriodStart),
		PeriodEnd:   types.FormatDate(in.Invoice.PeriodEnd),
	}
	for _, it := range in.Invoice.Items {
		doc.Lines = append(doc.Lines, Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   format(it.UnitPrice),
			Amount:      format(it.Amount),
		})
	}

	if in.Transfer != nil {
		req := *in.Transfer
		if req.Amount == 0 {
			req.Amount = in.Invoice.Total
		}
		if req.Memo == "" {
			req.Memo = shortID(in.Invoice.ID)
		}
		payload, err := vietqr.Encode(req)
		if err != nil {
			return Document{}, err
		}
		doc.QRPayload = payload
	}
	return doc, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
