package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/settings"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// RecordPaymentInput is one payment applied to an invoice.
type RecordPaymentInput struct {
	InvoiceID   string
	Amount      int64
	Method      string
	Reference   string
	PaymentDate time.Time // zero value means today
}

// RecordPayment applies a payment to an invoice. When the payments on
// the invoice reach its total, the invoice flips to paid in the same
// transaction.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (types.Payment, error) {
	if in.Amount <= 0 {
		return types.Payment{}, fault.Validation("payment amount must be positive, got %d", in.Amount)
	}
	inv, err := s.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return types.Payment{}, err
	}

	when := in.PaymentDate
	if when.IsZero() {
		when = time.Now()
	}
	method := in.Method
	if method == "" {
		method = "cash"
	}

	p := types.Payment{
		ID:          uuid.New().String(),
		InvoiceID:   inv.ID,
		PaymentDate: types.MidnightUTC(when),
		Amount:      in.Amount,
		Method:      method,
		Reference:   in.Reference,
	}

	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		var reference any
		if p.Reference != "" {
			reference = p.Reference
		}
		if _, err := tx.Execute(ctx, `
			INSERT INTO payments (id, invoice_id, payment_date, amount, method, reference)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.InvoiceID, types.FormatDate(p.PaymentDate), p.Amount, p.Method, reference); err != nil {
			return fmt.Errorf("inserting payment: %w", err)
		}
		var paid int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?`,
			inv.ID).Scan(&paid); err != nil {
			return fmt.Errorf("summing payments: %w", err)
		}
		if paid >= inv.Total {
			if _, err := tx.Execute(ctx,
				`UPDATE invoices SET status = ? WHERE id = ?`, types.InvoicePaid, inv.ID); err != nil {
				return fmt.Errorf("marking invoice paid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return types.Payment{}, err
	}

	s.record(ctx, event.NewPaymentRecorded(event.PaymentRecordedPayload{
		PaymentID: p.ID,
		InvoiceID: inv.ID,
		LeaseID:   inv.LeaseID,
		Amount:    p.Amount,
		Method:    p.Method,
	}))
	return p, nil
}

// ListPayments returns an invoice's payments in date order.
func (s *Service) ListPayments(ctx context.Context, invoiceID string) ([]types.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, invoice_id, payment_date, amount, method, COALESCE(reference, '')
		FROM payments WHERE invoice_id = ? ORDER BY payment_date, rowid`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for invoice %s: %w", invoiceID, err)
	}
	defer rows.Close()

	var out []types.Payment
	for rows.Next() {
		var (
			p    types.Payment
			date string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &date, &p.Amount, &p.Method, &p.Reference); err != nil {
			return nil, err
		}
		if p.PaymentDate, err = types.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OutstandingBalance is an invoice's total minus the payments applied to
// it, floored at zero.
func (s *Service) OutstandingBalance(ctx context.Context, invoiceID string) (int64, error) {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	var paid int64
	if err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?`,
		invoiceID).Scan(&paid); err != nil {
		return 0, fmt.Errorf("summing payments for invoice %s: %w", invoiceID, err)
	}
	balance := inv.Total - paid
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// OverdueInvoice is an unpaid invoice with its computed late fee as of a
// reference date.
type OverdueInvoice struct {
	Invoice  types.Invoice `json:"invoice"`
	Balance  int64         `json:"balance"`
	DaysLate int           `json:"days_late"`
	LateFee  int64         `json:"late_fee"`
}

// LateFeeFor computes the late fee owed on an invoice as of asOf, using
// the lease's override when present and the global config otherwise.
func (s *Service) LateFeeFor(ctx context.Context, invoiceID string, asOf time.Time) (int64, error) {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	lease, err := loadLease(ctx, s.db, inv.LeaseID)
	if err != nil {
		return 0, err
	}
	global, err := settings.Get[types.LateFeeConfig](ctx, s.settings, KeyLateFee)
	if err != nil {
		return 0, err
	}
	cfg := EffectiveLateFeeConfig(global, lease)
	daysLate := daysBetween(inv.PeriodEnd, types.MidnightUTC(asOf))
	if daysLate < 0 {
		daysLate = 0
	}
	return ComputeLateFee(inv.Total, cfg, daysLate)
}

// ListOverdue returns all unpaid invoices whose period has ended, with
// outstanding balance and late fee as of asOf.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]OverdueInvoice, error) {
	asOf = types.MidnightUTC(asOf)
	rows, err := s.db.Query(ctx, `
		SELECT i.id
		FROM invoices i
		WHERE i.status != ? AND i.period_end < ?
		ORDER BY i.period_end`, types.InvoicePaid, types.FormatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("listing overdue invoices: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	global, err := settings.Get[types.LateFeeConfig](ctx, s.settings, KeyLateFee)
	if err != nil {
		return nil, err
	}

	var out []OverdueInvoice
	for _, id := range ids {
		inv, err := s.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		balance, err := s.OutstandingBalance(ctx, id)
		if err != nil {
			return nil, err
		}
		if balance == 0 {
			continue
		}
		lease, err := loadLease(ctx, s.db, inv.LeaseID)
		if err != nil {
			return nil, err
		}
		daysLate := daysBetween(inv.PeriodEnd, asOf)
		fee, err := ComputeLateFee(inv.Total, EffectiveLateFeeConfig(global, lease), daysLate)
		if err != nil {
			return nil, err
		}
		out = append(out, OverdueInvoice{Invoice: inv, Balance: balance, DaysLate: daysLate, LateFee: fee})
	}
	return out, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
