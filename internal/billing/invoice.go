package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// meterMeta is the display metadata stored on metered line items.
type meterMeta struct {
	StartReading float64 `json:"start_reading"`
	EndReading   float64 `json:"end_reading"`
}

// BuildInvoice turns one period's charges, meter readings and ad-hoc
// extra costs into an invoice with ordered line items. The item order is
// stable — base rent, then fixed charges, then metered charges, then
// extras — so repeated generation from identical inputs is deterministic.
//
// A metered charge with no matching reading for the period is an
// incomplete-input failure: readings have simply not been entered yet,
// and the caller should prompt for them rather than bill a silent zero.
func BuildInvoice(lease types.Lease, charges []LeaseCharge,
	readings map[string]types.MeterReading, extras []types.ExtraCost,
	period Period, issueDate time.Time) (types.Invoice, error) {

	inv := types.Invoice{
		ID:          uuid.New().String(),
		LeaseID:     lease.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		IssueDate:   types.MidnightUTC(issueDate),
		Status:      types.InvoiceDraft,
	}

	addItem := func(it types.InvoiceItem) {
		it.ID = uuid.New().String()
		it.InvoiceID = inv.ID
		it.Position = len(inv.Items)
		inv.Items = append(inv.Items, it)
		inv.Subtotal += it.Amount
	}

	// Base rent always comes first.
	addItem(types.InvoiceItem{
		Description: "Tiền thuê",
		Quantity:    1,
		Unit:        periodUnit(lease.BillingCycle),
		UnitPrice:   lease.BaseRent,
		Amount:      lease.BaseRent,
	})

	// Fixed charges, then metered charges, each in catalog order.
	for _, lc := range charges {
		if lc.Kind.Fixed == nil {
			continue
		}
		addItem(types.InvoiceItem{
			Description:  lc.Type.Name,
			Quantity:     1,
			Unit:         lc.Type.Unit,
			UnitPrice:    lc.Kind.Fixed.UnitPrice,
			Amount:       lc.Kind.Fixed.UnitPrice,
			ChargeTypeID: lc.Type.ID,
		})
	}
	for _, lc := range charges {
		m := lc.Kind.Metered
		if m == nil {
			continue
		}
		reading, ok := readings[lc.Type.ID]
		if !ok {
			return types.Invoice{}, fault.Incomplete(
				"no meter reading for %q in the period starting %s",
				lc.Type.Name, types.FormatDate(period.Start))
		}
		qty := reading.Quantity()
		amount := m.UnitPrice
		if m.Pricing != types.PricingFlat {
			amount = roundHalfUp(qty * float64(m.UnitPrice))
		}
		meta, _ := json.Marshal(meterMeta{StartReading: reading.StartReading, EndReading: reading.EndReading})
		addItem(types.InvoiceItem{
			Description:  lc.Type.Name,
			Quantity:     qty,
			Unit:         m.Unit,
			UnitPrice:    m.UnitPrice,
			Amount:       amount,
			ChargeTypeID: lc.Type.ID,
			Meta:         meta,
		})
	}

	// Ad-hoc extras: positive amount and a name, anything else is dropped.
	for _, ec := range extras {
		if ec.Amount <= 0 || ec.Name == "" {
			continue
		}
		addItem(types.InvoiceItem{
			Description: ec.Name,
			Quantity:    1,
			UnitPrice:   ec.Amount,
			Amount:      ec.Amount,
		})
	}

	inv.Total = inv.Subtotal
	return inv, nil
}

func periodUnit(c types.BillingCycle) string {
	switch c {
	case types.CycleDaily:
		return "day"
	case types.CycleYearly:
		return "year"
	case types.CycleMonthly:
		return "month"
	default:
		return "cycle"
	}
}

func insertInvoice(ctx context.Context, q store.Querier, inv types.Invoice) error {
	_, err := q.Execute(ctx, `
		INSERT INTO invoices (id, lease_id, period_start, period_end, issue_date,
		                      subtotal, total, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.LeaseID, types.FormatDate(inv.PeriodStart), types.FormatDate(inv.PeriodEnd),
		types.FormatDate(inv.IssueDate), inv.Subtotal, inv.Total, inv.Status)
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	for _, it := range inv.Items {
		var meta any
		if len(it.Meta) > 0 {
			meta = string(it.Meta)
		}
		var chargeType any
		if it.ChargeTypeID != "" {
			chargeType = it.ChargeTypeID
		}
		if _, err := q.Execute(ctx, `
			INSERT INTO invoice_items (id, invoice_id, position, description, quantity,
			                           unit, unit_price, amount, charge_type_id, meta)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.InvoiceID, it.Position, it.Description, it.Quantity,
			it.Unit, it.UnitPrice, it.Amount, chargeType, meta); err != nil {
			return fmt.Errorf("inserting invoice item %d: %w", it.Position, err)
		}
	}
	return nil
}

// GetInvoice loads an invoice with its ordered items.
func (s *Service) GetInvoice(ctx context.Context, id string) (types.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, q store.Querier, id string) (types.Invoice, error) {
	var (
		inv               types.Invoice
		start, end, issue string
	)
	err := q.QueryRow(ctx, `
		SELECT id, lease_id, period_start, period_end, issue_date, subtotal, total, status
		FROM invoices WHERE id = ?`, id).
		Scan(&inv.ID, &inv.LeaseID, &start, &end, &issue, &inv.Subtotal, &inv.Total, &inv.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return inv, fault.NotFound("invoice %s not found", id)
	}
	if err != nil {
		return inv, fmt.Errorf("loading invoice %s: %w", id, err)
	}
	if inv.PeriodStart, err = types.ParseDate(start); err != nil {
		return inv, err
	}
	if inv.PeriodEnd, err = types.ParseDate(end); err != nil {
		return inv, err
	}
	if inv.IssueDate, err = types.ParseDate(issue); err != nil {
		return inv, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit,
		       unit_price, amount, charge_type_id, meta
		FROM invoice_items WHERE invoice_id = ? ORDER BY position`, id)
	if err != nil {
		return inv, fmt.Errorf("loading items for invoice %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it         types.InvoiceItem
			chargeType sql.NullString
			meta       sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Description,
			&it.Quantity, &it.Unit, &it.UnitPrice, &it.Amount, &chargeType, &meta); err != nil {
			return inv, err
		}
		if chargeType.Valid {
			it.ChargeTypeID = chargeType.String
		}
		if meta.Valid {
			it.Meta = json.RawMessage(meta.String)
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}

// ListInvoices returns a lease's invoices in period order, without
// items. A limit of zero or less means all.
func (s *Service) ListInvoices(ctx context.Context, leaseID string, limit, offset int) ([]types.Invoice, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, lease_id, period_start, period_end, issue_date, subtotal, total, status
		FROM invoices WHERE lease_id = ? ORDER BY period_start
		LIMIT ? OFFSET ?`, leaseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing invoices for lease %s: %w", leaseID, err)
	}
	defer rows.Close()

	var out []types.Invoice
	for rows.Next() {
		var (
			inv               types.Invoice
			start, end, issue string
		)
		if err := rows.Scan(&inv.ID, &inv.LeaseID, &start, &end, &issue,
			&inv.Subtotal, &inv.Total, &inv.Status); err != nil {
			return nil, err
		}
		if inv.PeriodStart, err = types.ParseDate(start); err != nil {
			return nil, err
		}
		if inv.PeriodEnd, err = types.ParseDate(end); err != nil {
			return nil, err
		}
		if inv.IssueDate, err = types.ParseDate(issue); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkInvoiceSent transitions a draft invoice to sent. Paid invoices are
// left alone.
func (s *Service) MarkInvoiceSent(ctx context.Context, id string) error {
	res, err := s.db.Execute(ctx,
		`UPDATE invoices SET status = ? WHERE id = ? AND status = ?`,
		types.InvoiceSent, id, types.InvoiceDraft)
	if err != nil {
		return fmt.Errorf("marking invoice sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		inv, err := s.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		return fault.Conflict("invoice is %s, only draft invoices can be sent", inv.Status)
	}
	return nil
}
