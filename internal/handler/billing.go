package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vuquang/nhatro/internal/billing"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/housing"
	"github.com/vuquang/nhatro/internal/render"
	"github.com/vuquang/nhatro/internal/settings"
	"github.com/vuquang/nhatro/internal/tenancy"
	"github.com/vuquang/nhatro/internal/types"
	"github.com/vuquang/nhatro/internal/vietqr"
)

// KeyBankAccount is the settings key holding the landlord's receiving
// account for transfer QR payloads.
const KeyBankAccount = "bank_account"

// BankAccount is the stored receiving-account config.
type BankAccount struct {
	BankBIN       string `json:"bank_bin" validate:"required,numeric"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountName   string `json:"account_name"`
}

// BillingHandler serves cycles, invoices, payments, settlements, and the
// billing-related settings.
type BillingHandler struct {
	svc      *billing.Service
	tenancy  *tenancy.Service
	housing  *housing.Service
	settings *settings.Repository
}

func NewBillingHandler(svc *billing.Service, ten *tenancy.Service, hou *housing.Service, st *settings.Repository) *BillingHandler {
	return &BillingHandler{svc: svc, tenancy: ten, housing: hou, settings: st}
}

// EnsureCycles materializes the lease's due billing cycles and returns
// all of them.
func (h *BillingHandler) EnsureCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.svc.EnsureCycles(r.Context(), chi.URLParam(r, "id"), time.Now())
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (h *BillingHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.svc.ListCycles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (h *BillingHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.svc.GetCycle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

type settleCycleRequest struct {
	Quantities map[string]float64 `json:"quantities"`
	Extras     []types.ExtraCost  `json:"extras"`
	IssueDate  string             `json:"issue_date"`
}

func (h *BillingHandler) SettleCycle(w http.ResponseWriter, r *http.Request) {
	var req settleCycleRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	var issue time.Time
	if req.IssueDate != "" {
		var err error
		if issue, err = types.ParseDate(req.IssueDate); err != nil {
			faultToHTTP(w, fault.Validation("invalid issue_date %q: expected YYYY-MM-DD", req.IssueDate))
			return
		}
	}
	inv, err := h.svc.SettleCycle(r.Context(), billing.SettleCycleInput{
		CycleID:    chi.URLParam(r, "id"),
		Quantities: req.Quantities,
		Extras:     req.Extras,
		IssueDate:  issue,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// PreviewInvoice builds the cycle's invoice from stored readings without
// persisting anything.
func (h *BillingHandler) PreviewInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.PreviewInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *BillingHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *BillingHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	invs, err := h.svc.ListInvoices(r.Context(), r.URL.Query().Get("lease_id"), p.Limit, p.Offset)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *BillingHandler) MarkInvoiceSent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.MarkInvoiceSent(r.Context(), id); err != nil {
		faultToHTTP(w, err)
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type paymentRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	PaymentDate string `json:"payment_date"`
}

func (h *BillingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	var paid time.Time
	if req.PaymentDate != "" {
		var err error
		if paid, err = types.ParseDate(req.PaymentDate); err != nil {
			faultToHTTP(w, fault.Validation("invalid payment_date %q: expected YYYY-MM-DD", req.PaymentDate))
			return
		}
	}
	p, err := h.svc.RecordPayment(r.Context(), billing.RecordPaymentInput{
		InvoiceID:   chi.URLParam(r, "id"),
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
		PaymentDate: paid,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *BillingHandler) OutstandingBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.OutstandingBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": bal})
}

// InvoiceQR returns the EMVCo transfer payload for the invoice's unpaid
// balance, using the stored bank account.
func (h *BillingHandler) InvoiceQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	acct, err := settings.Get[BankAccount](r.Context(), h.settings, KeyBankAccount)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	if acct == nil {
		faultToHTTP(w, fault.Incomplete("no bank account configured; set the %s setting first", KeyBankAccount))
		return
	}
	bal, err := h.svc.OutstandingBalance(r.Context(), id)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	payload, err := vietqr.Encode(vietqr.Request{
		BankBIN:       acct.BankBIN,
		AccountNumber: acct.AccountNumber,
		AccountName:   acct.AccountName,
		Amount:        bal,
		Memo:          invoiceMemo(inv),
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payload": payload,
		"amount":  bal,
	})
}

// InvoiceDocument returns the rendered invoice bundle for display or
// printing. A transfer QR block is included when a bank account is
// configured.
func (h *BillingHandler) InvoiceDocument(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	lease, err := h.tenancy.GetLease(r.Context(), inv.LeaseID)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	room, err := h.housing.GetRoom(r.Context(), lease.RoomID)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	apt, err := h.housing.GetApartment(r.Context(), room.ApartmentID)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	var tenant *types.Tenant
	if lease.TenantID != "" {
		t, err := h.tenancy.GetTenant(r.Context(), lease.TenantID)
		if err != nil && !fault.IsKind(err, fault.KindNotFound) {
			faultToHTTP(w, err)
			return
		}
		if err == nil {
			tenant = &t
		}
	}
	in := render.Input{
		Invoice:   inv,
		Lease:     lease,
		Tenant:    tenant,
		Room:      room,
		Apartment: apt,
	}
	acct, err := settings.Get[BankAccount](r.Context(), h.settings, KeyBankAccount)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	if acct != nil {
		in.Transfer = &vietqr.Request{
			BankBIN:       acct.BankBIN,
			AccountNumber: acct.AccountNumber,
			AccountName:   acct.AccountName,
		}
	}
	doc, err := render.Build(in)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type closeLeaseRequest struct {
	Adjustments []types.Adjustment `json:"adjustments"`
	Signed      bool               `json:"signed"`
	SettledAt   string             `json:"settled_at"`
}

// CloseLease runs the lease-end settlement.
func (h *BillingHandler) CloseLease(w http.ResponseWriter, r *http.Request) {
	var req closeLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	var at time.Time
	if req.SettledAt != "" {
		var err error
		if at, err = types.ParseDate(req.SettledAt); err != nil {
			faultToHTTP(w, fault.Validation("invalid settled_at %q: expected YYYY-MM-DD", req.SettledAt))
			return
		}
	}
	st, err := h.svc.CloseLease(r.Context(), billing.CloseLeaseInput{
		LeaseID:     chi.URLParam(r, "id"),
		Adjustments: req.Adjustments,
		Signed:      req.Signed,
		SettledAt:   at,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *BillingHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetSettlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListOverdue reports unpaid invoices past their period end, with the
// late fee each has accrued. ?as_of= defaults to today.
func (h *BillingHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		var err error
		if asOf, err = types.ParseDate(v); err != nil {
			faultToHTTP(w, fault.Validation("invalid as_of %q: expected YYYY-MM-DD", v))
			return
		}
	}
	out, err := h.svc.ListOverdue(r.Context(), asOf)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLateFeeConfig returns the global late fee config, or the disabled
// zero config when none is stored.
func (h *BillingHandler) GetLateFeeConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := settings.Get[types.LateFeeConfig](r.Context(), h.settings, billing.KeyLateFee)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	if cfg == nil {
		cfg = &types.LateFeeConfig{}
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *BillingHandler) PutLateFeeConfig(w http.ResponseWriter, r *http.Request) {
	var cfg types.LateFeeConfig
	if err := decodeJSON(r, &cfg); err != nil {
		faultToHTTP(w, err)
		return
	}
	if cfg.Mode != types.LateFeeFlat && cfg.Mode != types.LateFeePercent {
		faultToHTTP(w, fault.Validation("late fee mode must be flat or percent, got %q", cfg.Mode))
		return
	}
	if cfg.Repeat != types.RepeatNone && cfg.Repeat != types.RepeatDaily {
		faultToHTTP(w, fault.Validation("late fee repeat must be none or daily, got %q", cfg.Repeat))
		return
	}
	if err := h.settings.Set(r.Context(), billing.KeyLateFee, cfg); err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *BillingHandler) GetBankAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := settings.Get[BankAccount](r.Context(), h.settings, KeyBankAccount)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	if acct == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no bank account configured")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *BillingHandler) PutBankAccount(w http.ResponseWriter, r *http.Request) {
	var acct BankAccount
	if err := decodeJSON(r, &acct); err != nil {
		faultToHTTP(w, err)
		return
	}
	if err := h.settings.Set(r.Context(), KeyBankAccount, acct); err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// invoiceMemo is the transfer note scanned into banking apps: short and
// ASCII-safe, derived from the invoice id.
func invoiceMemo(inv types.Invoice) string {
	id := inv.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "HD " + id
}
