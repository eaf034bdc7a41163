package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/tenancy"
	"github.com/vuquang/nhatro/internal/types"
)

// TenancyHandler serves tenant and lease endpoints.
type TenancyHandler struct {
	svc *tenancy.Service
}

func NewTenancyHandler(svc *tenancy.Service) *TenancyHandler {
	return &TenancyHandler{svc: svc}
}

type tenantRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	NationalID string `json:"national_id"`
	Note       string `json:"note"`
}

func (h *TenancyHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	t, err := h.svc.CreateTenant(r.Context(), types.Tenant{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		NationalID: req.NationalID,
		Note:       req.Note,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TenancyHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TenancyHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	ts, err := h.svc.ListTenants(r.Context(), p.Limit, p.Offset)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

type startLeaseRequest struct {
	RoomID          string               `json:"room_id" validate:"required"`
	TenantID        string               `json:"tenant_id"`
	LeaseType       string               `json:"lease_type" validate:"omitempty,oneof=short_term long_term"`
	StartDate       string               `json:"start_date" validate:"required"`
	BillingCycle    string               `json:"billing_cycle" validate:"omitempty,oneof=daily monthly yearly"`
	BaseRent        int64                `json:"base_rent" validate:"gte=0"`
	DepositAmount   int64                `json:"deposit_amount" validate:"gte=0"`
	DurationDays    *int                 `json:"duration_days"`
	LateFeeOverride *types.LateFeeConfig `json:"late_fee_override"`
}

func (h *TenancyHandler) StartLease(w http.ResponseWriter, r *http.Request) {
	var req startLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	start, err := types.ParseDate(req.StartDate)
	if err != nil {
		faultToHTTP(w, fault.Validation("invalid start_date %q: expected YYYY-MM-DD", req.StartDate))
		return
	}
	lease, err := h.svc.StartLease(r.Context(), tenancy.StartLeaseInput{
		RoomID:          req.RoomID,
		TenantID:        req.TenantID,
		LeaseType:       types.LeaseType(req.LeaseType),
		StartDate:       start,
		BillingCycle:    types.BillingCycle(req.BillingCycle),
		BaseRent:        req.BaseRent,
		DepositAmount:   req.DepositAmount,
		DurationDays:    req.DurationDays,
		LateFeeOverride: req.LateFeeOverride,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lease)
}

func (h *TenancyHandler) GetLease(w http.ResponseWriter, r *http.Request) {
	lease, err := h.svc.GetLease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

// ListLeases lists leases, optionally filtered by ?room_id=.
func (h *TenancyHandler) ListLeases(w http.ResponseWriter, r *http.Request) {
	leases, err := h.svc.ListLeases(r.Context(), r.URL.Query().Get("room_id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leases)
}

type terminateLeaseRequest struct {
	EndDate string `json:"end_date" validate:"required"`
}

func (h *TenancyHandler) TerminateLease(w http.ResponseWriter, r *http.Request) {
	var req terminateLeaseRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	end, err := types.ParseDate(req.EndDate)
	if err != nil {
		faultToHTTP(w, fault.Validation("invalid end_date %q: expected YYYY-MM-DD", req.EndDate))
		return
	}
	lease, err := h.svc.TerminateLease(r.Context(), chi.URLParam(r, "id"), end)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

type attachChargeRequest struct {
	ChargeTypeID string          `json:"charge_type_id" validate:"required"`
	UnitPrice    *int64          `json:"unit_price" validate:"omitempty,gte=0"`
	Config       json.RawMessage `json:"config"`
}

func (h *TenancyHandler) AttachCharge(w http.ResponseWriter, r *http.Request) {
	var req attachChargeRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	rc, err := h.svc.AttachCharge(r.Context(), chi.URLParam(r, "id"), req.ChargeTypeID, req.UnitPrice, req.Config)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (h *TenancyHandler) ListCharges(w http.ResponseWriter, r *http.Request) {
	rcs, err := h.svc.ListCharges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcs)
}

func (h *TenancyHandler) DetachCharge(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DetachCharge(r.Context(), chi.URLParam(r, "chargeID")); err != nil {
		faultToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type readingRequest struct {
	ChargeTypeID string  `json:"charge_type_id" validate:"required"`
	PeriodStart  string  `json:"period_start" validate:"required"`
	PeriodEnd    string  `json:"period_end" validate:"required"`
	StartReading float64 `json:"start_reading"`
	EndReading   float64 `json:"end_reading"`
}

func (h *TenancyHandler) RecordReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	start, err := types.ParseDate(req.PeriodStart)
	if err != nil {
		faultToHTTP(w, fault.Validation("invalid period_start %q: expected YYYY-MM-DD", req.PeriodStart))
		return
	}
	var end time.Time
	if end, err = types.ParseDate(req.PeriodEnd); err != nil {
		faultToHTTP(w, fault.Validation("invalid period_end %q: expected YYYY-MM-DD", req.PeriodEnd))
		return
	}
	m, err := h.svc.RecordReading(r.Context(), types.MeterReading{
		LeaseID:      chi.URLParam(r, "id"),
		ChargeTypeID: req.ChargeTypeID,
		PeriodStart:  start,
		PeriodEnd:    end,
		StartReading: req.StartReading,
		EndReading:   req.EndReading,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *TenancyHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListReadings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}
