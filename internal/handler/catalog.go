package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vuquang/nhatro/internal/catalog"
	"github.com/vuquang/nhatro/internal/types"
)

// CatalogHandler serves the charge-type price list.
type CatalogHandler struct {
	svc *catalog.Service
}

func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

type chargeTypeRequest struct {
	ApartmentID string          `json:"apartment_id"`
	Name        string          `json:"name" validate:"required"`
	Unit        string          `json:"unit"`
	Pricing     string          `json:"pricing" validate:"omitempty,oneof=flat per_unit tiered"`
	UnitPrice   int64           `json:"unit_price" validate:"gte=0"`
	IsVariable  bool            `json:"is_variable"`
	Meta        json.RawMessage `json:"meta"`
}

func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req chargeTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	ct, err := h.svc.Create(r.Context(), types.ChargeType{
		ApartmentID: req.ApartmentID,
		Name:        req.Name,
		Unit:        req.Unit,
		Pricing:     types.PricingModel(req.Pricing),
		UnitPrice:   req.UnitPrice,
		IsVariable:  req.IsVariable,
		Meta:        req.Meta,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ct)
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	ct, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// List returns global charge types plus, with ?apartment_id=, the
// apartment-scoped ones.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	cts, err := h.svc.List(r.Context(), r.URL.Query().Get("apartment_id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cts)
}

type chargeTypeUpdateRequest struct {
	Name      string `json:"name" validate:"required"`
	Unit      string `json:"unit"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
}

func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req chargeTypeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	ct, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Unit, req.UnitPrice)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		faultToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
