package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vuquang/nhatro/internal/housing"
	"github.com/vuquang/nhatro/internal/types"
)

// HousingHandler serves apartment and room endpoints.
type HousingHandler struct {
	svc *housing.Service
}

func NewHousingHandler(svc *housing.Service) *HousingHandler {
	return &HousingHandler{svc: svc}
}

type apartmentRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (h *HousingHandler) CreateApartment(w http.ResponseWriter, r *http.Request) {
	var req apartmentRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	apt, err := h.svc.CreateApartment(r.Context(), req.Name, req.Address)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apt)
}

func (h *HousingHandler) GetApartment(w http.ResponseWriter, r *http.Request) {
	apt, err := h.svc.GetApartment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (h *HousingHandler) ListApartments(w http.ResponseWriter, r *http.Request) {
	apts, err := h.svc.ListApartments(r.Context())
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apts)
}

func (h *HousingHandler) UpdateApartment(w http.ResponseWriter, r *http.Request) {
	var req apartmentRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	apt, err := h.svc.UpdateApartment(r.Context(), chi.URLParam(r, "id"), req.Name, req.Address)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (h *HousingHandler) DeleteApartment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteApartment(r.Context(), chi.URLParam(r, "id")); err != nil {
		faultToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roomRequest struct {
	Code  string  `json:"code" validate:"required"`
	Floor int     `json:"floor"`
	Area  float64 `json:"area" validate:"gte=0"`
}

func (h *HousingHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	room, err := h.svc.CreateRoom(r.Context(), types.Room{
		ApartmentID: chi.URLParam(r, "id"),
		Code:        req.Code,
		Floor:       req.Floor,
		Area:        req.Area,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *HousingHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.svc.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ListRooms lists rooms, optionally filtered by ?apartment_id=.
func (h *HousingHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.ListRooms(r.Context(), r.URL.Query().Get("apartment_id"))
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *HousingHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		faultToHTTP(w, err)
		return
	}
	room, err := h.svc.UpdateRoom(r.Context(), types.Room{
		ID:    chi.URLParam(r, "id"),
		Code:  req.Code,
		Floor: req.Floor,
		Area:  req.Area,
	})
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *HousingHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRoom(r.Context(), chi.URLParam(r, "id")); err != nil {
		faultToHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
