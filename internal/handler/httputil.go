package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/vuquang/nhatro/internal/fault"
)

// validate checks request DTO struct tags.
var validate = validator.New()

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v and checks its validation
// tags. Failures come back classified so callers can hand them straight
// to faultToHTTP.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(fault.KindValidation, err, "invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return fault.Wrap(fault.KindValidation, err, "invalid request")
	}
	return nil
}

// faultToHTTP maps the engine's error taxonomy to HTTP responses.
func faultToHTTP(w http.ResponseWriter, err error) {
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case fault.KindValidation:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case fault.KindConflict:
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case fault.KindIncomplete:
		// Missing external state: the caller should collect it and retry.
		writeError(w, http.StatusUnprocessableEntity, "INCOMPLETE_INPUT", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 20, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}
