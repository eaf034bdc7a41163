package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
	"github.com/vuquang/nhatro/internal/vietqr"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	srv := httptest.NewServer(Router(Config{DB: db, Recorder: event.NewStoreRecorder(db)}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// TestMonthlyBillingFlow walks the whole tenancy through the HTTP API:
// set up housing and catalog, start a lease, settle the first cycle with
// a meter quantity, pay the invoice, and fetch the transfer QR.
func TestMonthlyBillingFlow(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	var apt types.Apartment
	resp := doJSON(t, http.MethodPost, base+"/apartments",
		map[string]any{"name": "Nhà trọ 12A", "address": "12A Lê Lợi"}, &apt)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var room types.Room
	resp = doJSON(t, http.MethodPost, base+"/apartments/"+apt.ID+"/rooms",
		map[string]any{"code": "P101", "floor": 1, "area": 18}, &room)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var electricity types.ChargeType
	resp = doJSON(t, http.MethodPost, base+"/charge-types",
		map[string]any{"name": "Điện", "unit": "kWh", "unit_price": 3500, "is_variable": true}, &electricity)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var lease types.Lease
	resp = doJSON(t, http.MethodPost, base+"/leases", map[string]any{
		"room_id":        room.ID,
		"start_date":     "2025-01-01",
		"base_rent":      3_000_000,
		"deposit_amount": 3_000_000,
	}, &lease)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/leases/"+lease.ID+"/charges",
		map[string]any{"charge_type_id": electricity.ID}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cycles []types.Cycle
	resp = doJSON(t, http.MethodPost, base+"/leases/"+lease.ID+"/cycles", nil, &cycles)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, cycles)

	var inv types.Invoice
	resp = doJSON(t, http.MethodPost, base+"/cycles/"+cycles[0].ID+"/settle", map[string]any{
		"quantities": map[string]float64{electricity.ID: 120},
	}, &inv)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, int64(3_420_000), inv.Total)

	// Re-settling the same cycle conflicts.
	resp = doJSON(t, http.MethodPost, base+"/cycles/"+cycles[0].ID+"/settle", map[string]any{}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/invoices/"+inv.ID+"/payments",
		map[string]any{"amount": inv.Total, "method": "cash"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var paid types.Invoice
	resp = doJSON(t, http.MethodGet, base+"/invoices/"+inv.ID, nil, &paid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, types.InvoicePaid, paid.Status)
}

func TestInvoiceQREndpoint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	// Without a configured account the QR endpoint reports missing input.
	var apt types.Apartment
	doJSON(t, http.MethodPost, base+"/apartments", map[string]any{"name": "A"}, &apt)
	var room types.Room
	doJSON(t, http.MethodPost, base+"/apartments/"+apt.ID+"/rooms", map[string]any{"code": "P101"}, &room)
	var lease types.Lease
	doJSON(t, http.MethodPost, base+"/leases",
		map[string]any{"room_id": room.ID, "start_date": "2025-01-01", "base_rent": 2_000_000}, &lease)
	var cycles []types.Cycle
	doJSON(t, http.MethodPost, base+"/leases/"+lease.ID+"/cycles", nil, &cycles)
	var inv types.Invoice
	doJSON(t, http.MethodPost, base+"/cycles/"+cycles[0].ID+"/settle", map[string]any{}, &inv)

	resp := doJSON(t, http.MethodGet, base+"/invoices/"+inv.ID+"/qr", nil, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, base+"/settings/bank-account", map[string]any{
		"bank_bin":       "970407",
		"account_number": "0123456789",
		"account_name":   "NGUYEN VAN A",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var qr struct {
		Payload string `json:"payload"`
		Amount  int64  `json:"amount"`
	}
	resp = doJSON(t, http.MethodGet, base+"/invoices/"+inv.ID+"/qr", nil, &qr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(2_000_000), qr.Amount)
	require.True(t, vietqr.Verify(qr.Payload))
}

func TestLateFeeSettingsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	var unset types.LateFeeConfig
	resp := doJSON(t, http.MethodGet, base+"/settings/late-fee", nil, &unset)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, unset.Enabled)

	resp = doJSON(t, http.MethodPut, base+"/settings/late-fee", map[string]any{
		"enabled": true, "after_days": 3, "mode": "percent", "percent": 5, "repeat": "daily",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.LateFeeConfig
	resp = doJSON(t, http.MethodGet, base+"/settings/late-fee", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, got.Enabled)
	require.Equal(t, types.LateFeePercent, got.Mode)

	resp = doJSON(t, http.MethodPut, base+"/settings/late-fee",
		map[string]any{"enabled": true, "mode": "bogus", "repeat": "none"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	resp := doJSON(t, http.MethodGet, base+"/apartments/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/apartments", map[string]any{"address": "no name"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var health map[string]string
	resp = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", health["status"])
}

func TestTenantListPagination(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	for _, name := range []string{"Anh", "Bình", "Chi"} {
		resp := doJSON(t, http.MethodPost, base+"/tenants", map[string]any{"name": name}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var page []map[string]any
	resp := doJSON(t, http.MethodGet, base+"/tenants?page_size=2", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page, 2)

	var rest []map[string]any
	resp = doJSON(t, http.MethodGet, base+"/tenants?page_size=2&offset=2", nil, &rest)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rest, 1)
	require.Equal(t, "Chi", rest[0]["name"])
}
