// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vuquang/nhatro/internal/billing"
	"github.com/vuquang/nhatro/internal/catalog"
	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/handler"
	"github.com/vuquang/nhatro/internal/housing"
	"github.com/vuquang/nhatro/internal/settings"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/tenancy"
)

// Config holds server configuration.
type Config struct {
	Port     int
	DB       *store.DB
	Recorder *event.StoreRecorder
}

// Router builds the chi router with all routes registered.
func Router(cfg Config) http.Handler {
	st := settings.NewRepository(cfg.DB)
	housingSvc := housing.NewService(cfg.DB)
	catalogSvc := catalog.NewService(cfg.DB)
	tenancySvc := tenancy.NewService(cfg.DB, cfg.Recorder)
	billingSvc := billing.NewService(cfg.DB, st, cfg.Recorder)

	hh := handler.NewHousingHandler(housingSvc)
	ch := handler.NewCatalogHandler(catalogSvc)
	th := handler.NewTenancyHandler(tenancySvc)
	bh := handler.NewBillingHandler(billingSvc, tenancySvc, housingSvc, st)
	eh := handler.NewEventsHandler(cfg.Recorder)

	r := chi.NewRouter()
	r.Use(handler.Recovery, handler.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		// Housing
		r.Post("/apartments", hh.CreateApartment)
		r.Get("/apartments", hh.ListApartments)
		r.Get("/apartments/{id}", hh.GetApartment)
		r.Put("/apartments/{id}", hh.UpdateApartment)
		r.Delete("/apartments/{id}", hh.DeleteApartment)
		r.Post("/apartments/{id}/rooms", hh.CreateRoom)
		r.Get("/rooms", hh.ListRooms)
		r.Get("/rooms/{id}", hh.GetRoom)
		r.Put("/rooms/{id}", hh.UpdateRoom)
		r.Delete("/rooms/{id}", hh.DeleteRoom)

		// Catalog
		r.Post("/charge-types", ch.Create)
		r.Get("/charge-types", ch.List)
		r.Get("/charge-types/{id}", ch.Get)
		r.Put("/charge-types/{id}", ch.Update)
		r.Delete("/charge-types/{id}", ch.Delete)

		// Tenancy
		r.Post("/tenants", th.CreateTenant)
		r.Get("/tenants", th.ListTenants)
		r.Get("/tenants/{id}", th.GetTenant)
		r.Post("/leases", th.StartLease)
		r.Get("/leases", th.ListLeases)
		r.Get("/leases/{id}", th.GetLease)
		r.Post("/leases/{id}/terminate", th.TerminateLease)
		r.Post("/leases/{id}/charges", th.AttachCharge)
		r.Get("/leases/{id}/charges", th.ListCharges)
		r.Delete("/recurring-charges/{chargeID}", th.DetachCharge)
		r.Post("/leases/{id}/readings", th.RecordReading)
		r.Get("/leases/{id}/readings", th.ListReadings)

		// Billing
		r.Post("/leases/{id}/cycles", bh.EnsureCycles)
		r.Get("/leases/{id}/cycles", bh.ListCycles)
		r.Get("/cycles/{id}", bh.GetCycle)
		r.Post("/cycles/{id}/settle", bh.SettleCycle)
		r.Get("/cycles/{id}/preview", bh.PreviewInvoice)
		r.Get("/invoices", bh.ListInvoices)
		r.Get("/invoices/{id}", bh.GetInvoice)
		r.Post("/invoices/{id}/send", bh.MarkInvoiceSent)
		r.Post("/invoices/{id}/payments", bh.RecordPayment)
		r.Get("/invoices/{id}/payments", bh.ListPayments)
		r.Get("/invoices/{id}/balance", bh.OutstandingBalance)
		r.Get("/invoices/{id}/qr", bh.InvoiceQR)
		r.Get("/invoices/{id}/document", bh.InvoiceDocument)
		r.Post("/leases/{id}/settlement", bh.CloseLease)
		r.Get("/leases/{id}/settlement", bh.GetSettlement)
		r.Get("/reports/overdue", bh.ListOverdue)

		// Settings
		r.Get("/settings/late-fee", bh.GetLateFeeConfig)
		r.Put("/settings/late-fee", bh.PutLateFeeConfig)
		r.Get("/settings/bank-account", bh.GetBankAccount)
		r.Put("/settings/bank-account", bh.PutBankAccount)

		// Audit trail
		r.Get("/events", eh.ListByEntity)
	})

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting server on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: Router(cfg),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
