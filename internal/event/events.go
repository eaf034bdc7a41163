// Package event provides domain event recording for billing commands.
// Events are appended to the events audit table, then published to the
// in-process event bus for downstream consumers.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	EntityType string // "lease", "cycle", "invoice", "payment"
	EntityID   string
	Summary    string
	Payload    json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// LeaseStartedPayload carries event-specific data for lease_started.
type LeaseStartedPayload struct {
	LeaseID  string `json:"lease_id"`
	RoomID   string `json:"room_id"`
	TenantID string `json:"tenant_id,omitempty"`
	BaseRent int64  `json:"base_rent"`
}

func NewLeaseStarted(p LeaseStartedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "lease_started",
		OccurredAt: time.Now(),
		EntityType: "lease",
		EntityID:   p.LeaseID,
		Summary:    fmt.Sprintf("Lease started in room %s", p.RoomID),
		Payload:    mustJSON(p),
	}
}

// LeaseTerminatedPayload carries event-specific data for lease_terminated.
type LeaseTerminatedPayload struct {
	LeaseID string `json:"lease_id"`
	RoomID  string `json:"room_id"`
	EndDate string `json:"end_date"`
}

func NewLeaseTerminated(p LeaseTerminatedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "lease_terminated",
		OccurredAt: time.Now(),
		EntityType: "lease",
		EntityID:   p.LeaseID,
		Summary:    fmt.Sprintf("Lease terminated effective %s", p.EndDate),
		Payload:    mustJSON(p),
	}
}

// CycleSettledPayload carries event-specific data for cycle_settled.
type CycleSettledPayload struct {
	CycleID     string `json:"cycle_id"`
	LeaseID     string `json:"lease_id"`
	InvoiceID   string `json:"invoice_id"`
	PeriodStart string `json:"period_start"`
	Total       int64  `json:"total"`
}

func NewCycleSettled(p CycleSettledPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "cycle_settled",
		OccurredAt: time.Now(),
		EntityType: "cycle",
		EntityID:   p.CycleID,
		Summary:    fmt.Sprintf("Cycle %s settled into invoice %s", p.PeriodStart, p.InvoiceID),
		Payload:    mustJSON(p),
	}
}

// PaymentRecordedPayload carries event-specific data for payment_recorded.
type PaymentRecordedPayload struct {
	PaymentID string `json:"payment_id"`
	InvoiceID string `json:"invoice_id"`
	LeaseID   string `json:"lease_id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
}

func NewPaymentRecorded(p PaymentRecordedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "payment_recorded",
		OccurredAt: time.Now(),
		EntityType: "payment",
		EntityID:   p.PaymentID,
		Summary:    fmt.Sprintf("Payment of %d on invoice %s", p.Amount, p.InvoiceID),
		Payload:    mustJSON(p),
	}
}

// LeaseSettledPayload carries event-specific data for lease_settled.
type LeaseSettledPayload struct {
	LeaseID      string `json:"lease_id"`
	SettlementID string `json:"settlement_id"`
	Deposit      int64  `json:"deposit"`
	FinalBalance int64  `json:"final_balance"`
}

func NewLeaseSettled(p LeaseSettledPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "lease_settled",
		OccurredAt: time.Now(),
		EntityType: "lease",
		EntityID:   p.LeaseID,
		Summary:    fmt.Sprintf("Lease settled, final balance %d", p.FinalBalance),
		Payload:    mustJSON(p),
	}
}
