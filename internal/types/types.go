// Package types provides the domain model shared by the billing engine,
// the HTTP handlers, and the storage layer. All monetary amounts are
// integers in minor currency units (whole đồng for VND) to eliminate
// floating-point errors in financial operations.
package types

import (
	"encoding/json"
	"time"
)

// BillingCycle is the cadence at which a lease is invoiced.
type BillingCycle string

const (
	CycleDaily   BillingCycle = "daily"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// LeaseType distinguishes short stays from open-ended tenancies.
type LeaseType string

const (
	LeaseShortTerm LeaseType = "short_term"
	LeaseLongTerm  LeaseType = "long_term"
)

// LeaseStatus is the lifecycle state of a lease.
type LeaseStatus string

const (
	LeaseActive LeaseStatus = "active"
	LeaseEnded  LeaseStatus = "ended"
)

// RoomStatus tracks occupancy.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "available"
	RoomOccupied  RoomStatus = "occupied"
)

// PricingModel is how a charge type converts quantity into an amount.
type PricingModel string

const (
	PricingFlat    PricingModel = "flat"
	PricingPerUnit PricingModel = "per_unit"
	PricingTiered  PricingModel = "tiered"
)

// CycleStatus is the lifecycle state of a billing cycle. Settled is terminal.
type CycleStatus string

const (
	CycleOpen    CycleStatus = "open"
	CycleSettled CycleStatus = "settled"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
)

// Apartment is a building owning zero or more rooms. It can only be
// deleted while it owns no rooms.
type Apartment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room belongs to an apartment. Code is unique per apartment. A room can
// only be deleted while no lease references it.
type Room struct {
	ID          string     `json:"id"`
	ApartmentID string     `json:"apartment_id"`
	Code        string     `json:"code"`
	Floor       int        `json:"floor"`
	Area        float64    `json:"area"`
	Status      RoomStatus `json:"status"`
}

// Tenant is the person a lease is signed with. The invoice document
// renderer receives the tenant read-only.
type Tenant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"national_id,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ChargeType is a catalog entry: a price-list row scoped globally
// (ApartmentID empty) or to one apartment. IsVariable marks charges whose
// quantity comes from meter readings rather than being fixed per period.
type ChargeType struct {
	ID          string          `json:"id"`
	ApartmentID string          `json:"apartment_id,omitempty"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Pricing     PricingModel    `json:"pricing"`
	UnitPrice   int64           `json:"unit_price"`
	IsVariable  bool            `json:"is_variable"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// ChargeKind is the tagged variant resolved from a ChargeType at
// construction time, so downstream code never re-derives the variable
// flag from loosely-typed storage fields.
type ChargeKind struct {
	Fixed   *FixedCharge   `json:"fixed,omitempty"`
	Metered *MeteredCharge `json:"metered,omitempty"`
}

// FixedCharge has a constant amount per period.
type FixedCharge struct {
	UnitPrice int64 `json:"unit_price"`
}

// MeteredCharge is priced from per-period consumption.
type MeteredCharge struct {
	Unit      string       `json:"unit"`
	UnitPrice int64        `json:"unit_price"`
	Pricing   PricingModel `json:"pricing"`
}

// Kind resolves the tagged charge variant for this charge type,
// applying an optional per-lease unit price override.
func (ct ChargeType) Kind(priceOverride *int64) ChargeKind {
	price := ct.UnitPrice
	if priceOverride != nil {
		price = *priceOverride
	}
	if ct.IsVariable {
		return ChargeKind{Metered: &MeteredCharge{Unit: ct.Unit, UnitPrice: price, Pricing: ct.Pricing}}
	}
	return ChargeKind{Fixed: &FixedCharge{UnitPrice: price}}
}

// Lease binds a tenant to a room for a period. While active it flips its
// room to occupied. LateFeeOverride, when present, replaces the global
// late fee config wholesale — field-level merging is never performed.
type Lease struct {
	ID              string         `json:"id"`
	RoomID          string         `json:"room_id"`
	TenantID        string         `json:"tenant_id,omitempty"`
	LeaseType       LeaseType      `json:"lease_type"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	BillingCycle    BillingCycle   `json:"billing_cycle"`
	BaseRent        int64          `json:"base_rent"`
	DepositAmount   int64          `json:"deposit_amount"`
	Status          LeaseStatus    `json:"status"`
	LateFeeOverride *LateFeeConfig `json:"late_fee_override,omitempty"`
	DurationDays    *int           `json:"duration_days,omitempty"`
}

// RecurringCharge attaches one charge type to a lease, optionally
// overriding the catalog unit price.
type RecurringCharge struct {
	ID           string          `json:"id"`
	LeaseID      string          `json:"lease_id"`
	ChargeTypeID string          `json:"charge_type_id"`
	UnitPrice    *int64          `json:"unit_price,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
}

// MeterReading is one billing period's consumption for one metered
// charge. EndReading >= StartReading >= 0 is enforced at input time.
type MeterReading struct {
	ID           string    `json:"id"`
	LeaseID      string    `json:"lease_id"`
	ChargeTypeID string    `json:"charge_type_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	StartReading float64   `json:"start_reading"`
	EndReading   float64   `json:"end_reading"`
}

// Quantity is the billable consumption, clamped to zero. Negative deltas
// are a data error and never a valid billing quantity.
func (m MeterReading) Quantity() float64 {
	d := m.EndReading - m.StartReading
	if d < 0 {
		return 0
	}
	return d
}

// Cycle is one billing period of a lease. Exactly one cycle exists per
// lease per period start; settled is terminal and carries the invoice id.
type Cycle struct {
	ID          string      `json:"id"`
	LeaseID     string      `json:"lease_id"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	Status      CycleStatus `json:"status"`
	InvoiceID   *string     `json:"invoice_id,omitempty"`
}

// Invoice owns ordered invoice items. The items' amounts must sum to
// Subtotal, and Subtotal equals Total (no discount/tax modeling).
type Invoice struct {
	ID          string        `json:"id"`
	LeaseID     string        `json:"lease_id"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	IssueDate   time.Time     `json:"issue_date"`
	Subtotal    int64         `json:"subtotal"`
	Total       int64         `json:"total"`
	Status      InvoiceStatus `json:"status"`
	Items       []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem is one ordered line on an invoice. Meta carries display
// details such as meter start/end readings.
type InvoiceItem struct {
	ID           string          `json:"id"`
	InvoiceID    string          `json:"invoice_id"`
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitPrice    int64           `json:"unit_price"`
	Amount       int64           `json:"amount"`
	ChargeTypeID string          `json:"charge_type_id,omitempty"`
	Meta         json.RawMessage `json:"meta,omitempty"`
}

// Payment applies part or all of an invoice's total. Multiple payments
// may apply to one invoice; the unpaid balance is total minus their sum.
type Payment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoice_id"`
	PaymentDate time.Time `json:"payment_date"`
	Amount      int64     `json:"amount"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
}

// Adjustment is one named line of a lease-end settlement. Amounts may be
// signed when the caller supplies pre-signed adjustments.
type Adjustment struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Settlement is the terminal close of a lease: the deposit balanced
// against adjustments. FinalBalance sign convention: positive means a
// refund is owed to the tenant, negative means the tenant owes more.
type Settlement struct {
	ID               string       `json:"id"`
	LeaseID          string       `json:"lease_id"`
	Deposit          int64        `json:"deposit"`
	Adjustments      []Adjustment `json:"adjustments"`
	AdjustmentsTotal int64        `json:"adjustments_total"`
	FinalBalance     int64        `json:"final_balance"`
	SettledAt        time.Time    `json:"settled_at"`
}

// LateFeeMode selects flat-amount or percent-of-base penalties.
type LateFeeMode string

const (
	LateFeeFlat    LateFeeMode = "flat"
	LateFeePercent LateFeeMode = "percent"
)

// LateFeeRepeat selects one-shot or per-day accumulation.
type LateFeeRepeat string

const (
	RepeatNone  LateFeeRepeat = "none"
	RepeatDaily LateFeeRepeat = "daily"
)

// LateFeeConfig controls overdue penalties. It exists at two scopes:
// a global default in the settings store, and an optional per-lease
// override that replaces the global config wholesale.
type LateFeeConfig struct {
	Enabled    bool          `json:"enabled"`
	AfterDays  int           `json:"after_days"`
	Mode       LateFeeMode   `json:"mode"`
	FlatAmount int64         `json:"flat_amount"`
	Percent    float64       `json:"percent"`
	Repeat     LateFeeRepeat `json:"repeat"`
	Cap        *int64        `json:"cap,omitempty"`
}

// ExtraCost is an ad-hoc named cost supplied at settlement time.
type ExtraCost struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}
