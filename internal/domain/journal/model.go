// Package journal provides the stock transaction journal: one immutable
// record per movement, the audit trail behind every ledger change.
package journal

import (
	"strings"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
)

// Type describes the business intent of a movement.
type Type string

const (
	TypePurchase       Type = "PURCHASE"
	TypeVehicleIssue   Type = "VEHICLE_ISSUE"
	TypeVehicleReturn  Type = "VEHICLE_RETURN"
	TypeEmptyReturn    Type = "EMPTY_RETURN"
	TypeGodownTransfer Type = "GODOWN_TRANSFER"
	TypeShowroomIssue  Type = "SHOWROOM_ISSUE"
	TypeCustomerSale   Type = "CUSTOMER_SALE"
	TypeAdjustment     Type = "ADJUSTMENT"
)

// AllTypes lists every transaction type.
func AllTypes() []Type {
	return []Type{
		TypePurchase, TypeVehicleIssue, TypeVehicleReturn, TypeEmptyReturn,
		TypeGodownTransfer, TypeShowroomIssue, TypeCustomerSale, TypeAdjustment,
	}
}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Prefix is the first three letters of the type, used in reference numbers.
func (t Type) Prefix() string {
	s := strings.ToUpper(string(t))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

// Direction is the effect a transaction had on the agency-wide aggregate.
type Direction string

const (
	DirectionIn   Direction = "IN"
	DirectionOut  Direction = "OUT"
	DirectionNone Direction = "NONE"
)

// Sign maps a direction to +1, -1 or 0.
func (d Direction) Sign() int64 {
	switch d {
	case DirectionIn:
		return 1
	case DirectionOut:
		return -1
	}
	return 0
}

// Inverse returns the direction a compensating entry must carry.
func (d Direction) Inverse() Direction {
	switch d {
	case DirectionIn:
		return DirectionOut
	case DirectionOut:
		return DirectionIn
	}
	return DirectionNone
}

// DirectionOf is the aggregate effect of a movement with the given ends:
// no source brings stock into the agency, no destination takes it out.
func DirectionOf(hasSource, hasDestination bool) Direction {
	switch {
	case !hasSource && hasDestination:
		return DirectionIn
	case hasSource && !hasDestination:
		return DirectionOut
	}
	return DirectionNone
}

// Endpoint says whether one end of a movement must be set.
type Endpoint int

const (
	EndpointRequired Endpoint = iota
	EndpointForbidden
	EndpointOptional
)

// Endpoints is the location shape a transaction type accepts.
type Endpoints struct {
	Source      Endpoint
	Destination Endpoint
}

var typeEndpoints = map[Type]Endpoints{
	TypePurchase:       {Source: EndpointForbidden, Destination: EndpointRequired},
	TypeCustomerSale:   {Source: EndpointRequired, Destination: EndpointForbidden},
	TypeVehicleIssue:   {Source: EndpointRequired, Destination: EndpointRequired},
	TypeVehicleReturn:  {Source: EndpointRequired, Destination: EndpointRequired},
	TypeEmptyReturn:    {Source: EndpointRequired, Destination: EndpointRequired},
	TypeGodownTransfer: {Source: EndpointRequired, Destination: EndpointRequired},
	TypeShowroomIssue:  {Source: EndpointRequired, Destination: EndpointRequired},
	TypeAdjustment:     {Source: EndpointOptional, Destination: EndpointOptional},
}

// Endpoints returns the ends a movement of type t must have. Only
// PURCHASE and CUSTOMER_SALE cross the agency boundary; an ADJUSTMENT may
// do either, and its direction follows the ends it is given.
func (t Type) Endpoints() Endpoints {
	if e, ok := typeEndpoints[t]; ok {
		return e
	}
	return Endpoints{Source: EndpointOptional, Destination: EndpointOptional}
}

// Check validates which ends are set against the rule.
func (e Endpoints) Check(t Type, hasSource, hasDestination bool) error {
	if err := e.Source.check(t, "sourceLocationId", hasSource); err != nil {
		return err
	}
	return e.Destination.check(t, "destinationLocationId", hasDestination)
}

func (e Endpoint) check(t Type, field string, set bool) error {
	switch {
	case e == EndpointRequired && !set:
		return apperror.NewValidation(string(t)+" requires "+field).
			WithDetail("field", field).
			WithDetail("transactionType", string(t))
	case e == EndpointForbidden && set:
		return apperror.NewValidation(string(t)+" does not accept "+field).
			WithDetail("field", field).
			WithDetail("transactionType", string(t))
	}
	return nil
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Line is one product movement inside a transaction.
type Line struct {
	TransactionID id.ID             `db:"transaction_id" json:"-"`
	LineNo        int               `db:"line_no" json:"lineNo"`
	ProductID     id.ID             `db:"product_id" json:"productId"`
	ProductLabel  string            `db:"product_label" json:"productLabel"`
	StockField    entity.StockField `db:"stock_field" json:"stockField"`
	Quantity      int64             `db:"quantity" json:"quantity"`
	UnitPrice     types.Money       `db:"unit_price" json:"unitPrice"`
	TotalValue    types.Money       `db:"total_value" json:"totalValue"`

	// IsOverride marks a line allowed to drive the source balance negative
	IsOverride bool `db:"is_override" json:"isOverride"`
}

// Transaction is a journal entry.
type Transaction struct {
	ID       id.ID `db:"id" json:"id"`
	AgencyID id.ID `db:"agency_id" json:"agencyId"`

	// Nil source: stock entered the system. Nil destination: stock left it.
	SourceLocationID      *id.ID `db:"source_location_id" json:"sourceLocationId,omitempty"`
	DestinationLocationID *id.ID `db:"destination_location_id" json:"destinationLocationId,omitempty"`

	Type      Type      `db:"transaction_type" json:"transactionType"`
	Direction Direction `db:"direction" json:"direction"`

	// ParentTransactionID links returns to their issue and reversals to their original
	ParentTransactionID *id.ID `db:"parent_transaction_id" json:"parentTransactionId,omitempty"`

	ReferenceNumber string    `db:"reference_number" json:"referenceNumber"`
	TransactionDate time.Time `db:"transaction_date" json:"transactionDate"`

	DriverName   *string `db:"driver_name" json:"driverName,omitempty"`
	DriverPhone  *string `db:"driver_phone" json:"driverPhone,omitempty"`
	DriverUserID *id.ID  `db:"driver_user_id" json:"driverUserId,omitempty"`
	TripNumber   int     `db:"trip_number" json:"tripNumber"`
	Remarks      *string `db:"remarks" json:"remarks,omitempty"`

	Lines []Line `db:"-" json:"lines"`

	TotalQuantity int64       `db:"total_quantity" json:"totalQuantity"`
	TotalValue    types.Money `db:"total_value" json:"totalValue"`

	// Cash settlement, populated on VEHICLE_ISSUE entries once settled
	CashExpected types.Money     `db:"cash_expected" json:"cashExpected"`
	CashActual   types.NullMoney `db:"cash_actual" json:"cashActual"`
	CashShortage types.Money     `db:"cash_shortage" json:"cashShortage"`
	CashExcess   types.Money     `db:"cash_excess" json:"cashExcess"`
	SettledAt    *time.Time      `db:"settled_at" json:"settledAt,omitempty"`
	SettledBy    *id.ID          `db:"settled_by" json:"settledBy,omitempty"`

	Status      Status     `db:"status" json:"status"`
	CreatedBy   id.ID      `db:"created_by" json:"createdBy"`
	ConfirmedBy *id.ID     `db:"confirmed_by" json:"confirmedBy,omitempty"`
	CancelledBy *id.ID     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsSettled reports whether cash reconciliation was recorded.
func (t *Transaction) IsSettled() bool {
	return t.SettledAt != nil
}

// RecomputeTotals derives line totals and transaction totals.
func (t *Transaction) RecomputeTotals() {
	t.TotalQuantity = 0
	t.TotalValue = types.Zero()
	for i := range t.Lines {
		l := &t.Lines[i]
		l.TotalValue = types.LineTotal(l.UnitPrice, l.Quantity)
		t.TotalQuantity += l.Quantity
		t.TotalValue = t.TotalValue.Add(l.TotalValue)
	}
}

// EnsureSettleable checks the issue can accept a settlement.
func (t *Transaction) EnsureSettleable() error {
	if t.Type != TypeVehicleIssue {
		return apperror.NewValidation("only VEHICLE_ISSUE transactions can be settled").
			WithDetail("transaction_id", t.ID).
			WithDetail("transaction_type", string(t.Type))
	}
	if t.Status != StatusConfirmed {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only confirmed issues can be settled").
			WithDetail("transaction_id", t.ID).
			WithDetail("status", string(t.Status))
	}
	if t.IsSettled() {
		return apperror.NewBusinessRule(apperror.CodeAlreadySettled, "vehicle issue is already settled").
			WithDetail("transaction_id", t.ID).
			WithDetail("reference_number", t.ReferenceNumber).
			WithDetail("settled_at", t.SettledAt)
	}
	return nil
}

// EnsureReversible checks the entry can be cancelled by a compensating entry.
// parent is the entry t links to, or nil.
func (t *Transaction) EnsureReversible(children int, parent *Transaction) error {
	if t.Status == StatusCancelled {
		return apperror.NewBusinessRule(apperror.CodeAlreadyCancelled, "transaction is already cancelled").
			WithDetail("transaction_id", t.ID)
	}
	if t.Status != StatusConfirmed {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only confirmed transactions can be reversed").
			WithDetail("transaction_id", t.ID).
			WithDetail("status", string(t.Status))
	}
	if t.IsSettled() {
		return apperror.NewBusinessRule(apperror.CodeAlreadySettled, "a settled vehicle issue cannot be reversed").
			WithDetail("transaction_id", t.ID)
	}
	if t.Type == TypeAdjustment && t.ParentTransactionID != nil {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "a reversal cannot itself be reversed").
			WithDetail("transaction_id", t.ID)
	}
	if parent != nil && parent.Type == TypeVehicleIssue && parent.IsSettled() {
		return apperror.NewBusinessRule(apperror.CodeAlreadySettled, "a return of a settled vehicle issue cannot be reversed").
			WithDetail("transaction_id", t.ID).
			WithDetail("issue_id", parent.ID)
	}
	if children > 0 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "transaction has dependent transactions").
			WithDetail("transaction_id", t.ID).
			WithDetail("children", children)
	}
	return nil
}
