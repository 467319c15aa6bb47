// Package location provides the stock location registry: godowns, vehicles,
// showrooms and supplier placeholders where an agency's stock can reside.
package location

import (
	"strings"
	"time"
	"unicode/utf8"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
)

// Kind classifies a location.
type Kind string

const (
	KindGodown   Kind = "GODOWN"
	KindVehicle  Kind = "VEHICLE"
	KindShowroom Kind = "SHOWROOM"
	KindSupplier Kind = "SUPPLIER"
)

const maxNameLength = 120

// Default godown created on first use for agencies that have none.
const (
	DefaultGodownName = "Main Godown"
	DefaultGodownCode = "GDN-01"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindGodown, KindVehicle, KindShowroom, KindSupplier:
		return true
	}
	return false
}

// Location is a place stock can be held.
type Location struct {
	ID       id.ID `db:"id" json:"id"`
	AgencyID id.ID `db:"agency_id" json:"agencyId"`
	Kind     Kind  `db:"kind" json:"kind"`

	// Name is unique within the agency
	Name string  `db:"name" json:"name"`
	Code *string `db:"code" json:"code,omitempty"`

	// VehicleID is set for, and only for, VEHICLE locations
	VehicleID *id.ID `db:"vehicle_id" json:"vehicleId,omitempty"`

	Address *string `db:"address" json:"address,omitempty"`
	Contact *string `db:"contact" json:"contact,omitempty"`
	Notes   *string `db:"notes" json:"notes,omitempty"`

	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks structural rules.
func (l *Location) Validate() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return apperror.NewValidation("location name is required").WithDetail("field", "name")
	}
	if utf8.RuneCountInString(l.Name) > maxNameLength {
		return apperror.NewValidation("location name is too long").
			WithDetail("field", "name").
			WithDetail("max", maxNameLength)
	}
	if !l.Kind.IsValid() {
		return apperror.NewValidation("invalid location kind").
			WithDetail("field", "kind").
			WithDetail("value", string(l.Kind))
	}
	if (l.Kind == KindVehicle) != (l.VehicleID != nil) {
		return apperror.NewValidation("vehicle link must be set exactly for VEHICLE locations").
			WithDetail("field", "vehicleId")
	}
	return nil
}

// EnsureUsable rejects movements touching an inactive location.
func (l *Location) EnsureUsable() error {
	if !l.IsActive {
		return apperror.NewValidation("stock location is inactive").
			WithDetail("location_id", l.ID).
			WithDetail("name", l.Name)
	}
	return nil
}

// vehicleLocationName builds the display name of a vehicle location.
func vehicleLocationName(registration, vehicleName string) string {
	return strings.TrimSpace(strings.TrimSpace(registration) + " " + strings.TrimSpace(vehicleName))
}
