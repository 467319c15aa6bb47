package dto

import (
	"fmt"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/location"
)

// CreateLocationRequest is the body of POST /locations.
type CreateLocationRequest struct {
	Kind    string  `json:"kind" binding:"required"`
	Name    string  `json:"name" binding:"required,max=120"`
	Code    *string `json:"code" binding:"omitempty,max=40"`
	Address *string `json:"address"`
	Contact *string `json:"contact"`
	Notes   *string `json:"notes"`
}

// ToInput converts the request for the caller's agency.
func (r CreateLocationRequest) ToInput(agencyID id.ID) location.CreateInput {
	return location.CreateInput{
		AgencyID: agencyID,
		Kind:     location.Kind(r.Kind),
		Name:     r.Name,
		Code:     r.Code,
		Address:  r.Address,
		Contact:  r.Contact,
		Notes:    r.Notes,
	}
}

// UpdateLocationRequest is the body of PUT /locations/:id. Kind and
// vehicleId are accepted only so the service can reject changes to them.
type UpdateLocationRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=120"`
	Code      *string `json:"code" binding:"omitempty,max=40"`
	Address   *string `json:"address"`
	Contact   *string `json:"contact"`
	Notes     *string `json:"notes"`
	IsActive  *bool   `json:"isActive"`
	Kind      *string `json:"kind"`
	VehicleID *id.ID  `json:"vehicleId"`
}

func (r UpdateLocationRequest) ToInput(agencyID, locationID id.ID) location.UpdateInput {
	in := location.UpdateInput{
		AgencyID:  agencyID,
		ID:        locationID,
		Name:      r.Name,
		Code:      r.Code,
		Address:   r.Address,
		Contact:   r.Contact,
		Notes:     r.Notes,
		IsActive:  r.IsActive,
		VehicleID: r.VehicleID,
	}
	if r.Kind != nil {
		k := location.Kind(*r.Kind)
		in.Kind = &k
	}
	return in
}

// LocationListQuery holds GET /locations filters.
type LocationListQuery struct {
	Kind       string `form:"kind"`
	ActiveOnly bool   `form:"activeOnly"`
	Search     string `form:"search" binding:"max=120"`
	PageQuery
}

func (q LocationListQuery) ToFilter(agencyID id.ID) (location.ListFilter, error) {
	f := location.ListFilter{
		AgencyID:   agencyID,
		ActiveOnly: q.ActiveOnly,
		Search:     q.Search,
		Page:       q.ToPage(),
	}
	if q.Kind != "" {
		k := location.Kind(q.Kind)
		if !k.IsValid() {
			return f, invalidValue("kind", q.Kind)
		}
		f.Kind = &k
	}
	return f, nil
}

// VehicleLocationRequest is the body of POST and PUT /vehicles/:vehicleId/location.
type VehicleLocationRequest struct {
	RegistrationNumber string `json:"registrationNumber" binding:"required,max=40"`
	VehicleName        string `json:"vehicleName" binding:"max=80"`
	IsActive           *bool  `json:"isActive"`
}

func (r VehicleLocationRequest) ToInput(agencyID, vehicleID id.ID) location.VehicleInput {
	return location.VehicleInput{
		AgencyID:           agencyID,
		VehicleID:          vehicleID,
		RegistrationNumber: r.RegistrationNumber,
		VehicleName:        r.VehicleName,
	}
}

func invalidValue(field, value string) error {
	return apperror.NewValidation(fmt.Sprintf("invalid %s", field)).
		WithDetail("field", field).
		WithDetail("value", value)
}
