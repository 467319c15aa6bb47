package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/tx"
	"lpgstock/internal/domain"
	"lpgstock/pkg/logger"
)

// Service provides business logic for the location registry.
type Service struct {
	repo Repository
	txm  tx.Manager
	now  func() time.Time
}

// NewService creates a new location service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{
		repo: repo,
		txm:  txm,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a user-created location.
type CreateInput struct {
	AgencyID id.ID
	Kind     Kind
	Name     string
	Code     *string
	Address  *string
	Contact  *string
	Notes    *string
}

// Create registers a godown, showroom or supplier location.
// VEHICLE locations only come from RegisterVehicle.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Location, error) {
	if in.Kind == KindVehicle {
		return nil, apperror.NewValidation("vehicle locations are created by vehicle registration").
			WithDetail("field", "kind")
	}

	now := s.now()
	loc := &Location{
		ID:        id.New(),
		AgencyID:  in.AgencyID,
		Kind:      in.Kind,
		Name:      in.Name,
		Code:      trimmed(in.Code),
		Address:   trimmed(in.Address),
		Contact:   trimmed(in.Contact),
		Notes:     trimmed(in.Notes),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock location created", "location_id", loc.ID, "kind", loc.Kind, "name", loc.Name)
	return loc, nil
}

// UpdateInput carries optional changes. Kind and VehicleID are accepted only
// to reject attempts to change them.
type UpdateInput struct {
	AgencyID  id.ID
	ID        id.ID
	Name      *string
	Code      *string
	Address   *string
	Contact   *string
	Notes     *string
	IsActive  *bool
	Kind      *Kind
	VehicleID *id.ID
}

// Update modifies a location's mutable attributes.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Location, error) {
	var loc *Location
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		loc, err = s.repo.GetByID(ctx, in.AgencyID, in.ID)
		if err != nil {
			return err
		}

		if in.Kind != nil && *in.Kind != loc.Kind {
			return apperror.NewValidation("location kind cannot be changed").WithDetail("field", "kind")
		}
		if in.VehicleID != nil && !id.Equal(in.VehicleID, loc.VehicleID) {
			return apperror.NewValidation("vehicle link cannot be changed").WithDetail("field", "vehicleId")
		}

		if in.Name != nil {
			loc.Name = *in.Name
		}
		if in.Code != nil {
			loc.Code = trimmed(in.Code)
		}
		if in.Address != nil {
			loc.Address = trimmed(in.Address)
		}
		if in.Contact != nil {
			loc.Contact = trimmed(in.Contact)
		}
		if in.Notes != nil {
			loc.Notes = trimmed(in.Notes)
		}
		if in.IsActive != nil {
			loc.IsActive = *in.IsActive
		}
		if err := loc.Validate(); err != nil {
			return err
		}

		loc.UpdatedAt = s.now()
		return s.repo.Update(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// Deactivate soft-deletes a location. Ledger rows keep referencing it.
func (s *Service) Deactivate(ctx context.Context, agencyID, locationID id.ID) error {
	inactive := false
	_, err := s.Update(ctx, UpdateInput{AgencyID: agencyID, ID: locationID, IsActive: &inactive})
	return err
}

// Get returns one location of the agency.
func (s *Service) Get(ctx context.Context, agencyID, locationID id.ID) (*Location, error) {
	return s.repo.GetByID(ctx, agencyID, locationID)
}

// List returns a page of locations.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Location], error) {
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}

// VehicleInput identifies a vehicle managed by the fleet collaborator.
type VehicleInput struct {
	AgencyID           id.ID
	VehicleID          id.ID
	RegistrationNumber string
	VehicleName        string
}

// RegisterVehicle creates the VEHICLE location for a newly registered vehicle.
// Calling it again for the same vehicle returns the existing location.
func (s *Service) RegisterVehicle(ctx context.Context, in VehicleInput) (*Location, error) {
	if strings.TrimSpace(in.RegistrationNumber) == "" {
		return nil, apperror.NewValidation("registration number is required").WithDetail("field", "registrationNumber")
	}

	var loc *Location
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByVehicle(ctx, in.AgencyID, in.VehicleID)
		if err == nil {
			loc = existing
			return nil
		}
		if !apperror.IsNotFound(err) {
			return err
		}

		now := s.now()
		reg := strings.TrimSpace(in.RegistrationNumber)
		loc = &Location{
			ID:        id.New(),
			AgencyID:  in.AgencyID,
			Kind:      KindVehicle,
			Name:      vehicleLocationName(reg, in.VehicleName),
			Code:      &reg,
			VehicleID: id.Ptr(in.VehicleID),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := loc.Validate(); err != nil {
			return err
		}
		return s.repo.Create(ctx, loc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "vehicle location ready", "vehicle_id", in.VehicleID, "location_id", loc.ID, "name", loc.Name)
	return loc, nil
}

// SyncVehicle renames the vehicle's location after the vehicle was edited.
func (s *Service) SyncVehicle(ctx context.Context, in VehicleInput) (*Location, error) {
	var loc *Location
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		loc, err = s.repo.GetByVehicle(ctx, in.AgencyID, in.VehicleID)
		if err != nil {
			return err
		}

		name := vehicleLocationName(in.RegistrationNumber, in.VehicleName)
		reg := strings.TrimSpace(in.RegistrationNumber)
		if name == loc.Name && loc.Code != nil && *loc.Code == reg {
			return nil
		}
		loc.Name = name
		if reg != "" {
			loc.Code = &reg
		}
		if err := loc.Validate(); err != nil {
			return err
		}
		loc.UpdatedAt = s.now()
		return s.repo.Update(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// SetVehicleActive mirrors the vehicle's active flag onto its location.
func (s *Service) SetVehicleActive(ctx context.Context, agencyID, vehicleID id.ID, active bool) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		loc, err := s.repo.GetByVehicle(ctx, agencyID, vehicleID)
		if err != nil {
			return err
		}
		if loc.IsActive == active {
			return nil
		}
		loc.IsActive = active
		loc.UpdatedAt = s.now()
		return s.repo.Update(ctx, loc)
	})
}

// ForVehicle resolves the location assigned to a vehicle.
func (s *Service) ForVehicle(ctx context.Context, agencyID, vehicleID id.ID) (*Location, error) {
	return s.repo.GetByVehicle(ctx, agencyID, vehicleID)
}

// DefaultGodown returns the agency's oldest active godown, creating
// "Main Godown" when the agency has none yet.
func (s *Service) DefaultGodown(ctx context.Context, agencyID id.ID) (*Location, error) {
	loc, err := s.repo.FindDefaultGodown(ctx, agencyID)
	if err == nil {
		return loc, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	code := DefaultGodownCode
	loc, err = s.Create(ctx, CreateInput{
		AgencyID: agencyID,
		Kind:     KindGodown,
		Name:     DefaultGodownName,
		Code:     &code,
	})
	if apperror.IsConflict(err) {
		// A concurrent caller created it first.
		return s.repo.FindDefaultGodown(ctx, agencyID)
	}
	if err != nil {
		return nil, fmt.Errorf("create default godown: %w", err)
	}
	return loc, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
