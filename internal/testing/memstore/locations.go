package memstore

import (
	"context"
	"sort"
	"strings"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
	"lpgstock/internal/domain/location"
)

// Locations returns the location repository.
func (s *Store) Locations() location.Repository {
	return locationRepo{s}
}

type locationRepo struct{ s *Store }

func (r locationRepo) Create(_ context.Context, loc *location.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(loc); err != nil {
		return err
	}
	r.s.data.locations[loc.ID] = *loc
	return nil
}

func (r locationRepo) Update(_ context.Context, loc *location.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.data.locations[loc.ID]
	if !ok || existing.AgencyID != loc.AgencyID {
		return apperror.NewNotFound("stock location", loc.ID)
	}
	if err := r.checkUnique(loc); err != nil {
		return err
	}
	r.s.data.locations[loc.ID] = *loc
	return nil
}

// checkUnique mirrors the (agency, name) and (agency, vehicle) unique indexes.
func (r locationRepo) checkUnique(loc *location.Location) error {
	for _, other := range r.s.data.locations {
		if other.ID == loc.ID || other.AgencyID != loc.AgencyID {
			continue
		}
		if other.Name == loc.Name {
			return apperror.NewDuplicate("stock location", "name", loc.Name)
		}
		if loc.VehicleID != nil && id.Equal(other.VehicleID, loc.VehicleID) {
			return apperror.NewDuplicate("stock location", "vehicle_id", loc.VehicleID.String())
		}
	}
	return nil
}

func (r locationRepo) GetByID(_ context.Context, agencyID, locationID id.ID) (*location.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loc, ok := r.s.data.locations[locationID]
	if !ok || loc.AgencyID != agencyID {
		return nil, apperror.NewNotFound("stock location", locationID)
	}
	return &loc, nil
}

func (r locationRepo) GetByVehicle(_ context.Context, agencyID, vehicleID id.ID) (*location.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, loc := range r.s.data.locations {
		if loc.AgencyID == agencyID && loc.VehicleID != nil && *loc.VehicleID == vehicleID {
			return &loc, nil
		}
	}
	return nil, apperror.NewNotFound("vehicle location", vehicleID)
}

func (r locationRepo) FindDefaultGodown(_ context.Context, agencyID id.ID) (*location.Location, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *location.Location
	for _, loc := range r.s.data.locations {
		if loc.AgencyID != agencyID || loc.Kind != location.KindGodown || !loc.IsActive {
			continue
		}
		if best == nil || loc.CreatedAt.Before(best.CreatedAt) {
			l := loc
			best = &l
		}
	}
	if best == nil {
		return nil, apperror.NewNotFound("default godown", agencyID)
	}
	return best, nil
}

func (r locationRepo) List(_ context.Context, filter location.ListFilter) (domain.ListResult[*location.Location], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*location.Location
	for _, loc := range r.s.data.locations {
		if loc.AgencyID != filter.AgencyID {
			continue
		}
		if filter.Kind != nil && loc.Kind != *filter.Kind {
			continue
		}
		if filter.ActiveOnly && !loc.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(loc.Name), search) {
			continue
		}
		l := loc
		matched = append(matched, &l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	page := filter.Page.Normalize()
	return domain.NewListResult(pageOf(matched, page), int64(len(matched)), page), nil
}

func pageOf[T any](items []T, p domain.Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
