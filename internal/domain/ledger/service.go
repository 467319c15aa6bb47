package ledger

import (
	"context"
	"sort"
	"time"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/location"
)

// Service answers balance questions with product and location detail.
// It never mutates balances; that is the movement engine's job.
type Service struct {
	repo      Repository
	locations location.Repository
	catalog   catalog.Catalog
}

// NewService creates a ledger read service.
func NewService(repo Repository, locations location.Repository, cat catalog.Catalog) *Service {
	return &Service{repo: repo, locations: locations, catalog: cat}
}

// FieldValue is one meaningful counter of a row.
type FieldValue struct {
	Field    entity.StockField `json:"field"`
	Quantity int64             `json:"quantity"`
}

// ProductBalance is one ledger row enriched with product detail.
type ProductBalance struct {
	ProductID      id.ID                  `json:"productId"`
	ProductName    string                 `json:"productName"`
	ProductCode    string                 `json:"productCode"`
	Category       entity.ProductCategory `json:"category"`
	LocationID     id.ID                  `json:"locationId"`
	LocationName   string                 `json:"locationName,omitempty"`
	Fields         []FieldValue           `json:"fields"`
	LastMovementAt *time.Time             `json:"lastMovementAt,omitempty"`
}

// LocationStock is the stock held at one location.
type LocationStock struct {
	Location *location.Location `json:"location"`
	Items    []ProductBalance   `json:"items"`
}

// LocationBalance returns every ledger row of one location with product detail.
func (s *Service) LocationBalance(ctx context.Context, agencyID, locationID id.ID) (*LocationStock, error) {
	loc, err := s.locations.GetByID(ctx, agencyID, locationID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByLocation(ctx, agencyID, locationID, BalanceFilter{})
	if err != nil {
		return nil, err
	}

	products, err := s.productIndex(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	items := make([]ProductBalance, 0, len(rows))
	for _, row := range rows {
		items = append(items, enrich(row, products[row.ProductID], loc.Name))
	}
	sortBalances(items)

	return &LocationStock{Location: loc, Items: items}, nil
}

// NegativeBalances lists overdrawn rows of an agency for alerting.
func (s *Service) NegativeBalances(ctx context.Context, agencyID id.ID) ([]ProductBalance, error) {
	rows, err := s.repo.ListNegative(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ProductBalance{}, nil
	}

	products, err := s.productIndex(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	names := make(map[id.ID]string)
	out := make([]ProductBalance, 0, len(rows))
	for _, row := range rows {
		name, ok := names[row.LocationID]
		if !ok {
			if loc, err := s.locations.GetByID(ctx, agencyID, row.LocationID); err == nil {
				name = loc.Name
			}
			names[row.LocationID] = name
		}

		pb := enrich(row, products[row.ProductID], name)
		negatives := pb.Fields[:0]
		for _, fv := range pb.Fields {
			if fv.Quantity < 0 {
				negatives = append(negatives, fv)
			}
		}
		pb.Fields = negatives
		out = append(out, pb)
	}
	sortBalances(out)
	return out, nil
}

func (s *Service) productIndex(ctx context.Context, agencyID id.ID) (map[id.ID]catalog.AgencyProduct, error) {
	products, err := s.catalog.ListActiveProducts(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	index := make(map[id.ID]catalog.AgencyProduct, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index, nil
}

// enrich shapes a row for display. A product missing from the active catalog
// keeps every non-zero counter so its stock stays visible.
func enrich(row Balance, product catalog.AgencyProduct, locationName string) ProductBalance {
	pb := ProductBalance{
		ProductID:      row.ProductID,
		ProductName:    product.Name,
		ProductCode:    product.Code,
		Category:       product.Category,
		LocationID:     row.LocationID,
		LocationName:   locationName,
		LastMovementAt: row.LastMovementAt,
	}

	if product.Category.IsValid() {
		for _, f := range product.Category.Fields() {
			pb.Fields = append(pb.Fields, FieldValue{Field: f, Quantity: row.Get(f)})
		}
		return pb
	}

	for _, f := range entity.AllStockFields() {
		if v := row.Get(f); v != 0 {
			pb.Fields = append(pb.Fields, FieldValue{Field: f, Quantity: v})
		}
	}
	return pb
}

func sortBalances(items []ProductBalance) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Category.SortRank() != b.Category.SortRank() {
			return a.Category.SortRank() < b.Category.SortRank()
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.LocationName < b.LocationName
	})
}
