// Package main provides a CLI tool for seeding an agency with its product
// catalog, locations and opening stock.
package main

import (
	"context"
	"fmt"
	"os"

	"lpgstock/internal/config"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/infrastructure/storage/postgres"
	"lpgstock/internal/infrastructure/storage/postgres/catalog_repo"
	"lpgstock/internal/infrastructure/storage/postgres/journal_repo"
	"lpgstock/internal/infrastructure/storage/postgres/location_repo"
	"lpgstock/internal/infrastructure/storage/postgres/register_repo"
	"lpgstock/pkg/logger"
	"lpgstock/pkg/numerator"
)

// seedProduct is one demo catalog entry with its opening filled stock.
type seedProduct struct {
	Code     string
	Name     string
	Category entity.ProductCategory
	Purchase string
	Sale     string
	Opening  int64
	Field    entity.StockField
}

var demoProducts = []seedProduct{
	{Code: "DOM-14.2", Name: "14.2kg Domestic", Category: entity.CategoryCylinder, Purchase: "780", Sale: "905", Opening: 200, Field: entity.FieldFilled},
	{Code: "COM-19", Name: "19kg Commercial", Category: entity.CategoryCylinder, Purchase: "1650", Sale: "1810", Opening: 60, Field: entity.FieldFilled},
	{Code: "FTL-5", Name: "5kg FTL", Category: entity.CategoryCylinder, Purchase: "340", Sale: "395", Opening: 40, Field: entity.FieldFilled},
	{Code: "PR-STD", Name: "Pressure Regulator", Category: entity.CategoryPR, Purchase: "150", Sale: "190", Opening: 50, Field: entity.FieldSound},
	{Code: "NFR-HOSE", Name: "Suraksha Hose", Category: entity.CategoryNFR, Purchase: "120", Sale: "160", Opening: 80, Field: entity.FieldQuantity},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	agencyID := id.New()
	if raw := os.Getenv("SEED_AGENCY_ID"); raw != "" {
		if agencyID, err = id.Parse(raw); err != nil {
			log.Fatalw("invalid SEED_AGENCY_ID", "error", err)
		}
	}
	userID := id.Derive(agencyID, "seed-user")

	ctx := logger.WithLogger(context.Background(), log.With("agency_id", agencyID))

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txm := postgres.NewTxManager(pool)

	if err := postgres.Migrate(ctx, txm); err != nil {
		log.Fatalw("failed to migrate database", "error", err)
	}
	log.Info("connected to database")

	locationRepo := location_repo.New(txm)
	catalogRepo := catalog_repo.NewAgencyProductRepo(txm)
	engine := movement.NewEngine(
		txm, locationRepo, register_repo.NewLedgerRepo(txm), journal_repo.New(txm), catalogRepo,
		numerator.NewWithSource(func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) }),
		movement.WithSequenceReset(cfg.SequenceReset),
	)
	locations := location.NewService(locationRepo, txm)

	godown, err := seedLocations(ctx, locations, agencyID)
	if err != nil {
		log.Fatalw("failed to seed locations", "error", err)
	}
	products, err := seedCatalog(ctx, txm, catalogRepo, agencyID)
	if err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	if os.Getenv("SEED_OPENING_STOCK") != "false" {
		if err := seedOpeningStock(ctx, engine, agencyID, userID, godown.ID, products); err != nil {
			log.Fatalw("failed to seed opening stock", "error", err)
		}
	}

	log.Infow("seeding completed successfully", "agency_id", agencyID, "godown_id", godown.ID)
}

// seedLocations ensures the default godown and a showroom exist.
func seedLocations(ctx context.Context, locations *location.Service, agencyID id.ID) (*location.Location, error) {
	godown, err := locations.DefaultGodown(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("default godown: %w", err)
	}

	showroom := location.KindShowroom
	existing, err := locations.List(ctx, location.ListFilter{AgencyID: agencyID, Kind: &showroom})
	if err != nil {
		return nil, fmt.Errorf("list showrooms: %w", err)
	}
	if existing.TotalCount == 0 {
		if _, err := locations.Create(ctx, location.CreateInput{
			AgencyID: agencyID,
			Kind:     location.KindShowroom,
			Name:     "Main Showroom",
		}); err != nil {
			return nil, fmt.Errorf("create showroom: %w", err)
		}
		logger.Info(ctx, "showroom created")
	}
	return godown, nil
}

// seedCatalog upserts the demo products in one transaction.
func seedCatalog(ctx context.Context, txm *postgres.TxManager, repo *catalog_repo.AgencyProductRepo, agencyID id.ID) ([]catalog.AgencyProduct, error) {
	products := make([]catalog.AgencyProduct, 0, len(demoProducts))
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, sp := range demoProducts {
			p := catalog.AgencyProduct{
				ID:            id.Derive(agencyID, sp.Code),
				AgencyID:      agencyID,
				Name:          sp.Name,
				Code:          sp.Code,
				Category:      sp.Category,
				PurchasePrice: types.MustMoney(sp.Purchase),
				SalePrice:     types.MustMoney(sp.Sale),
				IsActive:      true,
			}
			if err := repo.Upsert(ctx, p); err != nil {
				return fmt.Errorf("upsert %s: %w", sp.Code, err)
			}
			products = append(products, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "catalog seeded", "products", len(products))
	return products, nil
}

// seedOpeningStock books one PURCHASE into the godown carrying every
// product's opening balance.
func seedOpeningStock(ctx context.Context, engine *movement.Engine, agencyID, userID, godownID id.ID, products []catalog.AgencyProduct) error {
	lines := make([]movement.LineInput, 0, len(products))
	for i, p := range products {
		sp := demoProducts[i]
		lines = append(lines, movement.LineInput{
			ProductID:  p.ID,
			StockField: sp.Field,
			Quantity:   sp.Opening,
			UnitPrice:  p.PurchasePrice,
		})
	}
	remarks := "opening stock"
	res, err := engine.Execute(ctx, movement.Params{
		AgencyID:              agencyID,
		DestinationLocationID: id.Ptr(godownID),
		Type:                  journal.TypePurchase,
		Lines:                 lines,
		CreatedBy:             userID,
		Meta:                  movement.Meta{Remarks: &remarks},
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "opening stock booked",
		"reference", res.Transaction.ReferenceNumber,
		"lines", len(lines),
		"total_quantity", res.Transaction.TotalQuantity,
	)
	return nil
}
