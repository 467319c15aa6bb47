package stockreport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/internal/testing/memstore"
)

type fixture struct {
	store    *memstore.Store
	engine   *movement.Engine
	agency   id.ID
	user     id.ID
	godown   *location.Location
	vehicle  *location.Location
	cylinder catalog.AgencyProduct
	pr       catalog.AgencyProduct
	stove    catalog.AgencyProduct
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	f := &fixture{store: store, agency: id.New(), user: id.New()}
	f.engine = movement.NewEngine(store.TxManager(), store.Locations(), store.Ledger(), store.Journal(), store.Catalog(), store.Numerator())

	locations := location.NewService(store.Locations(), store.TxManager())
	var err error
	f.godown, err = locations.DefaultGodown(ctx, f.agency)
	require.NoError(t, err)
	f.vehicle, err = locations.RegisterVehicle(ctx, location.VehicleInput{AgencyID: f.agency, VehicleID: id.New(), RegistrationNumber: "MH12XY9876"})
	require.NoError(t, err)

	f.cylinder = catalog.AgencyProduct{ID: id.New(), AgencyID: f.agency, Name: "19kg Commercial", Category: entity.CategoryCylinder, IsActive: true}
	f.pr = catalog.AgencyProduct{ID: id.New(), AgencyID: f.agency, Name: "Regulator", Category: entity.CategoryPR, IsActive: true}
	f.stove = catalog.AgencyProduct{ID: id.New(), AgencyID: f.agency, Name: "Hot Plate", Category: entity.CategoryNFR, IsActive: true}
	for _, p := range []catalog.AgencyProduct{f.cylinder, f.pr, f.stove} {
		store.PutProduct(p)
	}
	return f
}

func (f *fixture) move(t *testing.T, typ journal.Type, from, to *location.Location, lines ...movement.LineInput) *movement.Result {
	t.Helper()
	p := movement.Params{AgencyID: f.agency, Type: typ, Lines: lines, CreatedBy: f.user, AllowOverdraft: true}
	if from != nil {
		p.SourceLocationID = id.Ptr(from.ID)
	}
	if to != nil {
		p.DestinationLocationID = id.Ptr(to.ID)
	}
	res, err := f.engine.Execute(context.Background(), p)
	require.NoError(t, err)
	return res
}

func line(p catalog.AgencyProduct, field entity.StockField, qty int64) movement.LineInput {
	return movement.LineInput{ProductID: p.ID, StockField: field, Quantity: qty}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.move(t, journal.TypePurchase, nil, f.godown,
		line(f.cylinder, entity.FieldFilled, 40),
		line(f.cylinder, entity.FieldDefective, 2),
		line(f.pr, entity.FieldSound, 10),
		line(f.stove, entity.FieldQuantity, 3),
	)
	f.move(t, journal.TypeVehicleIssue, f.godown, f.vehicle, line(f.cylinder, entity.FieldFilled, 15))
	f.move(t, journal.TypeCustomerSale, f.vehicle, nil, line(f.cylinder, entity.FieldFilled, 12))
	f.move(t, journal.TypeEmptyReturn, f.vehicle, f.godown, line(f.cylinder, entity.FieldEmpty, 12))
	sold := f.move(t, journal.TypeCustomerSale, f.godown, nil, line(f.pr, entity.FieldSound, 4))

	_, err := f.engine.Reverse(context.Background(), movement.ReverseParams{
		AgencyID: f.agency, TransactionID: sold.Transaction.ID, CancelledBy: f.user,
	})
	require.NoError(t, err)
}

func (f *fixture) service(cache stockreport.Cache) *stockreport.Service {
	return stockreport.NewService(f.store.Catalog(), f.store.Ledger(), f.store.Journal(), f.store.Locations(), cache)
}

func quantities(rows []stockreport.Row) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ProductName+"/"+string(r.StockField)] = r.Quantity
	}
	return out
}

func TestCalculateLiveStock_ShapeAndOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rows, err := f.service(nil).CalculateLiveStock(context.Background(), f.agency)
	require.NoError(t, err)

	require.Len(t, rows, 6)
	var got []string
	for _, r := range rows {
		got = append(got, r.ProductName+":"+string(r.Condition))
	}
	assert.Equal(t, []string{
		"19kg Commercial:DEFECTIVE",
		"19kg Commercial:EMPTY",
		"19kg Commercial:FILLED",
		"Regulator:DEFECTIVE",
		"Regulator:SOUND",
		"Hot Plate:IN_STOCK",
	}, got)

	q := quantities(rows)
	assert.Equal(t, int64(28), q["19kg Commercial/filled"])
	assert.Equal(t, int64(0), q["19kg Commercial/empty"], "empties moved internally")
	assert.Equal(t, int64(10), q["Regulator/sound"], "reversed sale restores the aggregate")
	assert.Equal(t, int64(3), q["Hot Plate/quantity"])
}

func TestCalculateLiveStock_IdempotentRead(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	svc := f.service(nil)

	first, err := svc.CalculateLiveStock(context.Background(), f.agency)
	require.NoError(t, err)
	second, err := svc.CalculateLiveStock(context.Background(), f.agency)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestViewsAgree(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	svc := f.service(nil)
	ctx := context.Background()

	live, err := svc.CalculateLiveStock(ctx, f.agency)
	require.NoError(t, err)
	replay, err := svc.ReplayJournal(ctx, f.agency)
	require.NoError(t, err)
	ledgerRows, err := svc.LedgerStock(ctx, f.agency)
	require.NoError(t, err)

	assert.Equal(t, live, replay)
	assert.Equal(t, live, ledgerRows)

	mismatches, err := svc.Reconcile(ctx, f.agency)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	// Touch the snapshot behind the engine's back.
	require.NoError(t, f.store.Catalog().ApplyAggregateDelta(ctx, f.agency, f.stove.ID, entity.FieldQuantity, 2))

	mismatches, err := f.service(nil).Reconcile(ctx, f.agency)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	m := mismatches[0]
	assert.Equal(t, f.stove.ID, m.ProductID)
	assert.Equal(t, stockreport.ConditionInStock, m.Condition)
	assert.Equal(t, int64(5), m.Snapshot)
	assert.Equal(t, int64(3), m.Ledger)
	assert.Equal(t, int64(3), m.Replay)
	assert.Equal(t, int64(-2), m.Diff)
}

func TestLocationBreakdown(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rows, err := f.service(nil).LocationBreakdown(context.Background(), f.agency)
	require.NoError(t, err)

	byKey := make(map[string]int64)
	for _, r := range rows {
		byKey[r.LocationName+"/"+r.ProductName+"/"+string(r.StockField)] = r.Quantity
	}
	assert.Equal(t, int64(25), byKey["Main Godown/19kg Commercial/filled"])
	assert.Equal(t, int64(12), byKey["Main Godown/19kg Commercial/empty"])
	assert.Equal(t, int64(3), byKey["MH12XY9876/19kg Commercial/filled"])
	assert.Equal(t, int64(-12), byKey["MH12XY9876/19kg Commercial/empty"])
	assert.Equal(t, int64(10), byKey["Main Godown/Regulator/sound"])
}

type fakeCache struct {
	rows    map[id.ID][]stockreport.Row
	loads   int
	stores  int
	loadErr error
}

func (c *fakeCache) Load(_ context.Context, agencyID id.ID) ([]stockreport.Row, bool, error) {
	c.loads++
	if c.loadErr != nil {
		return nil, false, c.loadErr
	}
	rows, ok := c.rows[agencyID]
	return rows, ok, nil
}

func (c *fakeCache) Store(_ context.Context, agencyID id.ID, rows []stockreport.Row) error {
	c.stores++
	c.rows[agencyID] = rows
	return nil
}

func TestCalculateLiveStock_ReadThroughCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	cache := &fakeCache{rows: make(map[id.ID][]stockreport.Row)}
	svc := f.service(cache)
	ctx := context.Background()

	first, err := svc.CalculateLiveStock(ctx, f.agency)
	require.NoError(t, err)
	second, err := svc.CalculateLiveStock(ctx, f.agency)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.loads)
	assert.Equal(t, 1, cache.stores)

	cache.loadErr = errors.New("redis down")
	third, err := svc.CalculateLiveStock(ctx, f.agency)
	require.NoError(t, err, "cache failures fall back to storage")
	assert.Equal(t, first, third)
}

func TestConditionOf(t *testing.T) {
	tests := map[entity.StockField]stockreport.Condition{
		entity.FieldFilled:      stockreport.ConditionFilled,
		entity.FieldEmpty:       stockreport.ConditionEmpty,
		entity.FieldDefective:   stockreport.ConditionDefective,
		entity.FieldSound:       stockreport.ConditionSound,
		entity.FieldDefectivePR: stockreport.ConditionDefective,
		entity.FieldQuantity:    stockreport.ConditionInStock,
	}
	for field, want := range tests {
		assert.Equal(t, want, stockreport.ConditionOf(field), field)
	}
}
