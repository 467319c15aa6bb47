package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/settlement"
	"lpgstock/internal/testing/memstore"
	"lpgstock/pkg/logger"
)

type fixture struct {
	store     *memstore.Store
	engine    *movement.Engine
	svc       *settlement.Service
	agency    id.ID
	user      id.ID
	vehicleID id.ID
	godown    *location.Location
	showroom  *location.Location
	vehicle   *location.Location
	product   catalog.AgencyProduct
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	f := &fixture{store: store, agency: id.New(), user: id.New(), vehicleID: id.New()}
	f.engine = movement.NewEngine(
		store.TxManager(), store.Locations(), store.Ledger(), store.Journal(),
		store.Catalog(), store.Numerator(),
	)
	f.svc = settlement.NewService(store.TxManager(), f.engine, store.Locations(), store.Journal(), store.Audit())

	locations := location.NewService(store.Locations(), store.TxManager())
	var err error
	f.godown, err = locations.DefaultGodown(ctx, f.agency)
	require.NoError(t, err)
	f.showroom, err = locations.Create(ctx, location.CreateInput{AgencyID: f.agency, Kind: location.KindShowroom, Name: "Showroom"})
	require.NoError(t, err)
	f.vehicle, err = locations.RegisterVehicle(ctx, location.VehicleInput{
		AgencyID: f.agency, VehicleID: f.vehicleID, RegistrationNumber: "KA01AB1234", VehicleName: "Tata Ace",
	})
	require.NoError(t, err)

	f.product = catalog.AgencyProduct{
		ID: id.New(), AgencyID: f.agency, Name: "14.2kg Domestic", Category: entity.CategoryCylinder, IsActive: true,
	}
	store.PutProduct(f.product)

	_, err = f.engine.Execute(ctx, movement.Params{
		AgencyID:              f.agency,
		DestinationLocationID: id.Ptr(f.godown.ID),
		Type:                  journal.TypePurchase,
		Lines:                 []movement.LineInput{{ProductID: f.product.ID, StockField: entity.FieldFilled, Quantity: 100}},
		CreatedBy:             f.user,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) issue(t *testing.T, qty int64) *journal.Transaction {
	t.Helper()
	driver := "Ramesh"
	res, err := f.svc.Issue(context.Background(), settlement.IssueInput{
		AgencyID:  f.agency,
		GodownID:  f.godown.ID,
		VehicleID: f.vehicleID,
		Lines: []movement.LineInput{{
			ProductID: f.product.ID, StockField: entity.FieldFilled, Quantity: qty, UnitPrice: types.MustMoney("50"),
		}},
		CreatedBy: f.user,
		Meta:      movement.Meta{DriverName: &driver, TripNumber: 2},
	})
	require.NoError(t, err)
	return res.Transaction
}

func (f *fixture) stock(loc *location.Location) entity.Counters {
	return f.store.Balance(f.agency, f.product.ID, loc.ID)
}

func TestIssue_MovesStockToVehicle(t *testing.T) {
	f := newFixture(t)

	tx := f.issue(t, 20)

	assert.Equal(t, journal.TypeVehicleIssue, tx.Type)
	assert.Equal(t, int64(80), f.stock(f.godown).Filled)
	assert.Equal(t, int64(20), f.stock(f.vehicle).Filled)
	assert.Equal(t, f.vehicle.ID, *tx.DestinationLocationID)
}

func TestIssue_Rejections(t *testing.T) {
	f := newFixture(t)
	lines := []movement.LineInput{{ProductID: f.product.ID, StockField: entity.FieldFilled, Quantity: 1}}

	_, err := f.svc.Issue(context.Background(), settlement.IssueInput{
		AgencyID: f.agency, GodownID: f.godown.ID, VehicleID: id.New(), Lines: lines, CreatedBy: f.user,
	})
	assert.True(t, apperror.IsNotFound(err), "unregistered vehicle")

	_, err = f.svc.Issue(context.Background(), settlement.IssueInput{
		AgencyID: f.agency, GodownID: f.showroom.ID, VehicleID: f.vehicleID, Lines: lines, CreatedBy: f.user,
	})
	assert.True(t, apperror.IsValidation(err), "source must be a godown")
}

func TestSettle_ReturnsAndCash(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)

	out, err := f.svc.Settle(context.Background(), settlement.SettleInput{
		AgencyID:   f.agency,
		IssueID:    issue.ID,
		Returns:    []settlement.Return{{ProductID: f.product.ID, FilledReturned: 5, EmptyReturned: 15}},
		CashActual: types.MustMoney("700"),
		SettledBy:  f.user,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(85), f.stock(f.godown).Filled)
	assert.Equal(t, int64(15), f.stock(f.godown).Empty)
	assert.Equal(t, int64(15), f.stock(f.vehicle).Filled)

	assert.True(t, types.MustMoney("750").Equal(out.Issue.CashExpected), out.Issue.CashExpected.String())
	assert.True(t, types.MustMoney("50").Equal(out.Issue.CashShortage))
	assert.True(t, out.Issue.CashExcess.IsZero())
	assert.True(t, out.Issue.IsSettled())

	require.NotNil(t, out.FilledReturn)
	require.NotNil(t, out.EmptyReturn)
	assert.Equal(t, journal.TypeVehicleReturn, out.FilledReturn.Type)
	assert.Equal(t, journal.TypeEmptyReturn, out.EmptyReturn.Type)
	assert.Equal(t, issue.ID, *out.FilledReturn.ParentTransactionID)
	assert.Equal(t, issue.ID, *out.EmptyReturn.ParentTransactionID)
	assert.Equal(t, 2, out.FilledReturn.TripNumber)
	assert.Equal(t, "Ramesh", *out.EmptyReturn.DriverName)
	assert.True(t, types.MustMoney("50").Equal(out.FilledReturn.Lines[0].UnitPrice))
	require.Len(t, out.Warnings, 1, "empties were never on the vehicle ledger")

	state, err := f.svc.State(context.Background(), f.agency, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateSettled, state.State)
	assert.Len(t, state.Children, 2)
	assert.True(t, state.Issue.CashActual.Valid)
}

func TestSettle_Excess(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 10)

	out, err := f.svc.Settle(context.Background(), settlement.SettleInput{
		AgencyID: f.agency, IssueID: issue.ID, CashActual: types.MustMoney("520"), SettledBy: f.user,
	})
	require.NoError(t, err)

	assert.True(t, types.MustMoney("500").Equal(out.Issue.CashExpected))
	assert.True(t, out.Issue.CashShortage.IsZero())
	assert.True(t, types.MustMoney("20").Equal(out.Issue.CashExcess))
	assert.Nil(t, out.FilledReturn)
	assert.Nil(t, out.EmptyReturn)
}

func TestSettle_SecondSettlementRejected(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)
	in := settlement.SettleInput{
		AgencyID:   f.agency,
		IssueID:    issue.ID,
		Returns:    []settlement.Return{{ProductID: f.product.ID, FilledReturned: 5}},
		CashActual: types.MustMoney("750"),
		SettledBy:  f.user,
	}
	_, err := f.svc.Settle(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.Settle(context.Background(), in)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySettled))
	assert.Equal(t, int64(85), f.stock(f.godown).Filled, "second call must not move stock")
}

func TestSettle_InvalidReturns(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)

	tests := []struct {
		name    string
		returns []settlement.Return
	}{
		{"more than issued", []settlement.Return{{ProductID: f.product.ID, FilledReturned: 21}}},
		{"negative empties", []settlement.Return{{ProductID: f.product.ID, EmptyReturned: -1}}},
		{"product not issued", []settlement.Return{{ProductID: id.New(), FilledReturned: 1}}},
		{"duplicate product", []settlement.Return{{ProductID: f.product.ID}, {ProductID: f.product.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Settle(context.Background(), settlement.SettleInput{
				AgencyID: f.agency, IssueID: issue.ID, Returns: tt.returns, CashActual: types.Zero(), SettledBy: f.user,
			})
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	state, err := f.svc.State(context.Background(), f.agency, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateIssued, state.State)
	assert.Empty(t, state.Children)
}

func TestSettle_FailureKeepsIssueOpen(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)
	f.store.FailOn(memstore.OpJournalSaveSettlement, errors.New("disk full"))

	_, err := f.svc.Settle(context.Background(), settlement.SettleInput{
		AgencyID:   f.agency,
		IssueID:    issue.ID,
		Returns:    []settlement.Return{{ProductID: f.product.ID, FilledReturned: 5, EmptyReturned: 15}},
		CashActual: types.MustMoney("700"),
		SettledBy:  f.user,
	})
	require.Error(t, err)

	assert.Equal(t, int64(80), f.stock(f.godown).Filled, "returns roll back with the settlement")
	assert.Equal(t, int64(0), f.stock(f.godown).Empty)
	assert.Equal(t, int64(20), f.stock(f.vehicle).Filled)

	state, err := f.svc.State(context.Background(), f.agency, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateIssued, state.State)
	assert.Empty(t, state.Children)
}

func TestSettle_NotAnIssue(t *testing.T) {
	f := newFixture(t)
	purchases, err := f.store.Journal().List(context.Background(), journal.ListFilter{AgencyID: f.agency})
	require.NoError(t, err)
	require.NotEmpty(t, purchases.Items)

	_, err = f.svc.Settle(context.Background(), settlement.SettleInput{
		AgencyID: f.agency, IssueID: purchases.Items[0].ID, CashActual: types.Zero(), SettledBy: f.user,
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Settle(context.Background(), settlement.SettleInput{
		AgencyID: f.agency, IssueID: id.New(), CashActual: types.Zero(), SettledBy: f.user,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestSettle_ReturnsOfSettledIssueCannotBeReversed(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)
	ctx := context.Background()

	out, err := f.svc.Settle(ctx, settlement.SettleInput{
		AgencyID:   f.agency,
		IssueID:    issue.ID,
		Returns:    []settlement.Return{{ProductID: f.product.ID, FilledReturned: 5, EmptyReturned: 15}},
		CashActual: types.MustMoney("700"),
		SettledBy:  f.user,
	})
	require.NoError(t, err)

	for _, child := range []*journal.Transaction{out.FilledReturn, out.EmptyReturn} {
		_, err := f.engine.Reverse(ctx, movement.ReverseParams{
			AgencyID: f.agency, TransactionID: child.ID, CancelledBy: f.user,
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySettled), "%s: got %v", child.Type, err)
	}

	assert.Equal(t, int64(85), f.stock(f.godown).Filled)
	assert.Equal(t, int64(15), f.stock(f.vehicle).Filled)

	state, err := f.svc.State(ctx, f.agency, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateSettled, state.State)
	for _, c := range state.Children {
		assert.Equal(t, journal.StatusConfirmed, c.Status)
	}
	assert.True(t, types.MustMoney("750").Equal(state.Issue.CashExpected))
}

func TestSettle_LogsMovementsOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	issue := f.issue(t, 20)

	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithLogger(context.Background(), logger.FromZap(zap.New(core)))
	in := settlement.SettleInput{
		AgencyID:   f.agency,
		IssueID:    issue.ID,
		Returns:    []settlement.Return{{ProductID: f.product.ID, FilledReturned: 5, EmptyReturned: 15}},
		CashActual: types.MustMoney("700"),
		SettledBy:  f.user,
	}

	f.store.FailOn(memstore.OpJournalSaveSettlement, errors.New("disk full"))
	_, err := f.svc.Settle(ctx, in)
	require.Error(t, err)
	assert.Zero(t, logs.FilterMessage("stock movement recorded").Len(), "rolled back returns are not reported")
	assert.Zero(t, logs.FilterMessage("stock overdraft").Len())

	f.store.FailOn(memstore.OpJournalSaveSettlement, nil)
	_, err = f.svc.Settle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("stock movement recorded").Len())
	assert.Equal(t, 1, logs.FilterMessage("stock overdraft").Len())
	assert.Equal(t, 1, logs.FilterMessage("vehicle issue settled").Len())
}
