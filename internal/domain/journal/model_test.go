package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
)

func TestType_Prefix(t *testing.T) {
	tests := map[Type]string{
		TypePurchase:       "PUR",
		TypeVehicleIssue:   "VEH",
		TypeVehicleReturn:  "VEH",
		TypeEmptyReturn:    "EMP",
		TypeGodownTransfer: "GOD",
		TypeShowroomIssue:  "SHO",
		TypeCustomerSale:   "CUS",
		TypeAdjustment:     "ADJ",
	}
	for typ, want := range tests {
		t.Run(string(typ), func(t *testing.T) {
			assert.True(t, typ.IsValid())
			assert.Equal(t, want, typ.Prefix())
		})
	}
	assert.False(t, Type("REFILL").IsValid())
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DirectionIn, DirectionOf(false, true))
	assert.Equal(t, DirectionOut, DirectionOf(true, false))
	assert.Equal(t, DirectionNone, DirectionOf(true, true))

	assert.Equal(t, DirectionOut, DirectionIn.Inverse())
	assert.Equal(t, DirectionNone, DirectionNone.Inverse())
	assert.Equal(t, int64(-1), DirectionOut.Sign())
}

func TestType_Endpoints(t *testing.T) {
	type ends struct{ source, destination bool }
	type endpointCase struct {
		typ   Type
		ok    []ends
		field map[ends]string
	}
	tests := []endpointCase{
		{
			typ: TypePurchase,
			ok:  []ends{{false, true}},
			field: map[ends]string{
				{true, true}:  "sourceLocationId",
				{true, false}: "sourceLocationId",
			},
		},
		{
			typ: TypeCustomerSale,
			ok:  []ends{{true, false}},
			field: map[ends]string{
				{true, true}:  "destinationLocationId",
				{false, true}: "sourceLocationId",
			},
		},
		{
			typ:   TypeAdjustment,
			ok:    []ends{{true, true}, {true, false}, {false, true}},
			field: map[ends]string{},
		},
	}
	for _, internal := range []Type{TypeVehicleIssue, TypeVehicleReturn, TypeEmptyReturn, TypeGodownTransfer, TypeShowroomIssue} {
		tests = append(tests, endpointCase{
			typ: internal,
			ok:  []ends{{true, true}},
			field: map[ends]string{
				{true, false}: "destinationLocationId",
				{false, true}: "sourceLocationId",
			},
		})
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			rule := tt.typ.Endpoints()
			for _, e := range tt.ok {
				assert.NoError(t, rule.Check(tt.typ, e.source, e.destination), "%+v", e)
			}
			for e, field := range tt.field {
				err := rule.Check(tt.typ, e.source, e.destination)
				if assert.True(t, apperror.IsValidation(err), "%+v: got %v", e, err) {
					appErr, _ := apperror.AsAppError(err)
					assert.Equal(t, field, appErr.Details["field"])
				}
			}
		})
	}
}

func TestTransaction_RecomputeTotals(t *testing.T) {
	tx := &Transaction{Lines: []Line{
		{StockField: entity.FieldFilled, Quantity: 20, UnitPrice: types.MustMoney("50")},
		{StockField: entity.FieldSound, Quantity: 3, UnitPrice: types.MustMoney("12.50")},
		{StockField: entity.FieldQuantity, Quantity: 4},
	}}

	tx.RecomputeTotals()

	assert.Equal(t, int64(27), tx.TotalQuantity)
	assert.True(t, types.MustMoney("1037.50").Equal(tx.TotalValue), tx.TotalValue.String())
	assert.True(t, types.MustMoney("1000").Equal(tx.Lines[0].TotalValue))
	assert.True(t, tx.Lines[2].TotalValue.IsZero())
}

func TestTransaction_EnsureSettleable(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		tx   Transaction
		code string
	}{
		{"open issue", Transaction{Type: TypeVehicleIssue, Status: StatusConfirmed}, ""},
		{"wrong type", Transaction{Type: TypePurchase, Status: StatusConfirmed}, apperror.CodeValidation},
		{"cancelled", Transaction{Type: TypeVehicleIssue, Status: StatusCancelled}, apperror.CodeBusinessRule},
		{"already settled", Transaction{Type: TypeVehicleIssue, Status: StatusConfirmed, SettledAt: &now}, apperror.CodeAlreadySettled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.EnsureSettleable()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTransaction_EnsureReversible(t *testing.T) {
	parent := id.New()

	assert.NoError(t, (&Transaction{Type: TypePurchase, Status: StatusConfirmed}).EnsureReversible(0, nil))
	assert.True(t, apperror.HasCode(
		(&Transaction{Type: TypePurchase, Status: StatusCancelled}).EnsureReversible(0, nil),
		apperror.CodeAlreadyCancelled))
	assert.Error(t, (&Transaction{Type: TypeAdjustment, Status: StatusConfirmed, ParentTransactionID: &parent}).EnsureReversible(0, nil))
	assert.Error(t, (&Transaction{Type: TypeVehicleIssue, Status: StatusConfirmed}).EnsureReversible(2, nil))

	now := time.Now()
	issue := &Transaction{ID: parent, Type: TypeVehicleIssue, Status: StatusConfirmed}
	ret := &Transaction{Type: TypeVehicleReturn, Status: StatusConfirmed, ParentTransactionID: &parent}
	assert.NoError(t, ret.EnsureReversible(0, issue), "open issue")
	issue.SettledAt = &now
	assert.True(t, apperror.HasCode(ret.EnsureReversible(0, issue), apperror.CodeAlreadySettled))
}
