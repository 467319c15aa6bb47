package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
)

func TestAgencyProduct_CheckField(t *testing.T) {
	pr := AgencyProduct{ID: id.New(), Category: entity.CategoryPR}

	assert.NoError(t, pr.CheckField(entity.FieldSound))

	err := pr.CheckField(entity.FieldFilled)
	assert.True(t, apperror.IsValidation(err))

	err = pr.CheckField(entity.StockField("bogus"))
	assert.True(t, apperror.IsValidation(err))
}

func TestAgencyProduct_StockSnapshot(t *testing.T) {
	p := AgencyProduct{Category: entity.CategoryCylinder}
	p.Add(entity.FieldFilled, 12)

	assert.Equal(t, int64(12), p.Stock().Get(entity.FieldFilled))
}
