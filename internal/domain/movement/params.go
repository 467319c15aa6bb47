package movement

import (
	"fmt"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/journal"
)

// LineInput is one requested product movement.
type LineInput struct {
	ProductID  id.ID
	StockField entity.StockField
	Quantity   int64

	// UnitPrice defaults to zero
	UnitPrice types.Money

	// Label is the display snapshot; the product name is used when empty
	Label string
}

// Meta carries descriptive attributes stored on the journal entry.
type Meta struct {
	DriverName   *string
	DriverPhone  *string
	DriverUserID *id.ID

	// TripNumber defaults to 1
	TripNumber int
	Remarks    *string

	// ParentTransactionID links a return to its issue
	ParentTransactionID *id.ID
}

func (m Meta) tripNumber() int {
	if m.TripNumber <= 0 {
		return 1
	}
	return m.TripNumber
}

// Params is a movement request. A nil source means stock enters the system,
// a nil destination means it leaves.
type Params struct {
	AgencyID              id.ID
	SourceLocationID      *id.ID
	DestinationLocationID *id.ID
	Type                  journal.Type
	Lines                 []LineInput
	CreatedBy             id.ID
	Meta                  Meta

	// AllowOverdraft lets source balances go negative; each such line is
	// reported as a Warning and flagged on the journal line.
	AllowOverdraft bool

	// TransactionDate defaults to now
	TransactionDate time.Time
}

// Validate performs every check that needs no storage access.
func (p Params) Validate() error {
	if id.IsNil(p.AgencyID) {
		return apperror.NewValidation("agency is required").WithDetail("field", "agencyId")
	}
	if id.IsNil(p.CreatedBy) {
		return apperror.NewValidation("acting user is required").WithDetail("field", "createdBy")
	}
	if !p.Type.IsValid() {
		return apperror.NewValidation("invalid transaction type").
			WithDetail("field", "transactionType").
			WithDetail("value", string(p.Type))
	}
	if p.SourceLocationID == nil && p.DestinationLocationID == nil {
		return apperror.NewValidation("source or destination location is required").
			WithDetail("field", "sourceLocationId")
	}
	if err := p.Type.Endpoints().Check(p.Type, p.SourceLocationID != nil, p.DestinationLocationID != nil); err != nil {
		return err
	}
	if p.SourceLocationID != nil && id.Equal(p.SourceLocationID, p.DestinationLocationID) {
		return apperror.NewValidation("source and destination locations must differ").
			WithDetail("field", "destinationLocationId")
	}
	if len(p.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	for i, l := range p.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case id.IsNil(l.ProductID):
			return apperror.NewValidation("product is required").WithDetail("field", field+".productId")
		case !l.StockField.IsValid():
			return apperror.NewValidation("unknown stock field").
				WithDetail("field", field+".stockField").
				WithDetail("value", string(l.StockField))
		case l.Quantity <= 0:
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", field+".quantity").
				WithDetail("value", l.Quantity)
		case l.UnitPrice.IsNegative():
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", field+".unitPrice")
		}
	}
	return nil
}

// Warning reports a line that drove its source balance below zero.
type Warning struct {
	ProductID    id.ID             `json:"productId"`
	ProductLabel string            `json:"productLabel"`
	StockField   entity.StockField `json:"stockField"`
	Available    int64             `json:"available"`
	Requested    int64             `json:"requested"`
	Overdraft    int64             `json:"overdraft"`
}

// Result is the outcome of a movement.
type Result struct {
	Transaction *journal.Transaction `json:"transaction"`
	Warnings    []Warning            `json:"warnings,omitempty"`
}

// direction is the aggregate effect implied by the ends of p.
func (p Params) direction() journal.Direction {
	return journal.DirectionOf(p.SourceLocationID != nil, p.DestinationLocationID != nil)
}
