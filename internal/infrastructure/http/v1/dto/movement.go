package dto

import (
	"time"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/movement"
)

// LineRequest is one line of a movement.
type LineRequest struct {
	ProductID  id.ID       `json:"productId"`
	StockField string      `json:"stockField" binding:"required"`
	Quantity   int64       `json:"quantity"`
	UnitPrice  types.Money `json:"unitPrice"`
	Label      string      `json:"label" binding:"max=200"`
}

// ToInput converts the line for the engine.
func (l LineRequest) ToInput() movement.LineInput {
	return movement.LineInput{
		ProductID:  l.ProductID,
		StockField: entity.StockField(l.StockField),
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice,
		Label:      l.Label,
	}
}

// MetaRequest carries descriptive movement attributes.
type MetaRequest struct {
	DriverName          *string `json:"driverName" binding:"omitempty,max=120"`
	DriverPhone         *string `json:"driverPhone" binding:"omitempty,max=40"`
	DriverUserID        *id.ID  `json:"driverUserId"`
	TripNumber          int     `json:"tripNumber" binding:"omitempty,min=1"`
	Remarks             *string `json:"remarks" binding:"omitempty,max=1000"`
	ParentTransactionID *id.ID  `json:"parentTransactionId"`
}

// ToMeta converts the request.
func (m MetaRequest) ToMeta() movement.Meta {
	return movement.Meta{
		DriverName:          m.DriverName,
		DriverPhone:         m.DriverPhone,
		DriverUserID:        m.DriverUserID,
		TripNumber:          m.TripNumber,
		Remarks:             m.Remarks,
		ParentTransactionID: m.ParentTransactionID,
	}
}

// MovementRequest is the body of POST /movements.
type MovementRequest struct {
	SourceLocationID      *id.ID        `json:"sourceLocationId"`
	DestinationLocationID *id.ID        `json:"destinationLocationId"`
	TransactionType       string        `json:"transactionType" binding:"required"`
	Lines                 []LineRequest `json:"lines" binding:"required,min=1,dive"`
	MetaRequest
	AllowOverdraft  bool       `json:"allowOverdraft"`
	TransactionDate *time.Time `json:"transactionDate"`
}

// ToParams builds engine parameters for the caller.
func (r MovementRequest) ToParams(agencyID, userID id.ID) movement.Params {
	p := movement.Params{
		AgencyID:              agencyID,
		SourceLocationID:      r.SourceLocationID,
		DestinationLocationID: r.DestinationLocationID,
		Type:                  journal.Type(r.TransactionType),
		Lines:                 ToLineInputs(r.Lines),
		CreatedBy:             userID,
		Meta:                  r.ToMeta(),
		AllowOverdraft:        r.AllowOverdraft,
	}
	if r.TransactionDate != nil {
		p.TransactionDate = r.TransactionDate.UTC()
	}
	return p
}

// ToLineInputs converts request lines in order.
func ToLineInputs(lines []LineRequest) []movement.LineInput {
	out := make([]movement.LineInput, len(lines))
	for i, l := range lines {
		out[i] = l.ToInput()
	}
	return out
}

// ReverseRequest is the body of POST /movements/:id/reverse.
type ReverseRequest struct {
	Remarks        *string `json:"remarks" binding:"omitempty,max=1000"`
	AllowOverdraft bool    `json:"allowOverdraft"`
}

// ToParams builds reversal parameters for the caller.
func (r ReverseRequest) ToParams(agencyID, transactionID, userID id.ID) movement.ReverseParams {
	return movement.ReverseParams{
		AgencyID:       agencyID,
		TransactionID:  transactionID,
		CancelledBy:    userID,
		Remarks:        r.Remarks,
		AllowOverdraft: r.AllowOverdraft,
	}
}

// TransactionListQuery holds GET /transactions filters.
type TransactionListQuery struct {
	Type       string `form:"type"`
	Status     string `form:"status"`
	LocationID string `form:"locationId"`
	ParentID   string `form:"parentId"`
	From       string `form:"from"`
	To         string `form:"to"`
	PageQuery
}

// ToFilter validates the query and builds a journal filter.
func (q TransactionListQuery) ToFilter(agencyID id.ID) (journal.ListFilter, error) {
	f := journal.ListFilter{AgencyID: agencyID, Page: q.ToPage()}
	var err error

	if q.Type != "" {
		t := journal.Type(q.Type)
		if !t.IsValid() {
			return f, invalidValue("type", q.Type)
		}
		f.Type = &t
	}
	if q.Status != "" {
		s := journal.Status(q.Status)
		if !s.IsValid() {
			return f, invalidValue("status", q.Status)
		}
		f.Status = &s
	}
	if f.LocationID, err = parseOptionalID("locationId", q.LocationID); err != nil {
		return f, err
	}
	if f.ParentID, err = parseOptionalID("parentId", q.ParentID); err != nil {
		return f, err
	}
	if f.From, err = parseOptionalTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalTime("to", q.To); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, invalidValue("to", q.To)
	}
	return f, nil
}
