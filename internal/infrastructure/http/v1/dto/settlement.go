package dto

import (
	"time"

	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/settlement"
)

// IssueRequest is the body of POST /vehicles/:vehicleId/issues.
type IssueRequest struct {
	GodownID id.ID         `json:"godownId"`
	Lines    []LineRequest `json:"lines" binding:"required,min=1,dive"`
	MetaRequest
	AllowOverdraft  bool       `json:"allowOverdraft"`
	TransactionDate *time.Time `json:"transactionDate"`
}

func (r IssueRequest) ToInput(agencyID, vehicleID, userID id.ID) settlement.IssueInput {
	in := settlement.IssueInput{
		AgencyID:       agencyID,
		GodownID:       r.GodownID,
		VehicleID:      vehicleID,
		Lines:          ToLineInputs(r.Lines),
		CreatedBy:      userID,
		Meta:           r.ToMeta(),
		AllowOverdraft: r.AllowOverdraft,
	}
	if r.TransactionDate != nil {
		in.TransactionDate = r.TransactionDate.UTC()
	}
	return in
}

// ReturnRequest is what came back for one product.
type ReturnRequest struct {
	ProductID      id.ID `json:"productId"`
	FilledReturned int64 `json:"filledReturned"`
	EmptyReturned  int64 `json:"emptyReturned"`
}

// SettleRequest is the body of POST /issues/:id/settle.
type SettleRequest struct {
	Returns    []ReturnRequest `json:"returns" binding:"dive"`
	CashActual types.Money     `json:"cashActual"`
	Remarks    *string         `json:"remarks" binding:"omitempty,max=1000"`
}

func (r SettleRequest) ToInput(agencyID, issueID, userID id.ID) settlement.SettleInput {
	returns := make([]settlement.Return, len(r.Returns))
	for i, ret := range r.Returns {
		returns[i] = settlement.Return{
			ProductID:      ret.ProductID,
			FilledReturned: ret.FilledReturned,
			EmptyReturned:  ret.EmptyReturned,
		}
	}
	return settlement.SettleInput{
		AgencyID:   agencyID,
		IssueID:    issueID,
		Returns:    returns,
		CashActual: r.CashActual,
		SettledBy:  userID,
		Remarks:    r.Remarks,
	}
}
