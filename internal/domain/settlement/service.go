// Package settlement implements the vehicle issue and settlement flow on top
// of the movement engine.
package settlement

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/tx"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/audit"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/pkg/logger"
)

var tracer = otel.Tracer("lpgstock/settlement")

// State of a vehicle issue.
type State string

const (
	StateIssued  State = "ISSUED"
	StateSettled State = "SETTLED"
)

// Service runs vehicle issues and settlements.
type Service struct {
	txm       tx.Manager
	engine    *movement.Engine
	locations location.Repository
	journal   journal.Repository
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates a settlement service. A nil recorder disables auditing.
func NewService(txm tx.Manager, engine *movement.Engine, locations location.Repository, journalRepo journal.Repository, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		txm:       txm,
		engine:    engine,
		locations: locations,
		journal:   journalRepo,
		audit:     rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueInput loads stock from a godown onto a vehicle.
type IssueInput struct {
	AgencyID        id.ID
	GodownID        id.ID
	VehicleID       id.ID
	Lines           []movement.LineInput
	CreatedBy       id.ID
	Meta            movement.Meta
	AllowOverdraft  bool
	TransactionDate time.Time
}

// Issue records a VEHICLE_ISSUE from a godown to the vehicle's location.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*movement.Result, error) {
	vehicleLoc, err := s.locations.GetByVehicle(ctx, in.AgencyID, in.VehicleID)
	if err != nil {
		return nil, err
	}
	godown, err := s.locations.GetByID(ctx, in.AgencyID, in.GodownID)
	if err != nil {
		return nil, err
	}
	if godown.Kind != location.KindGodown {
		return nil, apperror.NewValidation("vehicle issues must start at a godown").
			WithDetail("field", "sourceLocationId").
			WithDetail("kind", string(godown.Kind))
	}

	return s.engine.Execute(ctx, movement.Params{
		AgencyID:              in.AgencyID,
		SourceLocationID:      id.Ptr(godown.ID),
		DestinationLocationID: id.Ptr(vehicleLoc.ID),
		Type:                  journal.TypeVehicleIssue,
		Lines:                 in.Lines,
		CreatedBy:             in.CreatedBy,
		Meta:                  in.Meta,
		AllowOverdraft:        in.AllowOverdraft,
		TransactionDate:       in.TransactionDate,
	})
}

// Return is what came back for one issued product.
type Return struct {
	ProductID      id.ID
	FilledReturned int64
	EmptyReturned  int64
}

// SettleInput reconciles an issue.
type SettleInput struct {
	AgencyID   id.ID
	IssueID    id.ID
	Returns    []Return
	CashActual types.Money
	SettledBy  id.ID
	Remarks    *string
}

// Outcome is the result of a settlement.
type Outcome struct {
	Issue        *journal.Transaction `json:"issue"`
	FilledReturn *journal.Transaction `json:"filledReturn,omitempty"`
	EmptyReturn  *journal.Transaction `json:"emptyReturn,omitempty"`
	Warnings     []movement.Warning   `json:"warnings,omitempty"`
}

func (in SettleInput) validate() error {
	if id.IsNil(in.SettledBy) {
		return apperror.NewValidation("acting user is required").WithDetail("field", "settledBy")
	}
	if in.CashActual.IsNegative() {
		return apperror.NewValidation("cash actual cannot be negative").WithDetail("field", "cashActual")
	}
	seen := make(map[id.ID]bool, len(in.Returns))
	for i, r := range in.Returns {
		field := fmt.Sprintf("returns[%d]", i)
		if seen[r.ProductID] {
			return apperror.NewValidation("product listed twice").WithDetail("field", field+".productId")
		}
		seen[r.ProductID] = true
		if r.FilledReturned < 0 {
			return apperror.NewValidation("filled returned cannot be negative").WithDetail("field", field+".filledReturned")
		}
		if r.EmptyReturned < 0 {
			return apperror.NewValidation("empty returned cannot be negative").WithDetail("field", field+".emptyReturned")
		}
	}
	return nil
}

// Settle books the filled and empty returns of an issue and writes the cash
// reconciliation onto it, all in one transaction. An issue settles once.
func (s *Service) Settle(ctx context.Context, in SettleInput) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("agency.id", in.AgencyID.String()),
		attribute.String("issue.id", in.IssueID.String()),
	))
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	out := &Outcome{}
	var booked []*movement.Result
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		issue, err := s.journal.GetByIDForUpdate(ctx, in.AgencyID, in.IssueID)
		if err != nil {
			return err
		}
		if err := issue.EnsureSettleable(); err != nil {
			return err
		}

		plan, err := planReturns(issue, in.Returns)
		if err != nil {
			return err
		}

		meta := movement.Meta{
			DriverName:          issue.DriverName,
			DriverPhone:         issue.DriverPhone,
			DriverUserID:        issue.DriverUserID,
			TripNumber:          issue.TripNumber,
			Remarks:             in.Remarks,
			ParentTransactionID: id.Ptr(issue.ID),
		}
		child := func(typ journal.Type, lines []movement.LineInput, overdraft bool) (*movement.Result, error) {
			return s.engine.Apply(ctx, movement.Params{
				AgencyID:              in.AgencyID,
				SourceLocationID:      issue.DestinationLocationID,
				DestinationLocationID: issue.SourceLocationID,
				Type:                  typ,
				Lines:                 lines,
				CreatedBy:             in.SettledBy,
				Meta:                  meta,
				AllowOverdraft:        overdraft,
			})
		}

		if len(plan.filled) > 0 {
			res, err := child(journal.TypeVehicleReturn, plan.filled, false)
			if err != nil {
				return fmt.Errorf("filled return: %w", err)
			}
			out.FilledReturn = res.Transaction
			booked = append(booked, res)
		}
		if len(plan.empty) > 0 {
			// Empties come from customer exchanges the ledger never saw on the vehicle.
			res, err := child(journal.TypeEmptyReturn, plan.empty, true)
			if err != nil {
				return fmt.Errorf("empty return: %w", err)
			}
			out.EmptyReturn = res.Transaction
			booked = append(booked, res)
			out.Warnings = res.Warnings
		}

		now := s.now()
		issue.CashExpected = plan.cashExpected
		issue.CashActual = types.KnownMoney(in.CashActual)
		issue.CashShortage = types.NonNegative(plan.cashExpected.Sub(in.CashActual))
		issue.CashExcess = types.NonNegative(in.CashActual.Sub(plan.cashExpected))
		issue.SettledAt = &now
		issue.SettledBy = id.Ptr(in.SettledBy)
		issue.UpdatedAt = now
		if err := s.journal.SaveSettlement(ctx, issue); err != nil {
			return fmt.Errorf("save settlement: %w", err)
		}
		out.Issue = issue

		entry, err := audit.NewEntry(in.AgencyID, movement.EntityType, issue.ID, audit.ActionSettlementRecorded, in.SettledBy, map[string]any{
			"referenceNumber": issue.ReferenceNumber,
			"cashExpected":    issue.CashExpected,
			"cashActual":      in.CashActual,
			"cashShortage":    issue.CashShortage,
			"cashExcess":      issue.CashExcess,
			"returns":         in.Returns,
		})
		if err != nil {
			return err
		}
		entry.ID = id.New()
		entry.CreatedAt = now
		return s.audit.Record(ctx, entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.engine.Committed(ctx, in.AgencyID, booked...)
	logger.Info(ctx, "vehicle issue settled",
		"issue_id", out.Issue.ID,
		"reference", out.Issue.ReferenceNumber,
		"cash_expected", out.Issue.CashExpected.String(),
		"cash_actual", in.CashActual.String(),
		"cash_shortage", out.Issue.CashShortage.String(),
		"cash_excess", out.Issue.CashExcess.String(),
	)
	return out, nil
}

type returnPlan struct {
	filled       []movement.LineInput
	empty        []movement.LineInput
	cashExpected types.Money
}

// planReturns allocates filled returns to the issue's filled lines in order,
// priced at the line's issue price, and derives the cash the driver owes.
func planReturns(issue *journal.Transaction, returns []Return) (returnPlan, error) {
	issued := make(map[id.ID]int64)
	labels := make(map[id.ID]string)
	for _, l := range issue.Lines {
		if l.StockField == entity.FieldFilled {
			issued[l.ProductID] += l.Quantity
			if _, ok := labels[l.ProductID]; !ok {
				labels[l.ProductID] = l.ProductLabel
			}
		}
	}

	remaining := make(map[id.ID]int64, len(returns))
	plan := returnPlan{cashExpected: types.Zero()}
	for i, r := range returns {
		qty, ok := issued[r.ProductID]
		if !ok {
			return returnPlan{}, apperror.NewValidation("product was not issued as filled stock").
				WithDetail("field", fmt.Sprintf("returns[%d].productId", i)).
				WithDetail("product_id", r.ProductID)
		}
		if r.FilledReturned > qty {
			return returnPlan{}, apperror.NewValidation("filled returned exceeds quantity issued").
				WithDetail("field", fmt.Sprintf("returns[%d].filledReturned", i)).
				WithDetail("issued", qty).
				WithDetail("returned", r.FilledReturned)
		}
		remaining[r.ProductID] = r.FilledReturned
		if r.EmptyReturned > 0 {
			plan.empty = append(plan.empty, movement.LineInput{
				ProductID:  r.ProductID,
				StockField: entity.FieldEmpty,
				Quantity:   r.EmptyReturned,
				Label:      labels[r.ProductID],
			})
		}
	}

	for _, l := range issue.Lines {
		if l.StockField != entity.FieldFilled {
			continue
		}
		back := min(remaining[l.ProductID], l.Quantity)
		remaining[l.ProductID] -= back
		if back > 0 {
			plan.filled = append(plan.filled, movement.LineInput{
				ProductID:  l.ProductID,
				StockField: entity.FieldFilled,
				Quantity:   back,
				UnitPrice:  l.UnitPrice,
				Label:      l.ProductLabel,
			})
		}
		plan.cashExpected = plan.cashExpected.Add(types.LineTotal(l.UnitPrice, l.Quantity-back))
	}
	return plan, nil
}

// IssueState describes where an issue sits in its lifecycle.
type IssueState struct {
	Issue    *journal.Transaction   `json:"issue"`
	State    State                  `json:"state"`
	Children []*journal.Transaction `json:"children"`
}

// State returns the lifecycle state of an issue with its child transactions.
func (s *Service) State(ctx context.Context, agencyID, issueID id.ID) (*IssueState, error) {
	issue, err := s.journal.GetByID(ctx, agencyID, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Type != journal.TypeVehicleIssue {
		return nil, apperror.NewValidation("transaction is not a vehicle issue").
			WithDetail("transaction_id", issueID).
			WithDetail("transaction_type", string(issue.Type))
	}

	children, err := s.journal.ListChildren(ctx, agencyID, issueID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	if children == nil {
		children = []*journal.Transaction{}
	}

	state := StateIssued
	if issue.IsSettled() {
		state = StateSettled
	}
	return &IssueState{Issue: issue, State: state, Children: children}, nil
}
