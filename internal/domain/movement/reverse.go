package movement

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/audit"
	"lpgstock/internal/domain/journal"
	"lpgstock/pkg/logger"
)

// ReverseParams identifies a confirmed entry to cancel.
type ReverseParams struct {
	AgencyID       id.ID
	TransactionID  id.ID
	CancelledBy    id.ID
	Remarks        *string
	AllowOverdraft bool
}

// Reverse cancels a confirmed entry by recording a compensating ADJUSTMENT
// with source and destination swapped and the inverse aggregate direction.
// The original stays in the journal, marked CANCELLED.
func (e *Engine) Reverse(ctx context.Context, p ReverseParams) (*Result, error) {
	ctx, span := tracer.Start(ctx, "movement.Reverse", trace.WithAttributes(
		attribute.String("agency.id", p.AgencyID.String()),
		attribute.String("transaction.id", p.TransactionID.String()),
	))
	defer span.End()

	var res *Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		orig, err := e.journal.GetByIDForUpdate(ctx, p.AgencyID, p.TransactionID)
		if err != nil {
			return err
		}

		children, err := e.journal.ListChildren(ctx, p.AgencyID, orig.ID)
		if err != nil {
			return fmt.Errorf("list dependent transactions: %w", err)
		}
		var parent *journal.Transaction
		if orig.ParentTransactionID != nil {
			if parent, err = e.journal.GetByIDForUpdate(ctx, p.AgencyID, *orig.ParentTransactionID); err != nil {
				return fmt.Errorf("load parent transaction: %w", err)
			}
		}
		if err := orig.EnsureReversible(countLive(children), parent); err != nil {
			return err
		}

		remarks := p.Remarks
		if remarks == nil {
			r := "Reversal of " + orig.ReferenceNumber
			remarks = &r
		}

		lines := make([]LineInput, 0, len(orig.Lines))
		for _, l := range orig.Lines {
			lines = append(lines, LineInput{
				ProductID:  l.ProductID,
				StockField: l.StockField,
				Quantity:   l.Quantity,
				UnitPrice:  l.UnitPrice,
				Label:      l.ProductLabel,
			})
		}

		// Swapped ends give the inverse aggregate direction.
		res, err = e.Apply(ctx, Params{
			AgencyID:              p.AgencyID,
			SourceLocationID:      orig.DestinationLocationID,
			DestinationLocationID: orig.SourceLocationID,
			Type:                  journal.TypeAdjustment,
			Lines:                 lines,
			CreatedBy:             p.CancelledBy,
			Meta: Meta{
				DriverName:          orig.DriverName,
				DriverPhone:         orig.DriverPhone,
				DriverUserID:        orig.DriverUserID,
				TripNumber:          orig.TripNumber,
				Remarks:             remarks,
				ParentTransactionID: id.Ptr(orig.ID),
			},
			AllowOverdraft: p.AllowOverdraft,
		})
		if err != nil {
			return err
		}

		at := res.Transaction.CreatedAt
		if err := e.journal.MarkCancelled(ctx, p.AgencyID, orig.ID, p.CancelledBy, at); err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		orig.Status = journal.StatusCancelled
		orig.CancelledBy = id.Ptr(p.CancelledBy)
		orig.CancelledAt = &at
		return e.record(ctx, orig, audit.ActionMovementReversed, p.CancelledBy, res.Warnings)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Info(ctx, "stock movement reversed",
		"transaction_id", p.TransactionID,
		"compensating_reference", res.Transaction.ReferenceNumber,
	)
	e.Committed(ctx, p.AgencyID, res)
	return res, nil
}

func countLive(children []*journal.Transaction) int {
	n := 0
	for _, c := range children {
		if c.Status != journal.StatusCancelled {
			n++
		}
	}
	return n
}
