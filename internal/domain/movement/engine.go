// Package movement provides the stock movement engine, the single path
// through which ledger balances change.
package movement

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/numerator"
	"lpgstock/internal/core/tx"
	"lpgstock/internal/core/types"
	"lpgstock/internal/domain/audit"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/pkg/logger"
)

var tracer = otel.Tracer("lpgstock/movement")

// EntityType is the audit entity name of journal entries.
const EntityType = "stock_transaction"

// Invalidator is notified after a movement commits. Failures are logged, never returned.
type Invalidator interface {
	InvalidateAgency(ctx context.Context, agencyID id.ID) error
}

// Engine validates and applies stock movements.
type Engine struct {
	txm       tx.Manager
	locations location.Repository
	ledger    ledger.Repository
	journal   journal.Repository
	catalog   catalog.Catalog
	numbers   numerator.Generator
	audit     audit.Recorder
	hooks     []Invalidator
	reset     string
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAudit records every movement through r.
func WithAudit(r audit.Recorder) Option {
	return func(e *Engine) { e.audit = r }
}

// WithInvalidators registers post-commit hooks.
func WithInvalidators(hooks ...Invalidator) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks...) }
}

// WithSequenceReset sets the reference counter reset period ("year", "month", "never").
func WithSequenceReset(period string) Option {
	return func(e *Engine) {
		if period != "" {
			e.reset = period
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a movement engine.
func NewEngine(
	txm tx.Manager,
	locations location.Repository,
	ledgerRepo ledger.Repository,
	journalRepo journal.Repository,
	cat catalog.Catalog,
	numbers numerator.Generator,
	opts ...Option,
) *Engine {
	e := &Engine{
		txm:       txm,
		locations: locations,
		ledger:    ledgerRepo,
		journal:   journalRepo,
		catalog:   cat,
		numbers:   numbers,
		audit:     audit.Nop{},
		reset:     numerator.ResetYear,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one movement as its own unit of work and reports it once it
// has committed.
func (e *Engine) Execute(ctx context.Context, p Params) (*Result, error) {
	ctx, span := tracer.Start(ctx, "movement.Execute", trace.WithAttributes(
		attribute.String("agency.id", p.AgencyID.String()),
		attribute.String("movement.type", string(p.Type)),
		attribute.Int("movement.lines", len(p.Lines)),
	))
	defer span.End()

	if err := p.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var res *Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.Apply(ctx, p)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("movement.reference", res.Transaction.ReferenceNumber))
	e.Committed(ctx, p.AgencyID, res)
	return res, nil
}

// Apply runs the movement inside the caller's transaction, or a new one when
// ctx carries none. It neither logs nor fires the invalidation hooks; callers
// composing several movements call Committed after their outer transaction
// commits.
func (e *Engine) Apply(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var res *Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.run(ctx, p, p.direction())
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Committed logs each committed movement with its overdraft warnings, then
// fires the post-commit hooks for the agency. Nil results are skipped.
func (e *Engine) Committed(ctx context.Context, agencyID id.ID, results ...*Result) {
	for _, res := range results {
		if res == nil || res.Transaction == nil {
			continue
		}
		t := res.Transaction
		logger.Info(ctx, "stock movement recorded",
			"transaction_id", t.ID,
			"reference", t.ReferenceNumber,
			"type", t.Type,
			"lines", len(t.Lines),
			"total_quantity", t.TotalQuantity,
			"total_value", t.TotalValue.String(),
		)
		for _, w := range res.Warnings {
			logger.Warn(ctx, "stock overdraft",
				"reference", t.ReferenceNumber,
				"product_id", w.ProductID,
				"stock_field", w.StockField,
				"available", w.Available,
				"requested", w.Requested,
				"overdraft", w.Overdraft,
			)
		}
	}
	e.Notify(ctx, agencyID)
}

// Notify fires the post-commit hooks for an agency.
func (e *Engine) Notify(ctx context.Context, agencyID id.ID) {
	for _, h := range e.hooks {
		if err := h.InvalidateAgency(ctx, agencyID); err != nil {
			logger.Warn(ctx, "post-commit hook failed", "agency_id", agencyID, "error", err)
		}
	}
}

// run is the body of the unit of work. Every step either succeeds or the
// enclosing transaction rolls back everything before it.
func (e *Engine) run(ctx context.Context, p Params, dir journal.Direction) (*Result, error) {
	now := e.now()

	if err := e.resolveLocation(ctx, p.AgencyID, p.SourceLocationID, "sourceLocationId"); err != nil {
		return nil, err
	}
	if err := e.resolveLocation(ctx, p.AgencyID, p.DestinationLocationID, "destinationLocationId"); err != nil {
		return nil, err
	}
	if p.Meta.ParentTransactionID != nil {
		if _, err := e.journal.GetByID(ctx, p.AgencyID, *p.Meta.ParentTransactionID); err != nil {
			return nil, err
		}
	}

	products, err := e.resolveProducts(ctx, p)
	if err != nil {
		return nil, err
	}

	txDate := p.TransactionDate
	if txDate.IsZero() {
		txDate = now
	}

	t := &journal.Transaction{
		ID:                    id.New(),
		AgencyID:              p.AgencyID,
		SourceLocationID:      p.SourceLocationID,
		DestinationLocationID: p.DestinationLocationID,
		Type:                  p.Type,
		Direction:             dir,
		ParentTransactionID:   p.Meta.ParentTransactionID,
		TransactionDate:       txDate,
		DriverName:            p.Meta.DriverName,
		DriverPhone:           p.Meta.DriverPhone,
		DriverUserID:          p.Meta.DriverUserID,
		TripNumber:            p.Meta.tripNumber(),
		Remarks:               p.Meta.Remarks,
		Lines:                 make([]journal.Line, 0, len(p.Lines)),
		CashActual:            types.NullMoney{},
		Status:                journal.StatusConfirmed,
		CreatedBy:             p.CreatedBy,
		ConfirmedBy:           id.Ptr(p.CreatedBy),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var warnings []Warning
	for i, in := range p.Lines {
		product := products[in.ProductID]
		label := in.Label
		if label == "" {
			label = product.Name
		}

		override := false
		if p.SourceLocationID != nil {
			key := ledger.Key{AgencyID: p.AgencyID, ProductID: in.ProductID, LocationID: *p.SourceLocationID}
			after, err := e.ledger.ApplyDelta(ctx, key, in.StockField, -in.Quantity, now)
			if err != nil {
				return nil, fmt.Errorf("debit source line %d: %w", i+1, err)
			}

			// The check reads the value the atomic decrement produced, so no
			// concurrent movement can slip between check and debit.
			remaining := after.Get(in.StockField)
			if remaining < 0 {
				available := remaining + in.Quantity
				if !p.AllowOverdraft {
					return nil, apperror.NewInsufficientStock(
						in.ProductID.String(), label, string(in.StockField), available, in.Quantity,
					).WithDetail("location_id", *p.SourceLocationID).WithDetail("line", i+1)
				}
				override = true
				warnings = append(warnings, Warning{
					ProductID:    in.ProductID,
					ProductLabel: label,
					StockField:   in.StockField,
					Available:    available,
					Requested:    in.Quantity,
					Overdraft:    in.Quantity - available,
				})
			}
		}

		if p.DestinationLocationID != nil {
			key := ledger.Key{AgencyID: p.AgencyID, ProductID: in.ProductID, LocationID: *p.DestinationLocationID}
			if _, err := e.ledger.ApplyDelta(ctx, key, in.StockField, in.Quantity, now); err != nil {
				return nil, fmt.Errorf("credit destination line %d: %w", i+1, err)
			}
		}

		if sign := dir.Sign(); sign != 0 {
			if err := e.catalog.ApplyAggregateDelta(ctx, p.AgencyID, in.ProductID, in.StockField, sign*in.Quantity); err != nil {
				return nil, fmt.Errorf("update aggregate line %d: %w", i+1, err)
			}
		}

		t.Lines = append(t.Lines, journal.Line{
			TransactionID: t.ID,
			LineNo:        i + 1,
			ProductID:     in.ProductID,
			ProductLabel:  label,
			StockField:    in.StockField,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			IsOverride:    override,
		})
	}
	t.RecomputeTotals()

	ref, err := e.numbers.GetNextNumber(ctx, e.numberConfig(p.AgencyID, p.Type), txDate)
	if err != nil {
		return nil, fmt.Errorf("generate reference number: %w", err)
	}
	t.ReferenceNumber = ref

	if err := e.journal.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create journal entry: %w", err)
	}

	if err := e.record(ctx, t, audit.ActionMovementExecuted, p.CreatedBy, warnings); err != nil {
		return nil, err
	}

	return &Result{Transaction: t, Warnings: warnings}, nil
}

func (e *Engine) resolveLocation(ctx context.Context, agencyID id.ID, locationID *id.ID, field string) error {
	if locationID == nil {
		return nil
	}
	loc, err := e.locations.GetByID(ctx, agencyID, *locationID)
	if err != nil {
		if apperror.IsNotFound(err) {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("field", field)
			}
		}
		return err
	}
	return loc.EnsureUsable()
}

// resolveProducts loads each distinct product once and checks every line's
// stock field against the product category.
func (e *Engine) resolveProducts(ctx context.Context, p Params) (map[id.ID]catalog.AgencyProduct, error) {
	products := make(map[id.ID]catalog.AgencyProduct, len(p.Lines))
	for i, in := range p.Lines {
		product, ok := products[in.ProductID]
		if !ok {
			var err error
			product, err = e.catalog.GetProduct(ctx, p.AgencyID, in.ProductID)
			if err != nil {
				return nil, err
			}
			products[in.ProductID] = product
		}
		if err := product.CheckField(in.StockField); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i+1)
			}
			return nil, err
		}
	}
	return products, nil
}

// numberConfig gives every agency one reference counter shared by all types.
// VEHICLE_ISSUE and VEHICLE_RETURN print the same prefix and must not collide.
func (e *Engine) numberConfig(agencyID id.ID, t journal.Type) numerator.Config {
	cfg := numerator.ScopedConfig("stock_tx_"+agencyID.String(), t.Prefix())
	cfg.ResetPeriod = e.reset
	cfg.IncludeYear = true
	return cfg
}

func (e *Engine) record(ctx context.Context, t *journal.Transaction, action audit.Action, userID id.ID, warnings []Warning) error {
	entry, err := audit.NewEntry(t.AgencyID, EntityType, t.ID, action, userID, auditPayload{
		ReferenceNumber: t.ReferenceNumber,
		Type:            t.Type,
		Direction:       t.Direction,
		Source:          t.SourceLocationID,
		Destination:     t.DestinationLocationID,
		Parent:          t.ParentTransactionID,
		Lines:           t.Lines,
		TotalQuantity:   t.TotalQuantity,
		TotalValue:      t.TotalValue,
		Warnings:        warnings,
	})
	if err != nil {
		return err
	}
	entry.ID = id.New()
	entry.CreatedAt = t.CreatedAt
	if err := e.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

type auditPayload struct {
	ReferenceNumber string            `json:"referenceNumber"`
	Type            journal.Type      `json:"transactionType"`
	Direction       journal.Direction `json:"direction"`
	Source          *id.ID            `json:"sourceLocationId,omitempty"`
	Destination     *id.ID            `json:"destinationLocationId,omitempty"`
	Parent          *id.ID            `json:"parentTransactionId,omitempty"`
	Lines           []journal.Line    `json:"lines"`
	TotalQuantity   int64             `json:"totalQuantity"`
	TotalValue      types.Money       `json:"totalValue"`
	Warnings        []Warning         `json:"warnings,omitempty"`
}
