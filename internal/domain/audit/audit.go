// Package audit defines the audit log contract for stock operations.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lpgstock/internal/core/id"
)

// Action names an audited operation.
type Action string

const (
	ActionMovementExecuted   Action = "movement.executed"
	ActionMovementReversed   Action = "movement.reversed"
	ActionSettlementRecorded Action = "settlement.recorded"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID           `json:"id"`
	AgencyID   id.ID           `json:"agencyId"`
	EntityType string          `json:"entityType"`
	EntityID   id.ID           `json:"entityId"`
	Action     Action          `json:"action"`
	UserID     id.ID           `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Recorder appends audit entries. Record runs inside the caller's
// transaction so the audit row commits or aborts with the change it describes.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NewEntry marshals payload into an entry.
func NewEntry(agencyID id.ID, entityType string, entityID id.ID, action Action, userID id.ID, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return Entry{
		AgencyID:   agencyID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     userID,
		Payload:    raw,
	}, nil
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
