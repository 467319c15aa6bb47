package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/audit"
)

// CompressionAlgo specifies how a stored payload is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

var _ audit.Recorder = (*AuditLog)(nil)

// AuditLog stores audit entries in sys_audit. Payloads larger than the
// threshold are stored zstd-compressed.
type AuditLog struct {
	txManager *TxManager
	codec     *payloadCodec
	now       func() time.Time
}

// NewAuditLog creates the audit log. threshold is in bytes.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	codec, err := newPayloadCodec(threshold)
	if err != nil {
		return nil, err
	}
	return &AuditLog{
		txManager: txManager,
		codec:     codec,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record implements audit.Recorder. It writes through the caller's transaction.
func (l *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}

	plain, compressed, algo := l.codec.encode(entry.Payload)

	var userID *id.ID
	if !id.IsNil(entry.UserID) {
		userID = id.Ptr(entry.UserID)
	}

	_, err := l.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, agency_id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AgencyID, entry.EntityType, entry.EntityID, string(entry.Action), userID,
		plain, compressed, string(algo), entry.CreatedAt,
	)
	if err != nil {
		return MapError("insert audit entry", err)
	}
	return nil
}

// History returns the newest entries for one entity, decompressing payloads.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, agency_id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, MapError("query audit history", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			action     string
			userID     *id.ID
			plain      []byte
			compressed []byte
			algo       string
		)
		if err := rows.Scan(
			&e.ID, &e.AgencyID, &e.EntityType, &e.EntityID, &action, &userID,
			&plain, &compressed, &algo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		if userID != nil {
			e.UserID = *userID
		}
		if e.Payload, err = l.codec.decode(plain, compressed, CompressionAlgo(algo)); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// payloadCodec applies the size threshold and the zstd encoding.
// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
type payloadCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newPayloadCodec(threshold int) (*payloadCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &payloadCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

func (c *payloadCodec) encode(payload json.RawMessage) (plain, compressed []byte, algo CompressionAlgo) {
	if len(payload) == 0 {
		return nil, nil, CompressionNone
	}
	if len(payload) > c.threshold {
		return nil, c.encoder.EncodeAll(payload, nil), CompressionZstd
	}
	return payload, nil, CompressionNone
}

func (c *payloadCodec) decode(plain, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	switch algo {
	case CompressionZstd:
		out, err := c.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return out, nil
	case CompressionNone, "":
		return plain, nil
	}
	return nil, fmt.Errorf("unknown compression %q", algo)
}
