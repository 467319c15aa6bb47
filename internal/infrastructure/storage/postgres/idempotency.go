package postgres

import (
	"context"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
)

// IdempotencyStatus represents the state of an idempotent request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// A pending key untouched for this long belongs to a crashed request.
const staleAfter = time.Minute

// IdempotencyRequest identifies one logical mutating request.
type IdempotencyRequest struct {
	Key         string
	AgencyID    id.ID
	UserID      id.ID
	Operation   string
	RequestHash string
}

// IdempotencyReplay is a stored response to send back instead of re-running
// the request.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps request keys so a retried movement or settlement
// replays the first response instead of moving stock twice.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates the store. Keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type idempotencyRecord struct {
	AgencyID    id.ID             `db:"agency_id"`
	UserID      *id.ID            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

// Acquire claims the key. It returns (nil, nil) when the caller should run
// the request, or the stored response when the request already finished.
// A key reused for a different request, or one still in flight, is a conflict.
func (s *IdempotencyStore) Acquire(ctx context.Context, req IdempotencyRequest) (*IdempotencyReplay, error) {
	now := s.now()
	q := s.txManager.GetQuerier(ctx)

	var userID *id.ID
	if !id.IsNil(req.UserID) {
		userID = id.Ptr(req.UserID)
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, agency_id, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		req.Key, req.AgencyID, userID, req.Operation, string(IdempotencyStatusPending), req.RequestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, MapError("acquire idempotency key", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var rec idempotencyRecord
	err = q.QueryRow(ctx, `
		SELECT agency_id, user_id, operation, status, request_hash, response,
		       response_status, response_content_type, updated_at
		FROM sys_idempotency WHERE idempotency_key = $1`, req.Key).Scan(
		&rec.AgencyID, &rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash, &rec.Response,
		&rec.StatusCode, &rec.ContentType, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, MapError("read idempotency key", err)
	}

	if rec.AgencyID != req.AgencyID || !id.Equal(rec.UserID, userID) ||
		rec.Operation != req.Operation || rec.RequestHash != req.RequestHash {
		return nil, apperror.NewConflict("idempotency key was already used for a different request").
			WithDetail("idempotency_key", req.Key)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return &IdempotencyReplay{
			StatusCode:  replayStatus(rec.StatusCode),
			ContentType: replayContentType(rec.ContentType),
			Body:        rec.Response,
		}, nil
	}

	if now.Sub(rec.UpdatedAt) <= staleAfter {
		return nil, apperror.NewConflict("a request with this idempotency key is in progress").
			WithDetail("idempotency_key", req.Key)
	}

	tag, err = q.Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
		now, req.Key, string(IdempotencyStatusPending), rec.UpdatedAt)
	if err != nil {
		return nil, MapError("reclaim idempotency key", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewConflict("a request with this idempotency key is in progress").
			WithDetail("idempotency_key", req.Key)
	}
	return nil, nil
}

// Complete stores the response of a request that succeeded.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, body)
}

// Fail stores the response of a request that was rejected.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, IdempotencyStatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		string(status), body, statusCode, contentType, s.now(), key)
	if err != nil {
		return MapError("finish idempotency key", err)
	}
	return nil
}

// CleanupExpired removes expired keys and returns how many were deleted.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, MapError("cleanup idempotency keys", err)
	}
	return tag.RowsAffected(), nil
}

func replayStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

func replayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
