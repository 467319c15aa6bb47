package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/settlement"
	"lpgstock/internal/domain/stockreport"
	v1 "lpgstock/internal/infrastructure/http/v1"
	"lpgstock/internal/infrastructure/http/v1/handlers"
	"lpgstock/internal/infrastructure/http/v1/middleware"
	"lpgstock/internal/infrastructure/storage/postgres"
	"lpgstock/internal/testing/memstore"
	"lpgstock/pkg/logger"
)

type apiFixture struct {
	store   *memstore.Store
	router  http.Handler
	agency  id.ID
	user    id.ID
	godown  *location.Location
	product catalog.AgencyProduct
}

func newAPI(t *testing.T, idem middleware.IdempotencyStore, checks ...handlers.HealthCheck) *apiFixture {
	t.Helper()
	store := memstore.New()
	engine := movement.NewEngine(
		store.TxManager(), store.Locations(), store.Ledger(), store.Journal(),
		store.Catalog(), store.Numerator(),
	)
	locations := location.NewService(store.Locations(), store.TxManager())
	ledgerService := ledger.NewService(store.Ledger(), store.Locations(), store.Catalog())

	f := &apiFixture{store: store, agency: id.New(), user: id.New()}
	var err error
	f.godown, err = locations.DefaultGodown(context.Background(), f.agency)
	require.NoError(t, err)
	f.product = catalog.AgencyProduct{
		ID: id.New(), AgencyID: f.agency, Name: "14.2kg Domestic", Category: entity.CategoryCylinder, IsActive: true,
	}
	store.PutProduct(f.product)

	f.router = v1.NewRouter(v1.RouterConfig{
		Logger:       logger.Nop(),
		HealthChecks: checks,
		Idempotency:  idem,
		Engine:       engine,
		Journal:      store.Journal(),
		Locations:    locations,
		Ledger:       ledgerService,
		Settlements:  settlement.NewService(store.TxManager(), engine, store.Locations(), store.Journal(), store.Audit()),
		Reports:      stockreport.NewService(store.Catalog(), store.Ledger(), store.Journal(), store.Locations(), nil),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAgencyID, f.agency.String())
	req.Header.Set(middleware.HeaderUserID, f.user.String())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) purchase(qty int64) map[string]any {
	return map[string]any{
		"destinationLocationId": f.godown.ID.String(),
		"transactionType":       "PURCHASE",
		"lines": []map[string]any{{
			"productId": f.product.ID.String(), "stockField": "filled", "quantity": qty, "unitPrice": "50",
		}},
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestMovements_PurchaseThroughHTTP(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/movements", f.purchase(40))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		Transaction struct {
			ID              string `json:"id"`
			ReferenceNumber string `json:"referenceNumber"`
			TotalQuantity   int64  `json:"totalQuantity"`
		} `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Transaction.ReferenceNumber)
	assert.EqualValues(t, 40, res.Transaction.TotalQuantity)
	assert.EqualValues(t, 40, f.store.Balance(f.agency, f.product.ID, f.godown.ID).Filled)

	w = f.do(t, http.MethodGet, "/api/v1/transactions/"+res.Transaction.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/locations/"+f.godown.ID.String()+"/stock", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/stock/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec struct {
		Consistent bool `json:"consistent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Consistent)
}

func TestMovements_ErrorMapping(t *testing.T) {
	f := newAPI(t, nil)
	showroom := f.do(t, http.MethodPost, "/api/v1/locations", map[string]any{"kind": "SHOWROOM", "name": "Main"})
	require.Equal(t, http.StatusCreated, showroom.Code, showroom.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(showroom.Body.Bytes(), &created))

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "missing lines",
			body:   map[string]any{"destinationLocationId": f.godown.ID.String(), "transactionType": "PURCHASE"},
			status: http.StatusBadRequest,
			code:   apperror.CodeValidation,
		},
		{
			name: "unknown type",
			body: map[string]any{
				"destinationLocationId": f.godown.ID.String(),
				"transactionType":       "GIFT",
				"lines":                 []map[string]any{{"productId": f.product.ID.String(), "stockField": "filled", "quantity": 1}},
			},
			status: http.StatusBadRequest,
			code:   apperror.CodeValidation,
		},
		{
			name: "insufficient stock",
			body: map[string]any{
				"sourceLocationId":      created.ID,
				"destinationLocationId": f.godown.ID.String(),
				"transactionType":       "GODOWN_TRANSFER",
				"lines":                 []map[string]any{{"productId": f.product.ID.String(), "stockField": "filled", "quantity": 5}},
			},
			status: http.StatusUnprocessableEntity,
			code:   apperror.CodeInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/movements", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
	assert.Empty(t, f.store.Transactions())
}

func TestCallerHeadersRequired(t *testing.T) {
	f := newAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/live", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, errorCode(t, w))
}

func TestVehicleIssueAndSettleThroughHTTP(t *testing.T) {
	f := newAPI(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/movements", f.purchase(20)).Code)

	vehicleID := id.New().String()
	w := f.do(t, http.MethodPost, "/api/v1/vehicles/"+vehicleID+"/location",
		map[string]any{"registrationNumber": "KA01AB1234", "vehicleName": "Tata Ace"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/vehicles/"+vehicleID+"/issues", map[string]any{
		"godownId": f.godown.ID.String(),
		"lines": []map[string]any{{
			"productId": f.product.ID.String(), "stockField": "filled", "quantity": 10, "unitPrice": "50",
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	w = f.do(t, http.MethodPost, "/api/v1/issues/"+issued.Transaction.ID+"/settle", map[string]any{
		"returns":    []map[string]any{{"productId": f.product.ID.String(), "filledReturned": 2, "emptyReturned": 8}},
		"cashActual": "400",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/issues/"+issued.Transaction.ID+"/settle", map[string]any{"cashActual": "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeAlreadySettled, errorCode(t, w))

	w = f.do(t, http.MethodGet, "/api/v1/issues/"+issued.Transaction.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidPathID(t *testing.T) {
	f := newAPI(t, nil)
	w := f.do(t, http.MethodGet, "/api/v1/locations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type memIdempotency struct {
	mu       sync.Mutex
	done     map[string]*postgres.IdempotencyReplay
	acquired int
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{done: make(map[string]*postgres.IdempotencyReplay)}
}

func (m *memIdempotency) Acquire(_ context.Context, req postgres.IdempotencyRequest) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquired++
	return m.done[req.Key], nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: body}
	return nil
}

func (m *memIdempotency) Fail(ctx context.Context, key string, status int, contentType string, body []byte) error {
	return m.Complete(ctx, key, status, contentType, body)
}

func TestIdempotentRetryReplaysFirstResponse(t *testing.T) {
	idem := newMemIdempotency()
	f := newAPI(t, idem)

	first := f.do(t, http.MethodPost, "/api/v1/movements", f.purchase(10), middleware.HeaderIdempotencyKey, "purchase-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := f.do(t, http.MethodPost, "/api/v1/movements", f.purchase(10), middleware.HeaderIdempotencyKey, "purchase-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.Len(t, f.store.Transactions(), 1)
	assert.EqualValues(t, 10, f.store.Balance(f.agency, f.product.ID, f.godown.ID).Filled)
	assert.Equal(t, 2, idem.acquired)
}

func TestIdempotencyRecordsErrorResponses(t *testing.T) {
	idem := newMemIdempotency()
	f := newAPI(t, idem)

	body := map[string]any{"destinationLocationId": f.godown.ID.String(), "transactionType": "PURCHASE"}
	first := f.do(t, http.MethodPost, "/api/v1/movements", body, middleware.HeaderIdempotencyKey, "bad-1")
	require.Equal(t, http.StatusBadRequest, first.Code)

	stored := idem.done["bad-1"]
	require.NotNil(t, stored)
	assert.Equal(t, http.StatusBadRequest, stored.StatusCode)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name   string
		checks []handlers.HealthCheck
		status int
		want   string
	}{
		{
			name:   "all healthy",
			checks: []handlers.HealthCheck{{Name: "database", Target: pinger{}}},
			status: http.StatusOK,
			want:   "ok",
		},
		{
			name: "cache down degrades",
			checks: []handlers.HealthCheck{
				{Name: "database", Target: pinger{}},
				{Name: "redis", Target: pinger{err: errors.New("refused")}, Optional: true},
			},
			status: http.StatusOK,
			want:   "degraded",
		},
		{
			name:   "database down fails",
			checks: []handlers.HealthCheck{{Name: "database", Target: pinger{err: errors.New("refused")}}},
			status: http.StatusServiceUnavailable,
			want:   "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPI(t, nil, tt.checks...)
			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var body struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
		})
	}
}
