package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "lpgstock/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier keeps one counter per sequence key, like sys_sequences.
type mockQuerier struct {
	mu       sync.Mutex
	counters map[string]int64
	keys     []string
	err      error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{counters: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	m.counters[key]++
	m.keys = append(m.keys, key)
	return &mockRow{val: m.counters[key]}
}

var period = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestGetNextNumber_Sequential(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("PUR")

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PUR-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "PUR-2026-00002", num)
}

func TestGetNextNumber_SharedScope(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	issue, err := svc.GetNextNumber(ctx, core.ScopedConfig("agency-1", "VEH"), period)
	require.NoError(t, err)
	ret, err := svc.GetNextNumber(ctx, core.ScopedConfig("agency-1", "VEH"), period)
	require.NoError(t, err)
	purchase, err := svc.GetNextNumber(ctx, core.ScopedConfig("agency-1", "PUR"), period)
	require.NoError(t, err)
	other, err := svc.GetNextNumber(ctx, core.ScopedConfig("agency-2", "PUR"), period)
	require.NoError(t, err)

	assert.Equal(t, "VEH-2026-00001", issue)
	assert.Equal(t, "VEH-2026-00002", ret)
	assert.Equal(t, "PUR-2026-00003", purchase)
	assert.Equal(t, "PUR-2026-00001", other)
	assert.Equal(t, []string{"agency-1_2026", "agency-1_2026", "agency-1_2026", "agency-2_2026"}, q.keys)
}

func TestGetNextNumber_Concurrent(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	cfg := core.ScopedConfig("agency-1", "CUS")

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(context.Background(), cfg, period)
			assert.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for num := range results {
		assert.False(t, seen[num], "duplicate %s", num)
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("CUS-2026-%05d", i)])
	}
}

func TestGetNextNumber_Errors(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("deadlock detected")
	svc := New(q)

	_, err := svc.GetNextNumber(context.Background(), core.DefaultConfig("ADJ"), period)
	assert.ErrorIs(t, err, q.err)

	_, err = svc.GetNextNumber(context.Background(), core.DefaultConfig(""), period)
	assert.Error(t, err)

	var nilSvc *Service
	_, err = nilSvc.GetNextNumber(context.Background(), core.DefaultConfig("ADJ"), period)
	assert.Error(t, err)
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.Config
		want string
	}{
		{"year reset", core.DefaultConfig("PUR"), "PUR_2026"},
		{"scope wins over prefix", core.ScopedConfig("a1", "PUR"), "a1_2026"},
		{"month reset", core.Config{Prefix: "X", ResetPeriod: core.ResetMonth}, "X_2026_03"},
		{"never reset", core.Config{Prefix: "X", Scope: "a1", ResetPeriod: core.ResetNever}, "a1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildKey(tt.cfg, period))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "EMP-2026-00042", FormatNumber(core.DefaultConfig("EMP"), period, 42))
	assert.Equal(t, "EMP-042", FormatNumber(core.Config{Prefix: "EMP", PadWidth: 3}, period, 42))
	assert.Equal(t, "EMP-2026-123456", FormatNumber(core.DefaultConfig("EMP"), period, 123456))
}
