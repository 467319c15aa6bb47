package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/stockreport"
)

func newTestCache(t *testing.T) (*LiveStock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLiveStock(client, time.Minute), mr
}

func sampleRows() []stockreport.Row {
	return []stockreport.Row{{
		ProductID:   id.New(),
		ProductName: "14.2kg Domestic",
		Category:    entity.CategoryCylinder,
		Condition:   stockreport.ConditionFilled,
		StockField:  entity.FieldFilled,
		Quantity:    120,
	}}
}

func TestLiveStock_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	agency := id.New()

	_, ok, err := c.Load(ctx, agency)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := sampleRows()
	require.NoError(t, c.Store(ctx, agency, rows))

	got, ok, err := c.Load(ctx, agency)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rows, got)
}

func TestLiveStock_InvalidateAgency(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	agency, other := id.New(), id.New()

	require.NoError(t, c.Store(ctx, agency, sampleRows()))
	require.NoError(t, c.Store(ctx, other, sampleRows()))

	require.NoError(t, c.InvalidateAgency(ctx, agency))

	_, ok, err := c.Load(ctx, agency)
	require.NoError(t, err)
	assert.False(t, ok, "bumped version hides the old entry")

	_, ok, err = c.Load(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok, "other agencies keep their entries")

	ver, err := mr.Get(versionKey(agency))
	require.NoError(t, err)
	assert.Equal(t, "2", ver)
}

func TestLiveStock_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	agency := id.New()

	require.NoError(t, c.Store(ctx, agency, sampleRows()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Load(ctx, agency)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLiveStock_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewLiveStock(client, time.Minute)
	mr.Close()

	_, _, err = c.Load(context.Background(), id.New())
	assert.Error(t, err)
	assert.Error(t, c.InvalidateAgency(context.Background(), id.New()))
}
