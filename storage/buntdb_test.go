package storage

import (
	"context"
	"testing"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDrawing(id, symbol string, interval core.Interval, updatedAt time.Time) *core.Annotation {
	points := [2]core.Point{
		{Time: 1600000020, Price: 100},
		{Time: 1600000320, Price: 105},
	}
	return &core.Annotation{
		ID:           id,
		Symbol:       symbol,
		Interval:     interval,
		Kind:         core.KindLine,
		Points:       points,
		Color:        "#2962ff",
		LineWidth:    2,
		BasePoints:   points,
		BaseInterval: interval,
		CreatedAt:    updatedAt,
		UpdatedAt:    updatedAt,
	}
}

func newTestStorage(t *testing.T) core.DrawingStorage {
	t.Helper()

	s, err := NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuntStorage_SaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	in := testDrawing("d1", "BTCUSDT", core.Interval1m, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.SaveDrawing(ctx, in))

	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, in.ID, out[0].ID)
	assert.Equal(t, in.Kind, out[0].Kind)
	assert.Equal(t, in.Points, out[0].Points)
	assert.Equal(t, in.BasePoints, out[0].BasePoints)
	assert.Equal(t, in.BaseInterval, out[0].BaseInterval)
}

func TestBuntStorage_SaveReplacesExisting(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a := testDrawing("d1", "BTCUSDT", core.Interval1m, time.Now().UTC())
	require.NoError(t, s.SaveDrawing(ctx, a))

	a.Color = "#ff0000"
	require.NoError(t, s.SaveDrawing(ctx, a))

	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "#ff0000", out[0].Color)
}

func TestBuntStorage_ScopesBySymbolAndInterval(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d1", "BTCUSDT", core.Interval1m, now)))
	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d2", "BTCUSDT", core.Interval1h, now)))
	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d3", "ETHUSDT", core.Interval1m, now)))

	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "d1", out[0].ID)

	out, err = s.Drawings(ctx, "SOLUSDT", core.Interval1m)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuntStorage_DrawingsOrderedByUpdate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveDrawing(ctx, testDrawing("newer", "BTCUSDT", core.Interval1m, base.Add(time.Hour))))
	require.NoError(t, s.SaveDrawing(ctx, testDrawing("older", "BTCUSDT", core.Interval1m, base)))

	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "older", out[0].ID)
	assert.Equal(t, "newer", out[1].ID)
}

func TestBuntStorage_DeleteDrawing(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d1", "BTCUSDT", core.Interval1m, time.Now().UTC())))
	require.NoError(t, s.DeleteDrawing(ctx, "d1"))

	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	assert.Empty(t, out)

	err = s.DeleteDrawing(ctx, "d1")
	assert.ErrorIs(t, err, core.ErrDrawingNotFound)
}

func TestBuntStorage_DeleteAllDrawings(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d1", "BTCUSDT", core.Interval1m, now)))
	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d2", "BTCUSDT", core.Interval1m, now)))
	require.NoError(t, s.SaveDrawing(ctx, testDrawing("d3", "BTCUSDT", core.Interval1h, now)))

	deleted, err := s.DeleteAllDrawings(ctx, "BTCUSDT", core.Interval1m)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Other scopes are untouched
	out, err := s.Drawings(ctx, "BTCUSDT", core.Interval1h)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestBuntStorage_RejectsEmptyID(t *testing.T) {
	s := newTestStorage(t)

	a := testDrawing("", "BTCUSDT", core.Interval1m, time.Now().UTC())
	assert.Error(t, s.SaveDrawing(context.Background(), a))
}
