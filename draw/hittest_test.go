package draw

import (
	"testing"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityMapper maps time directly to x and price directly to y, which
// keeps the geometry in these tests readable.
func identityMapper() *Mapper {
	surface := &stubSurface{spacing: 6}
	return NewMapper(surface, core.NewCandleSeries(core.Interval1m), func() int { return 800 })
}

func storeWith(annotations ...*core.Annotation) *Store {
	s := NewStore()
	for _, a := range annotations {
		s.Add(a)
	}
	return s
}

func screenLine(id string, x1, y1, x2, y2 float64) *core.Annotation {
	return &core.Annotation{
		ID:   id,
		Kind: core.KindLine,
		Points: [2]core.Point{
			{Time: int64(x1), Price: y1},
			{Time: int64(x2), Price: y2},
		},
	}
}

func screenRect(id string, x1, y1, x2, y2 float64) *core.Annotation {
	a := screenLine(id, x1, y1, x2, y2)
	a.Kind = core.KindRectangle
	return a
}

func TestHitTester_DirectHandleHit(t *testing.T) {
	h := NewHitTester(storeWith(screenLine("l1", 0, 0, 100, 0)), identityMapper())

	hit, ok := h.HitTestHandles(1, 1)
	require.True(t, ok)
	assert.Equal(t, "l1", hit.ID)
	assert.Equal(t, core.HandleStart, hit.Handle)

	hit, ok = h.HitTestHandles(99, 2)
	require.True(t, ok)
	assert.Equal(t, core.HandleEnd, hit.Handle)
}

func TestHitTester_SegmentHitPicksNearerEndpoint(t *testing.T) {
	h := NewHitTester(storeWith(screenLine("l1", 0, 0, 100, 0)), identityMapper())

	hit, ok := h.HitTestHandles(70, 2)
	require.True(t, ok)
	assert.Equal(t, "l1", hit.ID)
	assert.Equal(t, core.HandleEnd, hit.Handle)
}

func TestHitTester_ClosestCandidateWinsAcrossAnnotations(t *testing.T) {
	h := NewHitTester(storeWith(
		screenLine("far", 0, 0, 100, 0),
		screenLine("near", 0, 20, 100, 20),
	), identityMapper())

	hit, ok := h.HitTestHandles(2, 18)
	require.True(t, ok)
	assert.Equal(t, "near", hit.ID)
}

func TestHitTester_MissOutsideThreshold(t *testing.T) {
	h := NewHitTester(storeWith(screenLine("l1", 0, 0, 100, 0)), identityMapper())

	_, ok := h.HitTestHandles(50, handleThreshold+1)
	assert.False(t, ok)
}

func TestHitTester_BodyHitAtLineMidpoint(t *testing.T) {
	h := NewHitTester(storeWith(screenLine("l1", 0, 0, 100, 0)), identityMapper())

	id, ok := h.HitTestBody(50, 0)
	require.True(t, ok)
	assert.Equal(t, "l1", id)

	_, ok = h.HitTestBody(50, bodyThreshold+1)
	assert.False(t, ok)
}

func TestHitTester_RectangleBodyUsesExpandedBox(t *testing.T) {
	h := NewHitTester(storeWith(screenRect("r1", 0, 0, 40, 30)), identityMapper())

	id, ok := h.HitTestBody(20, 15)
	require.True(t, ok)
	assert.Equal(t, "r1", id)

	// Just inside the expanded border
	_, ok = h.HitTestBody(40+bodyThreshold-1, 15)
	assert.True(t, ok)

	// One pixel past the expanded border
	_, ok = h.HitTestBody(40+bodyThreshold+1, 15)
	assert.False(t, ok)
}

func TestHitTester_SkipsUnresolvableShapes(t *testing.T) {
	surface := &stubSurface{
		spacing:  6,
		priceToY: func(float64) (float64, bool) { return 0, false },
	}
	mapper := NewMapper(surface, core.NewCandleSeries(core.Interval1m), func() int { return 800 })
	h := NewHitTester(storeWith(screenLine("l1", 0, 0, 100, 0)), mapper)

	_, ok := h.HitTestHandles(0, 0)
	assert.False(t, ok)

	_, ok = h.HitTestBody(50, 0)
	assert.False(t, ok)
}

func TestPointSegmentDistance(t *testing.T) {
	a, b := ScreenPoint{X: 0, Y: 0}, ScreenPoint{X: 10, Y: 0}

	assert.InDelta(t, 5.0, pointSegmentDistance(5, 5, a, b), 1e-9)
	// Beyond the segment end the distance is to the endpoint
	assert.InDelta(t, 5.0, pointSegmentDistance(15, 0, a, b), 1e-9)
	// Degenerate segment collapses to point distance
	assert.InDelta(t, 5.0, pointSegmentDistance(3, 4, a, a), 1e-9)
}
