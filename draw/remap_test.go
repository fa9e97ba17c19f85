package draw

import (
	"testing"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineAnnotation(interval core.Interval, t1, t2 int64) core.Annotation {
	points := [2]core.Point{
		{Time: t1, Price: 100},
		{Time: t2, Price: 110},
	}
	return core.Annotation{
		ID:           "a1",
		Symbol:       "BTCUSDT",
		Interval:     interval,
		Kind:         core.KindLine,
		Points:       points,
		BasePoints:   points,
		BaseInterval: interval,
	}
}

func TestRemap_SameIntervalIsIdentity(t *testing.T) {
	a := lineAnnotation(core.Interval1m, 3600, 3720)

	out := Remap(a, core.Interval1m)
	assert.Equal(t, a, out)
}

func TestRemap_CoarseningFloorsBothHandles(t *testing.T) {
	// 1m -> 1h: a point at 3723 belongs to the hour bucket starting at 3600
	a := lineAnnotation(core.Interval1m, 3723, 3723)

	out := Remap(a, core.Interval1h)
	assert.Equal(t, int64(3600), out.Points[0].Time)
	assert.Equal(t, int64(3600), out.Points[1].Time)
	assert.Equal(t, core.Interval1h, out.Interval)

	// The authored base survives untouched
	assert.Equal(t, a.BasePoints, out.BasePoints)
	assert.Equal(t, core.Interval1m, out.BaseInterval)
}

func TestRemap_RefiningSpreadsHandlesAcrossBucket(t *testing.T) {
	// 1h -> 1m: start maps to the bucket start, end to the last minute open
	a := lineAnnotation(core.Interval1h, 3600, 3600)

	out := Remap(a, core.Interval1m)
	assert.Equal(t, int64(3600), out.Points[0].Time)
	assert.Equal(t, int64(3600+(3600-60)), out.Points[1].Time)
	assert.Equal(t, int64(7140), out.Points[1].Time)
}

func TestRemap_PathIndependent(t *testing.T) {
	a := lineAnnotation(core.Interval5m, 3900, 7500)

	direct := Remap(a, core.Interval1h)
	viaFine := Remap(Remap(a, core.Interval1m), core.Interval1h)

	assert.Equal(t, direct.Points, viaFine.Points)
	assert.Equal(t, direct.BasePoints, viaFine.BasePoints)
	assert.Equal(t, direct.BaseInterval, viaFine.BaseInterval)
}

func TestRemap_RoundTripBackToBaseInterval(t *testing.T) {
	a := lineAnnotation(core.Interval5m, 3900, 7500)

	back := Remap(Remap(a, core.Interval1h), core.Interval5m)
	require.Equal(t, a.Points, back.Points)
}

func TestRemap_UnparsableIntervalKeepsBasePoints(t *testing.T) {
	a := lineAnnotation(core.Interval1m, 3600, 3720)
	a.BaseInterval = core.Interval("bogus")

	out := Remap(a, core.Interval1h)
	assert.Equal(t, a.BasePoints, out.Points)
}
