package draw

import (
	"testing"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewport_LastCandleAnchorsLeftOfRightEdge(t *testing.T) {
	vp, series := newTestViewport(200)

	last, ok := series.Last()
	require.True(t, ok)

	x, ok := vp.TimeToX(last.Time.Unix())
	require.True(t, ok)
	assert.InDelta(t, 800-5*vp.BarSpacing(), x, 1e-9)
}

func TestViewport_TimeOutsideWindowDoesNotResolve(t *testing.T) {
	vp, series := newTestViewport(10)

	last, _ := series.Last()
	_, ok := vp.TimeToX(last.Time.Unix() + 60)
	assert.False(t, ok)

	first := series.Candles()[0]
	_, ok = vp.TimeToX(first.Time.Unix() - 60)
	assert.False(t, ok)
}

func TestViewport_XToTimeRoundsToNearestColumn(t *testing.T) {
	vp, series := newTestViewport(200)

	last, _ := series.Last()
	xLast, _ := vp.TimeToX(last.Time.Unix())

	ts, ok := vp.XToTime(xLast + vp.BarSpacing()/4)
	require.True(t, ok)
	assert.Equal(t, last.Time.Unix(), ts)

	ts, ok = vp.XToTime(xLast - vp.BarSpacing())
	require.True(t, ok)
	assert.Equal(t, last.Time.Unix()-60, ts)
}

func TestViewport_XToTimeFailsPastTheData(t *testing.T) {
	vp, series := newTestViewport(10)

	last, _ := series.Last()
	xLast, _ := vp.TimeToX(last.Time.Unix())

	_, ok := vp.XToTime(xLast + vp.BarSpacing())
	assert.False(t, ok)
}

func TestViewport_PriceAxisRoundTrips(t *testing.T) {
	vp, _ := newTestViewport(50)

	y, ok := vp.PriceToY(100)
	require.True(t, ok)

	p, ok := vp.YToPrice(y)
	require.True(t, ok)
	assert.InDelta(t, 100, p, 1e-9)
}

func TestViewport_PriceScaleFitsCandlesWithMargin(t *testing.T) {
	vp, _ := newTestViewport(50)

	// Fixture candles span 90..110, padded by 5%
	assert.InDelta(t, 89, vp.priceMin, 1e-9)
	assert.InDelta(t, 111, vp.priceMax, 1e-9)
}

func TestViewport_EmptySeriesResolvesNothing(t *testing.T) {
	series := core.NewCandleSeries(core.Interval1m)
	vp := NewViewport(series, 800, 400)

	_, ok := vp.TimeToX(testBase)
	assert.False(t, ok)
	_, ok = vp.XToTime(400)
	assert.False(t, ok)
	_, ok = vp.PriceToY(100)
	assert.False(t, ok)
	_, ok = vp.YToPrice(100)
	assert.False(t, ok)
}

func TestViewport_ZoomClampsBarSpacing(t *testing.T) {
	vp, _ := newTestViewport(50)

	vp.Zoom(1000)
	assert.Equal(t, maxBarSpacing, vp.BarSpacing())

	vp.Zoom(0.0001)
	assert.Equal(t, minBarSpacing, vp.BarSpacing())

	vp.Zoom(-1)
	assert.Equal(t, minBarSpacing, vp.BarSpacing())
}

func TestViewport_PanShiftsTheWindow(t *testing.T) {
	vp, series := newTestViewport(200)

	last, _ := series.Last()
	before, _ := vp.TimeToX(last.Time.Unix())

	vp.Pan(-2 * vp.BarSpacing())
	after, _ := vp.TimeToX(last.Time.Unix())
	assert.InDelta(t, before+2*vp.BarSpacing(), after, 1e-9)
}

func TestViewport_VisibleRangeCoversTheCanvas(t *testing.T) {
	vp, series := newTestViewport(200)

	from, to := vp.VisibleRange()
	assert.Equal(t, series.Len()-1, to)

	// 800px at 6px/bar with 5 bars of right margin
	assert.Equal(t, 199-(800/6-5)+1, from)
	assert.GreaterOrEqual(t, from, 0)
}

func TestViewport_SetPriceRangeOverridesAutoFit(t *testing.T) {
	vp, _ := newTestViewport(50)

	vp.SetPriceRange(0, 200)
	y, ok := vp.PriceToY(100)
	require.True(t, ok)
	assert.InDelta(t, 200, y, 1e-9)
}
