package draw

import (
	"math"
	"testing"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBase is a 1m-aligned unix timestamp used by all fixtures.
const testBase int64 = 1600000020

// newTestSeries builds a 1m series of n candles with constant OHLC values
// (open 100, high 110, low 90, close 105) starting at testBase.
func newTestSeries(n int) *core.CandleSeries {
	series := core.NewCandleSeries(core.Interval1m)
	for i := 0; i < n; i++ {
		series.Append(core.Candle{
			Pair:     "BTCUSDT",
			Time:     time.Unix(testBase+int64(i)*60, 0).UTC(),
			Open:     100,
			High:     110,
			Low:      90,
			Close:    105,
			Volume:   10,
			Complete: true,
		})
	}
	return series
}

func newTestViewport(n int) (*Viewport, *core.CandleSeries) {
	series := newTestSeries(n)
	return NewViewport(series, 800, 400), series
}

func newTestMapper(n int) (*Mapper, *Viewport, *core.CandleSeries) {
	vp, series := newTestViewport(n)
	return NewMapper(vp, series, vp.Width), vp, series
}

func TestMapper_RoundTripInsideVisibleDomain(t *testing.T) {
	m, vp, series := newTestMapper(200)

	last, ok := series.Last()
	require.True(t, ok)

	p := core.Point{Time: last.Time.Unix() - 10*60, Price: 101.5}
	sp, ok := m.ToScreen(p)
	require.True(t, ok)

	back, ok := m.ToSemantic(sp.X, sp.Y)
	require.True(t, ok)

	assert.LessOrEqual(t, absInt64(back.Time-p.Time), int64(60))
	assert.InDelta(t, p.Price, back.Price, (vp.priceMax-vp.priceMin)/float64(vp.Height()))
}

func TestMapper_ExtrapolatesBeyondLastCandle(t *testing.T) {
	m, vp, series := newTestMapper(200)

	last, ok := series.Last()
	require.True(t, ok)
	lastTime := last.Time.Unix()

	refX, ok := vp.TimeToX(lastTime)
	require.True(t, ok)

	const bars = 12
	sp, ok := m.ToScreen(core.Point{Time: lastTime + bars*60, Price: 100})
	require.True(t, ok)
	assert.InDelta(t, refX+bars*vp.BarSpacing(), sp.X, 1e-9)
}

func TestMapper_SemanticFromRightMargin(t *testing.T) {
	m, vp, series := newTestMapper(200)

	last, ok := series.Last()
	require.True(t, ok)
	lastTime := last.Time.Unix()

	xLast, ok := vp.TimeToX(lastTime)
	require.True(t, ok)

	const bars = 9
	p, ok := m.ToSemantic(xLast+bars*vp.BarSpacing(), 200)
	require.True(t, ok)

	// The leftward scan lands within a bar of the exact extrapolation
	assert.LessOrEqual(t, absInt64(p.Time-(lastTime+bars*60)), int64(60))
	assert.Greater(t, p.Time, lastTime)
}

func TestMapper_FailsWithoutCandles(t *testing.T) {
	series := core.NewCandleSeries(core.Interval1m)
	vp := NewViewport(series, 800, 400)
	m := NewMapper(vp, series, vp.Width)

	_, ok := m.ToScreen(core.Point{Time: testBase, Price: 100})
	assert.False(t, ok)

	_, ok = m.ToSemantic(100, 100)
	assert.False(t, ok)
}

// stubSurface gives tests full control over resolution outcomes.
type stubSurface struct {
	timeToX  func(int64) (float64, bool)
	xToTime  func(float64) (int64, bool)
	priceToY func(float64) (float64, bool)
	yToPrice func(float64) (float64, bool)
	spacing  float64
}

func (s *stubSurface) TimeToX(t int64) (float64, bool) {
	if s.timeToX == nil {
		return float64(t), true
	}
	return s.timeToX(t)
}

func (s *stubSurface) XToTime(x float64) (int64, bool) {
	if s.xToTime == nil {
		return int64(x), true
	}
	return s.xToTime(x)
}

func (s *stubSurface) PriceToY(p float64) (float64, bool) {
	if s.priceToY == nil {
		return p, true
	}
	return s.priceToY(p)
}

func (s *stubSurface) YToPrice(y float64) (float64, bool) {
	if s.yToPrice == nil {
		return y, true
	}
	return s.yToPrice(y)
}

func (s *stubSurface) BarSpacing() float64      { return s.spacing }
func (s *stubSurface) VisibleRange() (int, int) { return 0, 0 }

func TestMapper_ZeroBarSpacingUsesSafeDefault(t *testing.T) {
	series := newTestSeries(5)
	last, _ := series.Last()
	lastTime := last.Time.Unix()

	surface := &stubSurface{
		spacing: 0,
		timeToX: func(ts int64) (float64, bool) {
			if ts == lastTime {
				return 500, true
			}
			return 0, false
		},
	}

	m := NewMapper(surface, series, func() int { return 800 })

	sp, ok := m.ToScreen(core.Point{Time: lastTime + 2*60, Price: 50})
	require.True(t, ok)
	assert.InDelta(t, 500+2*defaultBarSpacing, sp.X, 1e-9)
}

func TestMapper_UnresolvablePriceFailsConversion(t *testing.T) {
	series := newTestSeries(5)
	surface := &stubSurface{
		spacing:  6,
		priceToY: func(float64) (float64, bool) { return 0, false },
	}

	m := NewMapper(surface, series, func() int { return 800 })
	_, ok := m.ToScreen(core.Point{Time: testBase, Price: 100})
	assert.False(t, ok)
}

func TestMapper_FarPointerResolvesFromRightEdge(t *testing.T) {
	m, vp, series := newTestMapper(50)

	last, ok := series.Last()
	require.True(t, ok)
	lastTime := last.Time.Unix()

	// A pointer x far beyond the canvas still resolves: the scan starts at
	// the right edge instead of walking down from the raw coordinate.
	p, ok := m.ToSemantic(1e12, 200)
	require.True(t, ok)
	assert.Greater(t, p.Time, lastTime)

	xLast, ok := vp.TimeToX(lastTime)
	require.True(t, ok)
	wantBars := (1e12 - xLast) / vp.BarSpacing()
	assert.InDelta(t, float64(lastTime)+wantBars*60, float64(p.Time), 60)
}

func TestMapper_NonFinitePointerFails(t *testing.T) {
	m, _, _ := newTestMapper(50)

	for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		_, ok := m.ToSemantic(v, 200)
		assert.False(t, ok)

		_, ok = m.ToSemantic(400, v)
		assert.False(t, ok)
	}
}

func TestMapper_ScanFallsBackToLastCandleTime(t *testing.T) {
	series := newTestSeries(5)
	last, _ := series.Last()

	// Nothing on the time axis resolves in either direction
	surface := &stubSurface{
		spacing: 6,
		timeToX: func(int64) (float64, bool) { return 0, false },
		xToTime: func(float64) (int64, bool) { return 0, false },
	}

	m := NewMapper(surface, series, func() int { return 10 })

	p, ok := m.ToSemantic(400, 120)
	require.True(t, ok)
	assert.Equal(t, last.Time.Unix(), p.Time)
	assert.InDelta(t, 120, p.Price, 1e-9)
}
