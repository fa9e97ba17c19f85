package draw

import (
	"math"

	"github.com/chartmark/chartmark/core"
)

const (
	minBarSpacing = 1.0
	maxBarSpacing = 50.0
	// priceMarginRatio pads the auto price scale above and below the
	// visible candle range.
	priceMarginRatio = 0.05
)

// Viewport is a concrete core.ChartSurface: a pixel model of a candle
// window with a linear price scale, pannable and zoomable along the time
// axis. Conversions fail to resolve exactly where the adapter contract
// expects them to: times outside the loaded window and any request while no
// candles are loaded.
type Viewport struct {
	series *core.CandleSeries

	width  int
	height int

	// spacing is pixels per bar; rightOffset is the bar count kept clear
	// right of the last candle.
	spacing     float64
	rightOffset float64

	priceMin float64
	priceMax float64
}

// NewViewport creates a viewport over a candle series with an auto-fitted
// price scale.
func NewViewport(series *core.CandleSeries, width, height int) *Viewport {
	v := &Viewport{
		series:      series,
		width:       width,
		height:      height,
		spacing:     defaultBarSpacing,
		rightOffset: 5,
	}

	v.FitPriceScale()
	return v
}

// Width returns the pixel width of the viewport.
func (v *Viewport) Width() int { return v.width }

// Height returns the pixel height of the viewport.
func (v *Viewport) Height() int { return v.height }

// Resize updates the pixel dimensions.
func (v *Viewport) Resize(width, height int) {
	v.width = width
	v.height = height
}

// SetSeries swaps the candle window and refits the price scale.
func (v *Viewport) SetSeries(series *core.CandleSeries) {
	v.series = series
	v.FitPriceScale()
}

// Pan shifts the time axis by a pixel delta. Positive deltas reveal the
// right margin.
func (v *Viewport) Pan(dxPixels float64) {
	v.rightOffset += dxPixels / v.BarSpacing()
}

// Zoom scales the bar spacing by the given factor, clamped to sane bounds.
func (v *Viewport) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	v.spacing = math.Min(maxBarSpacing, math.Max(minBarSpacing, v.spacing*factor))
}

// FitPriceScale recomputes the linear price scale from the visible candles.
func (v *Viewport) FitPriceScale() {
	from, to := v.VisibleRange()
	candles := v.series.Candles()
	if len(candles) == 0 || from > to {
		v.priceMin, v.priceMax = 0, 0
		return
	}

	low, high := math.MaxFloat64, -math.MaxFloat64
	for i := from; i <= to && i < len(candles); i++ {
		low = math.Min(low, candles[i].Low)
		high = math.Max(high, candles[i].High)
	}

	margin := (high - low) * priceMarginRatio
	if margin == 0 {
		margin = high * priceMarginRatio
	}

	v.priceMin = low - margin
	v.priceMax = high + margin
}

// SetPriceRange pins the price scale explicitly.
func (v *Viewport) SetPriceRange(min, max float64) {
	v.priceMin, v.priceMax = min, max
}

// BarSpacing implements core.ChartSurface.
func (v *Viewport) BarSpacing() float64 {
	if v.spacing <= 0 {
		return defaultBarSpacing
	}
	return v.spacing
}

// VisibleRange implements core.ChartSurface: the candle index range mapped
// onto the canvas.
func (v *Viewport) VisibleRange() (int, int) {
	n := v.series.Len()
	if n == 0 {
		return 0, -1
	}

	last := n - 1
	from := last - int((float64(v.width)/v.BarSpacing())-v.rightOffset) + 1
	to := last
	if v.rightOffset < 0 {
		// Panned past the last candle; part of the window sits off screen
		to = last + int(math.Floor(v.rightOffset))
	}

	return clampIndex(from, n), clampIndex(to, n)
}

// TimeToX implements core.ChartSurface. Only times inside the loaded window
// resolve; everything past the last candle is the extrapolation zone the
// mapper handles.
func (v *Viewport) TimeToX(t int64) (float64, bool) {
	idx, ok := v.indexOf(t)
	if !ok {
		return 0, false
	}
	return v.xForIndex(idx), true
}

// XToTime implements core.ChartSurface.
func (v *Viewport) XToTime(x float64) (int64, bool) {
	n := v.series.Len()
	if n == 0 {
		return 0, false
	}

	last := n - 1
	idx := last + int(math.Round((x-v.xForIndex(last))/v.BarSpacing()))
	if idx < 0 || idx >= n {
		return 0, false
	}

	return v.bucketOf(idx), true
}

// PriceToY implements core.ChartSurface.
func (v *Viewport) PriceToY(p float64) (float64, bool) {
	if !v.scaleValid() {
		return 0, false
	}
	return (v.priceMax - p) / (v.priceMax - v.priceMin) * float64(v.height), true
}

// YToPrice implements core.ChartSurface.
func (v *Viewport) YToPrice(y float64) (float64, bool) {
	if !v.scaleValid() {
		return 0, false
	}
	return v.priceMax - y/float64(v.height)*(v.priceMax-v.priceMin), true
}

func (v *Viewport) scaleValid() bool {
	return v.height > 0 && v.priceMax > v.priceMin
}

// xForIndex maps a candle index to its pixel column, anchoring the last
// candle rightOffset bars left of the right edge.
func (v *Viewport) xForIndex(idx int) float64 {
	last := v.series.Len() - 1
	return float64(v.width) - (v.rightOffset+float64(last-idx))*v.BarSpacing()
}

func (v *Viewport) indexOf(t int64) (int, bool) {
	n := v.series.Len()
	if n == 0 {
		return 0, false
	}

	secs := v.series.Interval().Seconds()
	if secs <= 0 {
		return 0, false
	}

	idx := (v.series.Interval().Truncate(t) - v.bucketOf(0)) / secs
	if idx < 0 || idx >= int64(n) {
		return 0, false
	}

	return int(idx), true
}

func (v *Viewport) bucketOf(idx int) int64 {
	return v.series.Interval().Truncate(v.series.Candles()[idx].Time.Unix())
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
