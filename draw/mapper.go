// Package draw implements the annotation engine: coordinate mapping between
// screen pixels and (time, price), the pointer interaction state machine,
// hit testing, interval remapping and overlay rendering.
package draw

import (
	"math"

	"github.com/chartmark/chartmark/core"
)

// defaultBarSpacing guards the extrapolation math when the surface reports a
// zero or undefined pixels-per-bar.
const defaultBarSpacing = 6.0

// ScreenPoint is a pixel coordinate on the drawing target.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mapper translates between pixels and semantic chart coordinates. It wraps a
// core.ChartSurface and adds time extrapolation so points beyond the right
// edge of loaded history still resolve deterministically. Prices are never
// extrapolated: an unresolvable y fails the whole conversion.
type Mapper struct {
	surface core.ChartSurface
	series  *core.CandleSeries
	width   func() int
}

// NewMapper creates a mapper over the given surface. The candle series
// supplies the reference column for extrapolation and width reports the
// pixel width of the drawing target.
func NewMapper(surface core.ChartSurface, series *core.CandleSeries, width func() int) *Mapper {
	return &Mapper{surface: surface, series: series, width: width}
}

// SetSeries swaps the candle window backing the reference column, used on
// symbol or interval switches.
func (m *Mapper) SetSeries(series *core.CandleSeries) { m.series = series }

// ToScreen projects a semantic point to pixels. When the point's time lies
// beyond the addressable axis the x position is extrapolated from a
// reference column by bar-spacing arithmetic.
func (m *Mapper) ToScreen(p core.Point) (ScreenPoint, bool) {
	y, ok := m.surface.PriceToY(p.Price)
	if !ok {
		return ScreenPoint{}, false
	}

	if x, ok := m.surface.TimeToX(p.Time); ok {
		return ScreenPoint{X: x, Y: y}, true
	}

	refTime, refX, ok := m.referenceColumn()
	if !ok {
		return ScreenPoint{}, false
	}

	secs := m.series.Interval().Seconds()
	if secs <= 0 {
		return ScreenPoint{}, false
	}

	bars := float64(p.Time-refTime) / float64(secs)
	return ScreenPoint{X: refX + bars*m.barSpacing(), Y: y}, true
}

// ToSemantic converts a pixel position to a chart point. A pointer in the
// unaddressed right margin is resolved by scanning left for the nearest
// resolvable column and extrapolating from it.
func (m *Mapper) ToSemantic(x, y float64) (core.Point, bool) {
	if !isFinite(x) || !isFinite(y) {
		return core.Point{}, false
	}

	price, ok := m.surface.YToPrice(y)
	if !ok {
		return core.Point{}, false
	}

	if t, ok := m.surface.XToTime(x); ok {
		return core.Point{Time: t, Price: price}, true
	}

	secs := m.series.Interval().Seconds()
	if secs <= 0 {
		return core.Point{}, false
	}

	// The scan never starts past the right edge: a pointer far beyond the
	// canvas still extrapolates from the rightmost resolvable column.
	spacing := m.barSpacing()
	start := math.Floor(x)
	if edge := float64(m.width() - 1); start > edge {
		start = edge
	}
	for sx := start; sx >= 0; sx-- {
		t, ok := m.surface.XToTime(sx)
		if !ok {
			continue
		}

		bars := (x - sx) / spacing
		return core.Point{
			Time:  t + int64(math.Round(bars*float64(secs))),
			Price: price,
		}, true
	}

	// Nothing on the axis resolves at all; anchor on the most recent candle
	if last, ok := m.series.Last(); ok {
		return core.Point{Time: last.Time.Unix(), Price: price}, true
	}

	return core.Point{}, false
}

// referenceColumn finds a (time, x) pair to extrapolate from: the most
// recent candle when it projects, otherwise the first column left of the
// right edge that resolves a time.
func (m *Mapper) referenceColumn() (int64, float64, bool) {
	if last, ok := m.series.Last(); ok {
		t := last.Time.Unix()
		if x, ok := m.surface.TimeToX(t); ok {
			return t, x, true
		}
	}

	for x := float64(m.width() - 1); x >= 0; x-- {
		if t, ok := m.surface.XToTime(x); ok {
			return t, x, true
		}
	}

	return 0, 0, false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (m *Mapper) barSpacing() float64 {
	if s := m.surface.BarSpacing(); s > 0 && !math.IsNaN(s) {
		return s
	}
	return defaultBarSpacing
}
