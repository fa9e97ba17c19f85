package web

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/chartmark/chartmark/core"
)

// IndicatorKind selects the smoothing function of an overlay line
type IndicatorKind string

const (
	IndicatorEMA IndicatorKind = "ema"
	IndicatorSMA IndicatorKind = "sma"
)

// IndicatorSpec describes one overlay line computed over the candle closes
type IndicatorSpec struct {
	Kind   IndicatorKind
	Period int
	Color  string
}

// EMA creates an exponential moving average overlay spec
func EMA(period int, color string) IndicatorSpec {
	return IndicatorSpec{Kind: IndicatorEMA, Period: period, Color: color}
}

// SMA creates a simple moving average overlay spec
func SMA(period int, color string) IndicatorSpec {
	return IndicatorSpec{Kind: IndicatorSMA, Period: period, Color: color}
}

// computeIndicators evaluates every spec over the series closes, trimming the
// warmup region where the smoothing has no defined value.
func computeIndicators(specs []IndicatorSpec, series *core.CandleSeries) []IndicatorLine {
	lines := make([]IndicatorLine, 0, len(specs))
	candles := series.Candles()
	if len(candles) == 0 {
		return lines
	}

	closes := make([]float64, len(candles))
	times := make([]time.Time, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		times[i] = c.Time
	}

	for _, spec := range specs {
		if spec.Period < 1 || spec.Period > len(closes) {
			continue
		}

		var values []float64
		var name string
		switch spec.Kind {
		case IndicatorEMA:
			values = talib.Ema(closes, spec.Period)
			name = fmt.Sprintf("EMA(%d)", spec.Period)
		case IndicatorSMA:
			values = talib.Sma(closes, spec.Period)
			name = fmt.Sprintf("SMA(%d)", spec.Period)
		default:
			continue
		}

		warmup := spec.Period - 1
		lines = append(lines, IndicatorLine{
			Name:   name,
			Color:  spec.Color,
			Time:   times[warmup:],
			Values: values[warmup:],
		})
	}

	return lines
}
