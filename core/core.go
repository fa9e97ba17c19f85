package core

import (
	"context"
	"time"
)

// ChartSurface is the rendering surface adapter consumed by the coordinate
// mapper. Every conversion may fail to resolve when the requested value is
// outside the currently addressable domain; the boolean result reports that
// outcome without error plumbing.
type ChartSurface interface {
	// TimeToX converts a unix timestamp to a pixel column.
	TimeToX(t int64) (float64, bool)
	// XToTime converts a pixel column back to a unix timestamp.
	XToTime(x float64) (int64, bool)
	// PriceToY converts a price to a pixel row.
	PriceToY(p float64) (float64, bool)
	// YToPrice converts a pixel row back to a price.
	YToPrice(y float64) (float64, bool)
	// BarSpacing reports the current pixels-per-bar of the time axis.
	BarSpacing() float64
	// VisibleRange reports the candle index range currently on screen.
	VisibleRange() (from, to int)
}

// Feeder supplies ordered candle data for a pair
type Feeder interface {
	CandlesByLimit(ctx context.Context, pair string, interval Interval, limit int) ([]Candle, error)
	CandlesByPeriod(ctx context.Context, pair string, interval Interval, start, end time.Time) ([]Candle, error)
	CandlesSubscription(ctx context.Context, pair string, interval Interval) (chan Candle, chan error)
}

// DrawingStorage persists annotations keyed by (symbol, interval)
type DrawingStorage interface {
	SaveDrawing(ctx context.Context, a *Annotation) error
	DeleteDrawing(ctx context.Context, id string) error
	Drawings(ctx context.Context, symbol string, interval Interval) ([]*Annotation, error)
	DeleteAllDrawings(ctx context.Context, symbol string, interval Interval) (int, error)
	Close() error
}

// Notifier delivers user-facing event notifications
type Notifier interface {
	Notify(string)
	OnError(err error)
}

// NotifierWithStart is a notifier with its own receive loop
type NotifierWithStart interface {
	Notifier
	Start()
}
