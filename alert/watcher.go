// Package alert turns stored drawings into price alerts. A watcher follows
// the live candle stream for one (symbol, interval) scope and notifies when
// the close crosses a level derived from a drawing.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/chartmark/chartmark/core"
	"gonum.org/v1/gonum/stat"
)

// fibLevels matches the retracement fractions the chart renders.
var fibLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

const (
	defaultCooldown    = 30 * time.Minute
	defaultNoiseWindow = 20
	reloadInterval     = time.Minute
	requestTimeout     = 10 * time.Second
)

// Level is a single alertable price line derived from a drawing. Sloped
// lines resolve to a different price per candle, so Price is recomputed
// from the anchors on every evaluation.
type Level struct {
	DrawingID string
	Kind      core.Kind
	Label     string
	p1, p2    core.Point
}

// PriceAt returns the level price at a bucket time. Horizontal levels
// ignore t; sloped lines interpolate and extrapolate along the anchors.
func (l Level) PriceAt(t int64) float64 {
	if l.p1.Time == l.p2.Time || l.p1.Price == l.p2.Price {
		return l.p2.Price
	}
	slope := (l.p2.Price - l.p1.Price) / float64(l.p2.Time-l.p1.Time)
	return l.p1.Price + slope*float64(t-l.p1.Time)
}

// LevelsFromDrawing expands a drawing into its alertable levels.
// Lines yield the segment itself, rectangles their top and bottom edges,
// fibonacci drawings one horizontal level per retracement fraction.
func LevelsFromDrawing(a *core.Annotation) []Level {
	switch a.Kind {
	case core.KindLine:
		return []Level{{
			DrawingID: a.ID,
			Kind:      a.Kind,
			Label:     "line",
			p1:        a.Points[0],
			p2:        a.Points[1],
		}}
	case core.KindRectangle:
		top, bottom := a.Points[0].Price, a.Points[1].Price
		if top < bottom {
			top, bottom = bottom, top
		}
		flat := func(label string, price float64) Level {
			return Level{
				DrawingID: a.ID,
				Kind:      a.Kind,
				Label:     label,
				p1:        core.Point{Time: a.Points[0].Time, Price: price},
				p2:        core.Point{Time: a.Points[1].Time, Price: price},
			}
		}
		return []Level{flat("top", top), flat("bottom", bottom)}
	case core.KindFib:
		levels := make([]Level, 0, len(fibLevels))
		for _, fraction := range fibLevels {
			price := a.Points[0].Price + (a.Points[1].Price-a.Points[0].Price)*fraction
			levels = append(levels, Level{
				DrawingID: a.ID,
				Kind:      a.Kind,
				Label:     fmt.Sprintf("%.1f%%", fraction*100),
				p1:        core.Point{Time: a.Points[0].Time, Price: price},
				p2:        core.Point{Time: a.Points[1].Time, Price: price},
			})
		}
		return levels
	}
	return nil
}

// Watcher evaluates the levels of a drawing scope against incoming candles
type Watcher struct {
	symbol   string
	interval core.Interval
	storage  core.DrawingStorage
	feeder   core.Feeder
	notifier core.Notifier
	log      core.Logger

	levels    []Level
	closes    []float64
	lastClose float64
	lastFired map[string]time.Time

	cooldown    time.Duration
	noiseWindow int
}

// Option configures a watcher
type Option func(*Watcher)

// WithCooldown sets the minimum delay between two alerts on the same level
func WithCooldown(d time.Duration) Option {
	return func(w *Watcher) {
		w.cooldown = d
	}
}

// WithNoiseWindow sets how many recent closes feed the noise filter
func WithNoiseWindow(n int) Option {
	return func(w *Watcher) {
		w.noiseWindow = n
	}
}

// NewWatcher creates a watcher for one symbol and interval
func NewWatcher(log core.Logger, feeder core.Feeder, storage core.DrawingStorage,
	notifier core.Notifier, symbol string, interval core.Interval, options ...Option) *Watcher {
	w := &Watcher{
		symbol:      symbol,
		interval:    interval,
		storage:     storage,
		feeder:      feeder,
		notifier:    notifier,
		log:         log.WithField("symbol", symbol),
		lastFired:   make(map[string]time.Time),
		cooldown:    defaultCooldown,
		noiseWindow: defaultNoiseWindow,
	}

	for _, option := range options {
		option(w)
	}

	return w
}

// ReloadLevels refreshes the level set from storage
func (w *Watcher) ReloadLevels(ctx context.Context) error {
	drawings, err := w.storage.Drawings(ctx, w.symbol, w.interval)
	if err != nil {
		return fmt.Errorf("failed to load drawings for %s: %w", w.symbol, err)
	}

	levels := make([]Level, 0, len(drawings))
	for _, drawing := range drawings {
		levels = append(levels, LevelsFromDrawing(drawing)...)
	}
	w.levels = levels

	return nil
}

// Start subscribes to the candle feed and evaluates every complete candle.
// Levels are refreshed once a minute so drawings added while running are
// picked up. Blocks until the context is cancelled or the feed errors out.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.ReloadLevels(ctx); err != nil {
		return err
	}

	ccandle, cerr := w.feeder.CandlesSubscription(ctx, w.symbol, w.interval)
	reload := time.NewTicker(reloadInterval)
	defer reload.Stop()

	w.log.Info("Alert watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-cerr:
			if err != nil {
				return fmt.Errorf("candle subscription for %s: %w", w.symbol, err)
			}
			return nil
		case <-reload.C:
			reloadCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			if err := w.ReloadLevels(reloadCtx); err != nil {
				w.log.WithError(err).Error("Failed to refresh alert levels")
			}
			cancel()
		case candle, ok := <-ccandle:
			if !ok {
				return nil
			}
			w.OnCandle(candle)
		}
	}
}

// OnCandle evaluates one candle against every level. Only complete candles
// count; a forming candle wanders across levels with every tick.
func (w *Watcher) OnCandle(candle core.Candle) {
	if !candle.Complete {
		return
	}

	previous := w.lastClose
	w.lastClose = candle.Close
	w.pushClose(candle.Close)

	if previous == 0 {
		return
	}

	band := w.noiseBand()
	bucket := candle.Time.Unix()

	for _, level := range w.levels {
		price := level.PriceAt(bucket)
		if !crossed(previous, candle.Close, price) {
			continue
		}

		// Skip touches inside the recent volatility band, they retrigger
		// on every candle while price hovers around the level.
		if band > 0 && abs(candle.Close-price) < band {
			continue
		}

		key := level.DrawingID + "/" + level.Label
		if fired, ok := w.lastFired[key]; ok && candle.Time.Sub(fired) < w.cooldown {
			continue
		}
		w.lastFired[key] = candle.Time

		direction := "above"
		if candle.Close < price {
			direction = "below"
		}

		w.notifier.Notify(fmt.Sprintf(
			"📈 ALERT %s %s\nClose %.2f crossed %s %s %s level at %.2f",
			w.symbol, w.interval, candle.Close, direction, level.Kind, level.Label, price,
		))
	}
}

// pushClose appends a close to the noise window, dropping the oldest
func (w *Watcher) pushClose(close float64) {
	w.closes = append(w.closes, close)
	if len(w.closes) > w.noiseWindow {
		w.closes = w.closes[len(w.closes)-w.noiseWindow:]
	}
}

// noiseBand is the sample standard deviation of the recent closes
func (w *Watcher) noiseBand() float64 {
	if len(w.closes) < w.noiseWindow {
		return 0
	}
	return stat.StdDev(w.closes, nil)
}

func crossed(previous, current, level float64) bool {
	return (previous < level && current >= level) ||
		(previous > level && current <= level)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
