package alert

import (
	"context"
	"testing"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/chartmark/chartmark/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) WithField(string, any) core.Logger     { return nopLogger{} }
func (nopLogger) WithFields(map[string]any) core.Logger { return nopLogger{} }
func (nopLogger) WithError(error) core.Logger           { return nopLogger{} }
func (nopLogger) Print(...any)                          {}
func (nopLogger) Trace(...any)                          {}
func (nopLogger) Debug(...any)                          {}
func (nopLogger) Info(...any)                           {}
func (nopLogger) Warn(...any)                           {}
func (nopLogger) Error(...any)                          {}
func (nopLogger) Fatal(...any)                          {}
func (nopLogger) Panic(...any)                          {}
func (nopLogger) Printf(string, ...any)                 {}
func (nopLogger) Tracef(string, ...any)                 {}
func (nopLogger) Debugf(string, ...any)                 {}
func (nopLogger) Infof(string, ...any)                  {}
func (nopLogger) Warnf(string, ...any)                  {}
func (nopLogger) Errorf(string, ...any)                 {}
func (nopLogger) Fatalf(string, ...any)                 {}
func (nopLogger) Panicf(string, ...any)                 {}
func (nopLogger) SetLevel(core.Level)                   {}
func (nopLogger) GetLevel() core.Level                  { return core.InfoLevel }

type captureNotifier struct {
	messages []string
	errors   []error
}

func (n *captureNotifier) Notify(text string) { n.messages = append(n.messages, text) }
func (n *captureNotifier) OnError(err error)  { n.errors = append(n.errors, err) }

func lineAt(id string, price float64) *core.Annotation {
	return &core.Annotation{
		ID:       id,
		Symbol:   "BTCUSDT",
		Interval: core.Interval1m,
		Kind:     core.KindLine,
		Points: [2]core.Point{
			{Time: 1600000020, Price: price},
			{Time: 1600000320, Price: price},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func candleAt(t time.Time, close float64, complete bool) core.Candle {
	return core.Candle{
		Pair:     "BTCUSDT",
		Time:     t,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Complete: complete,
	}
}

func newTestWatcher(t *testing.T, drawings []*core.Annotation, options ...Option) (*Watcher, *captureNotifier) {
	t.Helper()

	store, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, drawing := range drawings {
		require.NoError(t, store.SaveDrawing(context.Background(), drawing))
	}

	notifier := &captureNotifier{}
	watcher := NewWatcher(nopLogger{}, nil, store, notifier, "BTCUSDT", core.Interval1m, options...)
	require.NoError(t, watcher.ReloadLevels(context.Background()))

	return watcher, notifier
}

func TestLevelsFromDrawing(t *testing.T) {
	line := lineAt("l1", 100)
	require.Len(t, LevelsFromDrawing(line), 1)

	rect := lineAt("r1", 0)
	rect.Kind = core.KindRectangle
	rect.Points = [2]core.Point{
		{Time: 1600000020, Price: 90},
		{Time: 1600000320, Price: 110},
	}
	edges := LevelsFromDrawing(rect)
	require.Len(t, edges, 2)
	assert.Equal(t, 110.0, edges[0].PriceAt(0))
	assert.Equal(t, 90.0, edges[1].PriceAt(0))

	fib := lineAt("f1", 0)
	fib.Kind = core.KindFib
	fib.Points = [2]core.Point{
		{Time: 1600000020, Price: 100},
		{Time: 1600000320, Price: 200},
	}
	levels := LevelsFromDrawing(fib)
	require.Len(t, levels, 7)
	assert.Equal(t, 100.0, levels[0].PriceAt(0))
	assert.Equal(t, 150.0, levels[3].PriceAt(0))
	assert.Equal(t, 200.0, levels[6].PriceAt(0))
}

func TestLevel_PriceAtInterpolatesSlopedLines(t *testing.T) {
	level := Level{
		p1: core.Point{Time: 0, Price: 100},
		p2: core.Point{Time: 100, Price: 200},
	}

	assert.InDelta(t, 150, level.PriceAt(50), 1e-9)
	// Extrapolation continues the slope past the second anchor
	assert.InDelta(t, 300, level.PriceAt(200), 1e-9)
}

func TestWatcher_CrossAboveNotifies(t *testing.T) {
	watcher, notifier := newTestWatcher(t, []*core.Annotation{lineAt("l1", 100)})

	base := time.Unix(1600000020, 0).UTC()
	watcher.OnCandle(candleAt(base, 95, true))
	watcher.OnCandle(candleAt(base.Add(time.Minute), 105, true))

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "above")
	assert.Contains(t, notifier.messages[0], "BTCUSDT")
}

func TestWatcher_IgnoresFormingCandles(t *testing.T) {
	watcher, notifier := newTestWatcher(t, []*core.Annotation{lineAt("l1", 100)})

	base := time.Unix(1600000020, 0).UTC()
	watcher.OnCandle(candleAt(base, 95, true))
	watcher.OnCandle(candleAt(base.Add(time.Minute), 105, false))

	assert.Empty(t, notifier.messages)
}

func TestWatcher_CooldownSuppressesRepeats(t *testing.T) {
	watcher, notifier := newTestWatcher(t, []*core.Annotation{lineAt("l1", 100)},
		WithCooldown(10*time.Minute))

	base := time.Unix(1600000020, 0).UTC()
	watcher.OnCandle(candleAt(base, 95, true))
	watcher.OnCandle(candleAt(base.Add(1*time.Minute), 105, true))
	watcher.OnCandle(candleAt(base.Add(2*time.Minute), 95, true))
	watcher.OnCandle(candleAt(base.Add(3*time.Minute), 105, true))

	assert.Len(t, notifier.messages, 1)

	// Past the cooldown the same level fires again
	watcher.OnCandle(candleAt(base.Add(15*time.Minute), 95, true))
	watcher.OnCandle(candleAt(base.Add(16*time.Minute), 105, true))
	assert.Len(t, notifier.messages, 2)
}

func TestWatcher_NoiseBandSuppressesShallowTouches(t *testing.T) {
	watcher, notifier := newTestWatcher(t, []*core.Annotation{lineAt("l1", 100)},
		WithNoiseWindow(2))

	base := time.Unix(1600000020, 0).UTC()
	watcher.OnCandle(candleAt(base, 99, true))
	// Crosses the level but stays inside the recent volatility band
	watcher.OnCandle(candleAt(base.Add(time.Minute), 100.3, true))

	assert.Empty(t, notifier.messages)
}

func TestWatcher_ReloadPicksUpNewDrawings(t *testing.T) {
	watcher, notifier := newTestWatcher(t, nil)

	base := time.Unix(1600000020, 0).UTC()
	watcher.OnCandle(candleAt(base, 95, true))
	watcher.OnCandle(candleAt(base.Add(time.Minute), 105, true))
	require.Empty(t, notifier.messages)

	require.NoError(t, watcher.storage.SaveDrawing(context.Background(), lineAt("l1", 100)))
	require.NoError(t, watcher.ReloadLevels(context.Background()))

	watcher.OnCandle(candleAt(base.Add(2*time.Minute), 95, true))
	watcher.OnCandle(candleAt(base.Add(3*time.Minute), 105, true))
	assert.Len(t, notifier.messages, 1)
}
