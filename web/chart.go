// Package web serves the chart UI: a thin browser client that streams pointer
// events to a server-side annotation engine and paints the frames it gets
// back.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/chartmark/chartmark/core"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

const defaultCandleLimit = 400

// Chart owns the candle windows and drawing sessions for every symbol served
// by the HTTP server.
type Chart struct {
	sync.Mutex
	port          int
	debug         bool
	symbols       []string
	interval      core.Interval
	candleLimit   int
	series        map[string]*core.CandleSeries
	feeder        core.Feeder
	storage       core.DrawingStorage
	indicators    []IndicatorSpec
	scriptContent string
	indexHTML     *template.Template
	lastUpdate    time.Time
	log           core.Logger
	sessions      *SessionManager
}

// ChartOption defines a function type for configuring a Chart instance
type ChartOption func(*Chart)

// WithPort sets the HTTP server port
func WithPort(port int) ChartOption {
	return func(chart *Chart) {
		chart.port = port
	}
}

// WithDebug enables debug mode (disables minification)
func WithDebug() ChartOption {
	return func(chart *Chart) {
		chart.debug = true
	}
}

// WithStorage sets the drawing persistence gateway
func WithStorage(storage core.DrawingStorage) ChartOption {
	return func(chart *Chart) {
		chart.storage = storage
	}
}

// WithCandleLimit sets how many candles are kept per symbol window
func WithCandleLimit(limit int) ChartOption {
	return func(chart *Chart) {
		chart.candleLimit = limit
	}
}

// WithIndicators adds overlay indicator lines to the served chart
func WithIndicators(indicators ...IndicatorSpec) ChartOption {
	return func(chart *Chart) {
		chart.indicators = indicators
	}
}

// NewChart creates a new chart instance with the provided options
func NewChart(log core.Logger, feeder core.Feeder, interval core.Interval,
	symbols []string, options ...ChartOption) (*Chart, error) {

	chart := &Chart{
		port:        8080,
		log:         log,
		feeder:      feeder,
		interval:    interval,
		symbols:     symbols,
		candleLimit: defaultCandleLimit,
		series:      make(map[string]*core.CandleSeries),
	}

	for _, option := range options {
		option(chart)
	}

	var err error
	chart.indexHTML, err = template.ParseFS(staticFiles, "assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	chartJS, err := staticFiles.ReadFile("assets/js/main.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read main.js: %w", err)
	}

	transpileChartJS := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !chart.debug,
		MinifyIdentifiers: !chart.debug,
		MinifyWhitespace:  !chart.debug,
	})
	if len(transpileChartJS.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpileChartJS.Errors)
	}
	chart.scriptContent = string(transpileChartJS.Code)

	chart.sessions = NewSessionManager(log, chart)

	return chart, nil
}

// GetPort returns the configured port
func (c *Chart) GetPort() int {
	return c.port
}

// Interval returns the display interval the chart serves
func (c *Chart) Interval() core.Interval {
	return c.interval
}

// RegisterHandlers registers all necessary handlers on the HTTP server
func (c *Chart) RegisterHandlers(server HTTPServer) {
	server.RegisterFileServer("/assets/", http.FS(staticFiles))

	server.RegisterHandler("/health", c.handleHealth)
	server.RegisterHandler("/js/main.js", c.handleScript)
	server.RegisterHandler("/api/instruments", c.handleInstruments)
	server.RegisterHandler("/api/candles", c.handleCandles)
	server.RegisterHandler("/api/drawings", c.handleDrawings)
	server.RegisterHandler("/export", c.handleDrawingsExport)
	server.RegisterHandler("/ws", c.sessions.HandleWebSocket)
	server.RegisterHandler("/", c.handleIndex)
}

// Preload fetches the initial candle window for every symbol and starts the
// live subscriptions that keep the windows current.
func (c *Chart) Preload(ctx context.Context) error {
	for _, symbol := range c.symbols {
		candles, err := c.feeder.CandlesByLimit(ctx, symbol, c.interval, c.candleLimit)
		if err != nil {
			return fmt.Errorf("preload %s: %w", symbol, err)
		}

		series := core.NewCandleSeries(c.interval, candles...)
		c.Lock()
		c.series[symbol] = series
		c.lastUpdate = time.Now()
		c.Unlock()

		go c.followCandles(ctx, symbol)
	}

	return nil
}

// followCandles consumes the live candle subscription for one symbol
func (c *Chart) followCandles(ctx context.Context, symbol string) {
	candleChan, errChan := c.feeder.CandlesSubscription(ctx, symbol, c.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errChan:
			if !ok {
				return
			}
			if err != nil {
				c.log.WithError(err).Error("candle subscription error")
			}
		case candle, ok := <-candleChan:
			if !ok {
				return
			}
			c.OnCandle(candle)
		}
	}
}

// OnCandle feeds a new or updated candle into the symbol's window and
// notifies open sessions.
func (c *Chart) OnCandle(candle core.Candle) {
	c.Lock()
	series, ok := c.series[candle.Pair]
	if !ok {
		series = core.NewCandleSeries(c.interval)
		c.series[candle.Pair] = series
	}
	series.Append(candle)
	c.lastUpdate = time.Now()
	c.Unlock()

	c.sessions.BroadcastCandle(candle)
}

// CandlesSnapshot returns a copy of the candle window for one symbol. Every
// reader outside the chart lock works on its own copy; sessions keep their
// windows current from broadcast candles.
func (c *Chart) CandlesSnapshot(symbol string) ([]core.Candle, bool) {
	c.Lock()
	defer c.Unlock()

	series, ok := c.series[symbol]
	if !ok {
		return nil, false
	}

	return append([]core.Candle(nil), series.Candles()...), true
}

// Symbols returns the symbols this chart serves
func (c *Chart) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}
