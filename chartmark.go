// Package chartmark wires the chart server, drawing storage, live data feed,
// alert watchers and notifications into one runnable application.
package chartmark

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"

	"github.com/chartmark/chartmark/alert"
	"github.com/chartmark/chartmark/core"
	"github.com/chartmark/chartmark/exchange"
	"github.com/chartmark/chartmark/internal/config"
	"github.com/chartmark/chartmark/logger/zerolog"
	"github.com/chartmark/chartmark/notification"
	"github.com/chartmark/chartmark/storage"
	"github.com/chartmark/chartmark/web"
)

const dateTimeLayout = "2006-01-02 15:04:05"

// App is the assembled chartmark application
type App struct {
	settings   *config.AppConfig
	feeder     core.Feeder
	storage    core.DrawingStorage
	chart      *web.Chart
	notifier   core.Notifier
	telegram   core.NotifierWithStart
	watchers   []*alert.Watcher
	indicators []web.IndicatorSpec
	log        core.Logger
}

// Option is a function that configures the application
type Option func(*App)

// WithFeeder overrides the default Binance candle feed
func WithFeeder(feeder core.Feeder) Option {
	return func(app *App) {
		app.feeder = feeder
	}
}

// WithDrawingStorage overrides the default file-backed drawing storage
func WithDrawingStorage(storage core.DrawingStorage) Option {
	return func(app *App) {
		app.storage = storage
	}
}

// WithNotifier registers a notifier for alerts and errors
func WithNotifier(notifier core.Notifier) Option {
	return func(app *App) {
		app.notifier = notifier
	}
}

// WithLogger overrides the default console logger
func WithLogger(log core.Logger) Option {
	return func(app *App) {
		app.log = log
	}
}

// WithIndicators adds overlay indicator lines to the served chart
func WithIndicators(indicators ...web.IndicatorSpec) Option {
	return func(app *App) {
		app.indicators = indicators
	}
}

// NewApp builds the application from its configuration. Missing dependencies
// get their defaults: a Binance spot feed, buntdb storage at the configured
// path and a colored console logger.
func NewApp(ctx context.Context, settings *config.AppConfig, options ...Option) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	app := &App{settings: settings}

	for _, option := range options {
		option(app)
	}

	if err := initializeLogger(app); err != nil {
		return nil, err
	}

	if err := initializeFeeder(ctx, app); err != nil {
		return nil, err
	}

	if err := initializeStorage(app); err != nil {
		return nil, err
	}

	if err := initializeNotifications(app); err != nil {
		return nil, err
	}

	chartOptions := []web.ChartOption{
		web.WithPort(settings.Chart.Port),
		web.WithCandleLimit(settings.Chart.CandleLimit),
		web.WithStorage(app.storage),
		web.WithIndicators(app.indicators...),
	}
	if settings.Chart.Debug {
		chartOptions = append(chartOptions, web.WithDebug())
	}

	chart, err := web.NewChart(app.log, app.feeder, settings.Interval, settings.Symbols, chartOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}
	app.chart = chart

	if settings.Alerts.Enabled {
		initializeWatchers(app)
	}

	return app, nil
}

// initializeLogger sets up the logging system
func initializeLogger(app *App) error {
	if app.log != nil {
		return nil
	}

	log, err := zerolog.New("info", dateTimeLayout, true, false)
	if err != nil {
		return err
	}
	app.log = log

	return nil
}

// initializeFeeder sets up the default Binance candle feed
func initializeFeeder(ctx context.Context, app *App) error {
	if app.feeder != nil {
		return nil
	}

	binanceOptions := []exchange.BinanceOption{}
	if app.settings.Binance.APIKey != "" {
		binanceOptions = append(binanceOptions,
			exchange.WithCredentials(app.settings.Binance.APIKey, app.settings.Binance.SecretKey))
	}
	if app.settings.Binance.UseTestnet {
		binanceOptions = append(binanceOptions, exchange.WithTestNet())
	}

	feeder, err := exchange.NewBinance(ctx, app.log, binanceOptions...)
	if err != nil {
		return fmt.Errorf("failed to connect to binance: %w", err)
	}
	app.feeder = feeder

	return nil
}

// initializeStorage sets up the drawing persistence layer
func initializeStorage(app *App) error {
	if app.storage != nil {
		return nil
	}

	store, err := storage.NewFromFile(app.settings.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open drawing storage: %w", err)
	}
	app.storage = store

	return nil
}

// initializeNotifications sets up notification systems like Telegram
func initializeNotifications(app *App) error {
	if !app.settings.Telegram.Enabled {
		return nil
	}

	telegram, err := notification.NewTelegram(notification.Settings{
		Token:    app.settings.Telegram.Token,
		Users:    app.settings.Telegram.Users,
		Interval: app.settings.Interval,
		Symbols:  app.settings.Symbols,
	}, app.log, notification.WithDrawingStorage(app.storage))
	if err != nil {
		return err
	}

	app.telegram = telegram
	if app.notifier == nil {
		app.notifier = telegram
	}

	return nil
}

// initializeWatchers creates one alert watcher per symbol
func initializeWatchers(app *App) {
	notifier := app.notifier
	if notifier == nil {
		notifier = logNotifier{app.log}
	}

	for _, symbol := range app.settings.Symbols {
		app.watchers = append(app.watchers, alert.NewWatcher(
			app.log, app.feeder, app.storage, notifier,
			symbol, app.settings.Interval,
			alert.WithCooldown(app.settings.Alerts.Cooldown),
		))
	}
}

// Chart exposes the underlying chart, mainly for embedding and tests
func (a *App) Chart() *web.Chart {
	return a.chart
}

// Run preloads the candle windows, starts the notifier and alert watchers and
// serves the chart. Blocks until the HTTP server stops.
func (a *App) Run(ctx context.Context) error {
	if err := a.chart.Preload(ctx); err != nil {
		return err
	}

	if a.telegram != nil {
		a.telegram.Start()
	}

	for _, watcher := range a.watchers {
		go func(w *alert.Watcher) {
			if err := w.Start(ctx); err != nil {
				a.log.WithError(err).Error("Alert watcher stopped")
				if a.notifier != nil {
					a.notifier.OnError(err)
				}
			}
		}(watcher)
	}

	server := web.NewChartServer(a.chart, web.NewStandardHTTPServer(), a.log)
	return server.Start()
}

// Summary prints a per-symbol drawing overview and a histogram of how far
// the stored alert levels sit from the latest close.
func (a *App) Summary(ctx context.Context) error {
	var distances []float64

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Symbol", "Drawings", "Lines", "Fibs", "Rects", "Last Update"})

	totals := [4]int{}
	for _, symbol := range a.settings.Symbols {
		drawings, err := a.storage.Drawings(ctx, symbol, a.settings.Interval)
		if err != nil {
			return fmt.Errorf("failed to load drawings for %s: %w", symbol, err)
		}

		var lines, fibs, rects int
		var lastUpdate time.Time
		for _, drawing := range drawings {
			switch drawing.Kind {
			case core.KindLine:
				lines++
			case core.KindFib:
				fibs++
			case core.KindRectangle:
				rects++
			}
			if drawing.UpdatedAt.After(lastUpdate) {
				lastUpdate = drawing.UpdatedAt
			}
		}

		updated := "-"
		if !lastUpdate.IsZero() {
			updated = lastUpdate.UTC().Format(dateTimeLayout)
		}

		table.Append([]string{
			symbol,
			strconv.Itoa(len(drawings)),
			strconv.Itoa(lines),
			strconv.Itoa(fibs),
			strconv.Itoa(rects),
			updated,
		})
		totals[0] += len(drawings)
		totals[1] += lines
		totals[2] += fibs
		totals[3] += rects

		distances = append(distances, a.levelDistances(ctx, symbol, drawings)...)
	}

	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(totals[0]),
		strconv.Itoa(totals[1]),
		strconv.Itoa(totals[2]),
		strconv.Itoa(totals[3]),
		"",
	})
	table.Render()
	fmt.Println(buffer.String())

	if len(distances) > 0 {
		fmt.Println("------ LEVEL DISTANCE FROM CLOSE (%) -------")
		hist := histogram.Hist(10, distances)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(10)); err != nil {
			a.log.WithError(err).Warn("Failed to print level histogram")
		}
		fmt.Println()
	}

	return nil
}

// levelDistances returns the percent distance of every alertable level from
// the latest close of the symbol.
func (a *App) levelDistances(ctx context.Context, symbol string, drawings []*core.Annotation) []float64 {
	candles, err := a.feeder.CandlesByLimit(ctx, symbol, a.settings.Interval, 1)
	if err != nil || len(candles) == 0 {
		return nil
	}

	last := candles[len(candles)-1]
	if last.Close == 0 {
		return nil
	}

	var distances []float64
	for _, drawing := range drawings {
		for _, level := range alert.LevelsFromDrawing(drawing) {
			price := level.PriceAt(last.Time.Unix())
			distances = append(distances, (price-last.Close)/last.Close*100)
		}
	}

	return distances
}

// logNotifier routes alerts to the log when no other notifier is configured
type logNotifier struct {
	log core.Logger
}

func (n logNotifier) Notify(text string) { n.log.Info(text) }
func (n logNotifier) OnError(err error)  { n.log.WithError(err).Error("notifier error") }
