package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/chartmark/chartmark/core"
	"github.com/jpillora/backoff"
)

// Binance is a candle feeder backed by the Binance spot market API.
type Binance struct {
	ctx    context.Context
	client *binance.Client
	log    core.Logger
}

// BinanceOption is a function that configures a Binance client
type BinanceOption func(*Binance)

// WithCredentials sets the API credentials. Candle endpoints are public, so
// credentials are only needed when the same client serves other calls.
func WithCredentials(key, secret string) BinanceOption {
	return func(b *Binance) {
		b.client = binance.NewClient(key, secret)
	}
}

// WithTestNet routes all calls to the Binance testnet
func WithTestNet() BinanceOption {
	return func(_ *Binance) {
		binance.UseTestnet = true
	}
}

// WithCustomAPIEndpoint sets custom endpoints for the Binance API
func WithCustomAPIEndpoint(apiURL, wsURL, combinedURL string) BinanceOption {
	return func(_ *Binance) {
		if apiURL == "" || wsURL == "" || combinedURL == "" {
			return
		}
		binance.BaseAPIMainURL = apiURL
		binance.BaseWsMainURL = wsURL
		binance.BaseCombinedMainURL = combinedURL
	}
}

// NewBinance creates a Binance candle feeder and verifies connectivity
func NewBinance(ctx context.Context, log core.Logger, options ...BinanceOption) (*Binance, error) {
	binance.WebsocketKeepalive = true

	b := &Binance{
		ctx:    ctx,
		client: binance.NewClient("", ""),
		log:    log,
	}

	for _, option := range options {
		option(b)
	}

	if err := b.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	if log != nil {
		log.Info("Using Binance spot market data")
	}
	return b, nil
}

// LastQuote gets the latest close price for a pair
func (b *Binance) LastQuote(ctx context.Context, pair string) (float64, error) {
	candles, err := b.CandlesByLimit(ctx, pair, core.Interval1m, 1)
	if err != nil || len(candles) < 1 {
		return 0, err
	}
	return candles[0].Close, nil
}

// CandlesByLimit gets the most recent complete candles for a pair
func (b *Binance) CandlesByLimit(ctx context.Context, pair string, interval core.Interval, limit int) ([]core.Candle, error) {
	data, err := b.client.NewKlinesService().
		Symbol(pair).
		Interval(interval.String()).
		Limit(limit + 1). // +1 to discard the last incomplete candle
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data))
	for i, d := range data {
		// Skip the last candle as it's incomplete
		if i == len(data)-1 {
			break
		}
		candles = append(candles, convertKlineToCandle(pair, *d))
	}

	return candles, nil
}

// CandlesByPeriod gets candles for a pair within a time range
func (b *Binance) CandlesByPeriod(ctx context.Context, pair string, interval core.Interval,
	start, end time.Time) ([]core.Candle, error) {

	data, err := b.client.NewKlinesService().
		Symbol(pair).
		Interval(interval.String()).
		StartTime(start.UnixNano() / int64(time.Millisecond)).
		EndTime(end.UnixNano() / int64(time.Millisecond)).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data))
	for _, d := range data {
		candles = append(candles, convertKlineToCandle(pair, *d))
	}

	return candles, nil
}

// CandlesSubscription subscribes to live candle updates for a pair. Both
// partial and complete candles flow through the channel; the websocket is
// redialed with backoff after a disconnect.
func (b *Binance) CandlesSubscription(ctx context.Context, pair string, interval core.Interval) (chan core.Candle, chan error) {
	candleChan := make(chan core.Candle)
	errChan := make(chan error)
	retry := &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: time.Second,
	}

	go func() {
		for {
			done, _, err := binance.WsKlineServe(pair, interval.String(), func(event *binance.WsKlineEvent) {
				retry.Reset()
				candleChan <- convertWsKlineToCandle(pair, event.Kline)
			}, func(err error) {
				errChan <- err
			})

			if err != nil {
				errChan <- err
				close(errChan)
				close(candleChan)
				return
			}

			select {
			case <-ctx.Done():
				close(errChan)
				close(candleChan)
				return
			case <-done:
				time.Sleep(retry.Duration())
			}
		}
	}()

	return candleChan, errChan
}

// convertKlineToCandle converts a Binance kline to a core.Candle
func convertKlineToCandle(pair string, k binance.Kline) core.Candle {
	t := time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC()
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Complete:  true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}

// convertWsKlineToCandle converts a Binance websocket kline to a core.Candle
func convertWsKlineToCandle(pair string, k binance.WsKline) core.Candle {
	t := time.Unix(0, k.StartTime*int64(time.Millisecond)).UTC()
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: time.Now().UTC(),
		Complete:  k.IsFinal,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
