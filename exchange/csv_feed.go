// Package exchange provides candle data feeds for live and offline use
package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/samber/lo"
)

// defaultHeaderMap defines the standard CSV column mapping
var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// PairFeed binds one trading pair to a CSV file of historical candles
type PairFeed struct {
	Pair     string
	File     string
	Interval core.Interval
}

// CSVFeed is an offline candle feeder reading from CSV files. It resamples
// every feed to the target interval at load time.
type CSVFeed struct {
	Feeds   map[string]PairFeed
	candles map[string][]core.Candle
}

// NewCSVFeed creates a new CSV feed and resamples data to the target interval
func NewCSVFeed(target core.Interval, feeds ...PairFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		Feeds:   make(map[string]PairFeed),
		candles: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		csvFeed.Feeds[feed.Pair] = feed

		candles, err := readCandlesFromCSV(feed)
		if err != nil {
			return nil, err
		}

		csvFeed.candles[feedKey(feed.Pair, feed.Interval)] = candles

		if err := csvFeed.resample(feed.Pair, feed.Interval, target); err != nil {
			return nil, err
		}
	}

	return csvFeed, nil
}

// readCandlesFromCSV reads and processes a CSV file to create candles
func readCandlesFromCSV(feed PairFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvLines) == 0 {
		return nil, nil
	}

	headerMap, hasHeaders := parseHeaders(csvLines[0])
	if hasHeaders {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for _, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, feed.Pair)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseHeaders analyzes CSV headers and returns an index map
func parseHeaders(headers []string) (map[string]int, bool) {
	// A leading number means the file has no header row
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int, len(headers))
	for index, header := range headers {
		headerMap[header] = index
	}

	return headerMap, true
}

// parseCandleFromLine parses a CSV line and creates a candle
func parseCandleFromLine(line []string, headerMap map[string]int, pair string) (core.Candle, error) {
	timestamp, err := strconv.Atoi(line[headerMap["time"]])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Time:      time.Unix(int64(timestamp), 0).UTC(),
		UpdatedAt: time.Unix(int64(timestamp), 0).UTC(),
		Pair:      pair,
		Complete:  true,
	}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Candle{}, err
	}

	return candle, nil
}

// resample aggregates candles from the source interval into target buckets
func (c *CSVFeed) resample(pair string, source, target core.Interval) error {
	if source == target {
		return nil
	}
	if target.Seconds() < source.Seconds() {
		return fmt.Errorf("%w: cannot refine %s data to %s", core.ErrInvalidInterval, source, target)
	}

	sourceCandles := c.candles[feedKey(pair, source)]
	if len(sourceCandles) == 0 {
		return nil
	}

	targetCandles := make([]core.Candle, 0, len(sourceCandles)/4)
	var current core.Candle
	inBucket := false

	for _, candle := range sourceCandles {
		bucket := target.Truncate(candle.Time.Unix())

		if inBucket && target.Truncate(current.Time.Unix()) != bucket {
			current.Complete = true
			targetCandles = append(targetCandles, current)
			inBucket = false
		}

		if !inBucket {
			current = candle
			current.Time = time.Unix(bucket, 0).UTC()
			inBucket = true
			continue
		}

		current.High = math.Max(current.High, candle.High)
		current.Low = math.Min(current.Low, candle.Low)
		current.Close = candle.Close
		current.Volume += candle.Volume
		current.UpdatedAt = candle.UpdatedAt
	}

	// Trailing partial buckets are dropped; only closed bars back the chart
	if inBucket {
		last := sourceCandles[len(sourceCandles)-1]
		if target.Truncate(last.Time.Add(source.Duration()).Unix()) != target.Truncate(current.Time.Unix()) {
			current.Complete = true
			targetCandles = append(targetCandles, current)
		}
	}

	c.candles[feedKey(pair, target)] = targetCandles
	return nil
}

// feedKey generates a unique key for each pair and interval
func feedKey(pair string, interval core.Interval) string {
	return fmt.Sprintf("%s--%s", pair, interval)
}

// Limit keeps only the candles within a trailing time window
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for key, candles := range c.candles {
		if len(candles) == 0 {
			continue
		}

		start := candles[len(candles)-1].Time.Add(-duration)
		c.candles[key] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.Time.After(start)
		})
	}
	return c
}

// CandlesByPeriod returns candles within a specific time period
func (c *CSVFeed) CandlesByPeriod(_ context.Context, pair string, interval core.Interval,
	start, end time.Time) ([]core.Candle, error) {

	result := make([]core.Candle, 0)
	for _, candle := range c.candles[feedKey(pair, interval)] {
		if candle.Time.Before(start) || candle.Time.After(end) {
			continue
		}
		result = append(result, candle)
	}

	return result, nil
}

// CandlesByLimit returns the most recent candles of the feed
func (c *CSVFeed) CandlesByLimit(_ context.Context, pair string, interval core.Interval, limit int) ([]core.Candle, error) {
	candles := c.candles[feedKey(pair, interval)]
	if len(candles) < limit {
		return nil, fmt.Errorf("%w: %s", core.ErrInsufficientData, pair)
	}

	return candles[len(candles)-limit:], nil
}

// CandlesSubscription replays the feed's candles through a channel
func (c *CSVFeed) CandlesSubscription(ctx context.Context, pair string, interval core.Interval) (chan core.Candle, chan error) {
	ccandle := make(chan core.Candle)
	cerr := make(chan error)

	go func() {
		defer close(ccandle)
		defer close(cerr)

		for _, candle := range c.candles[feedKey(pair, interval)] {
			select {
			case <-ctx.Done():
				return
			case ccandle <- candle:
			}
		}
	}()

	return ccandle, cerr
}
