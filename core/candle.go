package core

import (
	"fmt"
	"strconv"
	"time"
)

// Candle represents a trading candle with OHLCV data
type Candle struct {
	Pair      string
	Time      time.Time
	UpdatedAt time.Time
	Open      float64
	Close     float64
	Low       float64
	High      float64
	Volume    float64
	Complete  bool
}

// IsEmpty checks if the candle contains no significant data
func (c Candle) IsEmpty() bool { return c.Pair == "" && c.Close == 0 && c.Open == 0 && c.Volume == 0 }

// ToSlice converts a candle to a string slice for CSV serialization
// with the specified decimal precision
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.Time.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}

// CandleSeries is an ordered, time-ascending window of candles for one
// (pair, interval). It backs OHLC snapping and the reference column used by
// coordinate extrapolation.
type CandleSeries struct {
	interval Interval
	candles  []Candle
}

// NewCandleSeries creates a series for the given interval. Candles must be
// supplied in ascending time order.
func NewCandleSeries(interval Interval, candles ...Candle) *CandleSeries {
	return &CandleSeries{
		interval: interval,
		candles:  append([]Candle(nil), candles...),
	}
}

// Interval returns the bucket width of the series.
func (s *CandleSeries) Interval() Interval { return s.interval }

// Len returns the number of candles in the window.
func (s *CandleSeries) Len() int { return len(s.candles) }

// Candles returns the backing window. Callers must treat it as read-only.
func (s *CandleSeries) Candles() []Candle { return s.candles }

// Append adds a candle, replacing the last one when it belongs to the same
// bucket (partial candle updates).
func (s *CandleSeries) Append(c Candle) {
	if n := len(s.candles); n > 0 && s.interval.Truncate(c.Time.Unix()) == s.interval.Truncate(s.candles[n-1].Time.Unix()) {
		s.candles[n-1] = c
		return
	}
	s.candles = append(s.candles, c)
}

// Last returns the most recent candle of the window.
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// At returns the candle whose time bucket contains the given unix timestamp.
func (s *CandleSeries) At(t int64) (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}

	bucket := s.interval.Truncate(t)
	first := s.interval.Truncate(s.candles[0].Time.Unix())
	secs := s.interval.Seconds()
	if secs <= 0 || bucket < first {
		return Candle{}, false
	}

	idx := (bucket - first) / secs
	if idx < int64(len(s.candles)) {
		if c := s.candles[idx]; s.interval.Truncate(c.Time.Unix()) == bucket {
			return c, true
		}
	}

	// Gaps shift later candles left of their computed slot
	for _, c := range s.candles {
		if s.interval.Truncate(c.Time.Unix()) == bucket {
			return c, true
		}
	}

	return Candle{}, false
}
