package core

import (
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// Interval is the candle bucket width governing both data granularity and
// annotation anchor semantics. eg: 1m, 15m, 1h, 1d
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var intervalSeconds = map[Interval]int64{
	Interval1m:  60,
	Interval5m:  5 * 60,
	Interval15m: 15 * 60,
	Interval30m: 30 * 60,
	Interval1h:  60 * 60,
	Interval4h:  4 * 60 * 60,
	Interval1d:  24 * 60 * 60,
	Interval1w:  7 * 24 * 60 * 60,
}

// Seconds returns the bar duration in seconds, or 0 when the interval
// cannot be parsed.
func (i Interval) Seconds() int64 {
	if s, ok := intervalSeconds[i]; ok {
		return s
	}

	d, err := str2duration.ParseDuration(string(i))
	if err != nil {
		return 0
	}

	return int64(d.Seconds())
}

// Duration returns the bar duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Seconds()) * time.Second
}

// Valid reports whether the interval parses to a positive bar duration.
func (i Interval) Valid() bool { return i.Seconds() > 0 }

func (i Interval) String() string { return string(i) }

// Truncate floors a unix timestamp to the start of its containing bucket.
func (i Interval) Truncate(t int64) int64 {
	secs := i.Seconds()
	if secs <= 0 {
		return t
	}

	bucket := (t / secs) * secs
	if t < 0 && t%secs != 0 {
		bucket -= secs
	}

	return bucket
}
