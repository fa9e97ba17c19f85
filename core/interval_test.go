package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterval_Seconds(t *testing.T) {
	assert.Equal(t, int64(60), Interval1m.Seconds())
	assert.Equal(t, int64(3600), Interval1h.Seconds())
	assert.Equal(t, int64(604800), Interval1w.Seconds())

	// Non-canonical intervals fall back to duration parsing
	assert.Equal(t, int64(120), Interval("2m").Seconds())
	assert.Equal(t, int64(0), Interval("bogus").Seconds())
	assert.Equal(t, int64(0), Interval("").Seconds())
}

func TestInterval_Valid(t *testing.T) {
	assert.True(t, Interval15m.Valid())
	assert.True(t, Interval("12h").Valid())
	assert.False(t, Interval("nope").Valid())
}

func TestInterval_Truncate(t *testing.T) {
	assert.Equal(t, int64(3600), Interval1h.Truncate(3723))
	assert.Equal(t, int64(3600), Interval1h.Truncate(3600))
	assert.Equal(t, int64(0), Interval1h.Truncate(3599))

	// Negative timestamps still floor toward minus infinity
	assert.Equal(t, int64(-3600), Interval1h.Truncate(-1))
	assert.Equal(t, int64(-3600), Interval1h.Truncate(-3600))

	// Unparsable intervals leave the timestamp alone
	assert.Equal(t, int64(3723), Interval("bogus").Truncate(3723))
}

func TestCandleSeries_AppendReplacesSameBucket(t *testing.T) {
	s := NewCandleSeries(Interval1m)

	base := time.Unix(1600000020, 0).UTC()
	s.Append(Candle{Pair: "BTCUSDT", Time: base, Close: 100})
	s.Append(Candle{Pair: "BTCUSDT", Time: base.Add(30 * time.Second), Close: 101})

	require.Equal(t, 1, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 101.0, last.Close)

	s.Append(Candle{Pair: "BTCUSDT", Time: base.Add(time.Minute), Close: 102})
	assert.Equal(t, 2, s.Len())
}

func TestCandleSeries_AtLooksUpByBucket(t *testing.T) {
	base := time.Unix(1600000020, 0).UTC()
	s := NewCandleSeries(Interval1m,
		Candle{Pair: "BTCUSDT", Time: base, Close: 100},
		Candle{Pair: "BTCUSDT", Time: base.Add(time.Minute), Close: 101},
		Candle{Pair: "BTCUSDT", Time: base.Add(2 * time.Minute), Close: 102},
	)

	c, ok := s.At(base.Unix() + 90)
	require.True(t, ok)
	assert.Equal(t, 101.0, c.Close)

	_, ok = s.At(base.Unix() - 60)
	assert.False(t, ok)
	_, ok = s.At(base.Unix() + 10*60)
	assert.False(t, ok)
}

func TestCandleSeries_AtHandlesGaps(t *testing.T) {
	base := time.Unix(1600000020, 0).UTC()
	s := NewCandleSeries(Interval1m,
		Candle{Pair: "BTCUSDT", Time: base, Close: 100},
		// One-bucket gap
		Candle{Pair: "BTCUSDT", Time: base.Add(2 * time.Minute), Close: 102},
	)

	c, ok := s.At(base.Unix() + 2*60)
	require.True(t, ok)
	assert.Equal(t, 102.0, c.Close)
}
