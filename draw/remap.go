package draw

import "github.com/chartmark/chartmark/core"

// Remap recomputes an annotation's display anchors for a new interval. The
// result keeps the same id and the originally authored BasePoints and
// BaseInterval; anchors are always re-derived from that base so repeated
// switches never accumulate rounding drift and remain lossless round trips.
//
// Moving to a coarser interval snaps both handles down to the start of the
// containing coarser bucket. Moving to a finer one maps the start handle to
// the bucket's first finer-bar open and the end handle to its last, which
// keeps the shape's visual span stable across timeframe flips.
func Remap(a core.Annotation, to core.Interval) core.Annotation {
	out := a
	out.Interval = to

	from := a.BaseInterval
	if from.Seconds() <= 0 || to.Seconds() <= 0 || from == to {
		out.Points = a.BasePoints
		return out
	}

	out.Points[0] = remapPoint(a.BasePoints[0], from, to, false)
	out.Points[1] = remapPoint(a.BasePoints[1], from, to, true)
	return out
}

func remapPoint(p core.Point, from, to core.Interval, endHandle bool) core.Point {
	fromSecs, toSecs := from.Seconds(), to.Seconds()

	if toSecs > fromSecs {
		// Coarsening has one canonical target: the containing bucket start
		p.Time = to.Truncate(p.Time)
		return p
	}

	bucketStart := from.Truncate(p.Time)
	if endHandle {
		p.Time = bucketStart + (fromSecs - toSecs)
	} else {
		p.Time = bucketStart
	}

	return p
}
