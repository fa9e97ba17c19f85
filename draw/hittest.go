package draw

import (
	"math"

	"github.com/chartmark/chartmark/core"
)

const (
	// handleThreshold is the pixel radius within which a click grabs an
	// endpoint handle.
	handleThreshold = 8.0
	// bodyThreshold is the pixel tolerance for selecting a shape by its body.
	bodyThreshold = 6.0
)

// HandleHit identifies the endpoint handle closest to a pointer position.
type HandleHit struct {
	ID     string
	Handle core.Handle
}

// HitTester finds annotations near a pixel position using the projected
// positions supplied by the mapper.
type HitTester struct {
	store  *Store
	mapper *Mapper
}

// NewHitTester creates a hit tester over the given store and mapper.
func NewHitTester(store *Store, mapper *Mapper) *HitTester {
	return &HitTester{store: store, mapper: mapper}
}

// HitTestHandles returns the globally closest endpoint handle within the
// handle threshold. For line shapes the segment body also competes: a hit on
// the body counts for whichever endpoint is nearer, on the same distance
// metric as direct handle hits.
func (h *HitTester) HitTestHandles(x, y float64) (HandleHit, bool) {
	const unset = math.MaxFloat64

	best := HandleHit{}
	bestDist := unset
	limit := handleThreshold * handleThreshold

	for _, a := range h.store.All() {
		p1, ok1 := h.mapper.ToScreen(a.Points[0])
		p2, ok2 := h.mapper.ToScreen(a.Points[1])
		if !ok1 || !ok2 {
			continue
		}

		d1 := squaredDistance(x, y, p1.X, p1.Y)
		if d1 <= limit && d1 < bestDist {
			best, bestDist = HandleHit{ID: a.ID, Handle: core.HandleStart}, d1
		}

		d2 := squaredDistance(x, y, p2.X, p2.Y)
		if d2 <= limit && d2 < bestDist {
			best, bestDist = HandleHit{ID: a.ID, Handle: core.HandleEnd}, d2
		}

		if a.Kind != core.KindLine {
			continue
		}

		seg := pointSegmentDistance(x, y, p1, p2)
		if segSq := seg * seg; seg <= handleThreshold && segSq < bestDist {
			handle := core.HandleStart
			if d2 < d1 {
				handle = core.HandleEnd
			}
			best, bestDist = HandleHit{ID: a.ID, Handle: handle}, segSq
		}
	}

	return best, bestDist != unset
}

// HitTestBody returns the id of the closest shape whose body lies within the
// body threshold. Line-like shapes test point-to-segment distance, rectangles
// test containment in the threshold-expanded bounding box.
func (h *HitTester) HitTestBody(x, y float64) (string, bool) {
	bestID := ""
	bestDist := math.MaxFloat64

	for _, a := range h.store.All() {
		p1, ok1 := h.mapper.ToScreen(a.Points[0])
		p2, ok2 := h.mapper.ToScreen(a.Points[1])
		if !ok1 || !ok2 {
			continue
		}

		var d float64
		switch a.Kind {
		case core.KindRectangle:
			if !inExpandedBox(x, y, p1, p2, bodyThreshold) {
				continue
			}
			d = pointSegmentDistance(x, y, p1, p2)
		default:
			d = pointSegmentDistance(x, y, p1, p2)
			if d > bodyThreshold {
				continue
			}
		}

		if d < bestDist {
			bestID, bestDist = a.ID, d
		}
	}

	return bestID, bestID != ""
}

func squaredDistance(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return dx*dx + dy*dy
}

// pointSegmentDistance returns the Euclidean distance from (x, y) to the
// segment a-b: the scalar projection onto the segment is clamped to [0, 1]
// and the distance evaluated at the resulting closest point.
func pointSegmentDistance(x, y float64, a, b ScreenPoint) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Sqrt(squaredDistance(x, y, a.X, a.Y))
	}

	t := ((x-a.X)*dx + (y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	cx, cy := a.X+t*dx, a.Y+t*dy
	return math.Sqrt(squaredDistance(x, y, cx, cy))
}

func inExpandedBox(x, y float64, a, b ScreenPoint, margin float64) bool {
	minX, maxX := math.Min(a.X, b.X)-margin, math.Max(a.X, b.X)+margin
	minY, maxY := math.Min(a.Y, b.Y)-margin, math.Max(a.Y, b.Y)+margin
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}
