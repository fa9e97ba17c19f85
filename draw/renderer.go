package draw

import (
	"math"
	"strconv"

	"github.com/chartmark/chartmark/core"
)

const (
	handleRadius = 4.0
	previewColor = "#9aa0a6"
	// rectFillAlpha is the hex alpha suffix for translucent rectangle fills.
	rectFillAlpha = "33"
)

// fibLevels are the retracement fractions drawn between a fibonacci
// annotation's two anchor prices.
var fibLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// Style describes how a primitive is stroked and filled.
type Style struct {
	Color string `json:"color"`
	Width int    `json:"width,omitempty"`
	Fill  string `json:"fill,omitempty"`
}

// Canvas is the drawing target handle injected at construction. The engine
// issues primitives only; the host owns rasterization.
type Canvas interface {
	Size() (width, height int)
	Clear()
	Line(a, b ScreenPoint, style Style)
	Rect(a, b ScreenPoint, style Style)
	Marker(p ScreenPoint, radius float64, style Style)
	Text(p ScreenPoint, text string, style Style)
}

// Renderer projects stored annotations through the mapper and draws them
// onto a canvas. Shapes with an unresolvable anchor are skipped silently:
// that is the expected outcome for anchors scrolled beyond any reference.
type Renderer struct {
	mapper *Mapper
}

// NewRenderer creates a renderer over the given mapper.
func NewRenderer(mapper *Mapper) *Renderer {
	return &Renderer{mapper: mapper}
}

// Draw renders one annotation, with endpoint handle markers when selected.
func (r *Renderer) Draw(c Canvas, a core.Annotation, selected bool) {
	p1, ok1 := r.mapper.ToScreen(a.Points[0])
	p2, ok2 := r.mapper.ToScreen(a.Points[1])
	if !ok1 || !ok2 {
		return
	}

	style := Style{Color: a.Color, Width: a.LineWidth}
	if style.Color == "" {
		style.Color = defaultColors[a.Kind]
	}
	if style.Width < 1 {
		style.Width = defaultLineWidth
	}

	drawShape(c, a.Kind, p1, p2, style, true)

	if selected {
		handleStyle := Style{Color: style.Color, Width: 1, Fill: "#ffffff"}
		c.Marker(p1, handleRadius, handleStyle)
		c.Marker(p2, handleRadius, handleStyle)
	}
}

// DrawPreview renders the in-progress shape between the drawing start point
// and the transient pointer position, in a muted color.
func (r *Renderer) DrawPreview(c Canvas, kind core.Kind, start core.Point, cursor ScreenPoint) {
	p1, ok := r.mapper.ToScreen(start)
	if !ok {
		return
	}

	style := Style{Color: previewColor, Width: 1}
	drawShape(c, kind, p1, cursor, style, false)
}

func drawShape(c Canvas, kind core.Kind, p1, p2 ScreenPoint, style Style, labels bool) {
	switch kind {
	case core.KindRectangle:
		fillStyle := style
		fillStyle.Fill = style.Color + rectFillAlpha
		c.Rect(p1, p2, fillStyle)
	case core.KindFib:
		drawFib(c, p1, p2, style, labels)
	default:
		c.Line(p1, p2, style)
	}
}

func drawFib(c Canvas, p1, p2 ScreenPoint, style Style, labels bool) {
	minX, maxX := math.Min(p1.X, p2.X), math.Max(p1.X, p2.X)

	for _, level := range fibLevels {
		y := p1.Y + (p2.Y-p1.Y)*level
		c.Line(ScreenPoint{X: minX, Y: y}, ScreenPoint{X: maxX, Y: y}, style)

		if labels {
			label := strconv.FormatFloat(level*100, 'f', -1, 64) + "%"
			c.Text(ScreenPoint{X: minX, Y: y}, label, style)
		}
	}
}
