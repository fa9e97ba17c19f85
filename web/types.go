package web

import (
	"time"

	"github.com/chartmark/chartmark/draw"
)

// Candle is the JSON shape of one OHLCV bar sent to the client
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Volume float64   `json:"volume"`
}

// IndicatorLine is a computed overlay line sent with the initial data
type IndicatorLine struct {
	Name   string      `json:"name"`
	Color  string      `json:"color"`
	Time   []time.Time `json:"time"`
	Values []float64   `json:"value"`
}

// drawOp is one recorded canvas primitive of a rendered frame
type drawOp struct {
	Op     string           `json:"op"`
	From   draw.ScreenPoint `json:"from,omitempty"`
	To     draw.ScreenPoint `json:"to,omitempty"`
	At     draw.ScreenPoint `json:"at,omitempty"`
	Radius float64          `json:"radius,omitempty"`
	Text   string           `json:"text,omitempty"`
	Style  draw.Style       `json:"style"`
}

// frameCanvas implements draw.Canvas by recording primitives for the wire
type frameCanvas struct {
	width  int
	height int
	ops    []drawOp
}

func newFrameCanvas(width, height int) *frameCanvas {
	return &frameCanvas{width: width, height: height}
}

func (c *frameCanvas) Size() (int, int) { return c.width, c.height }

func (c *frameCanvas) Clear() { c.ops = c.ops[:0] }

func (c *frameCanvas) Line(from, to draw.ScreenPoint, style draw.Style) {
	c.ops = append(c.ops, drawOp{Op: "line", From: from, To: to, Style: style})
}

func (c *frameCanvas) Rect(from, to draw.ScreenPoint, style draw.Style) {
	c.ops = append(c.ops, drawOp{Op: "rect", From: from, To: to, Style: style})
}

func (c *frameCanvas) Marker(at draw.ScreenPoint, radius float64, style draw.Style) {
	c.ops = append(c.ops, drawOp{Op: "marker", At: at, Radius: radius, Style: style})
}

func (c *frameCanvas) Text(at draw.ScreenPoint, text string, style draw.Style) {
	c.ops = append(c.ops, drawOp{Op: "text", At: at, Text: text, Style: style})
}
