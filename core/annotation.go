package core

import "time"

// Kind identifies the geometric primitive of an annotation.
// The wire values match the drawings table of the persistence layer.
type Kind string

const (
	KindLine      Kind = "line"
	KindFib       Kind = "fibonacci"
	KindRectangle Kind = "rectangle"
)

// Tool is the active drawing tool. ToolNone arms selection and editing,
// any other value arms two-click creation of the matching kind.
type Tool string

const (
	ToolNone      Tool = ""
	ToolLine      Tool = "line"
	ToolFib       Tool = "fibonacci"
	ToolRectangle Tool = "rectangle"
)

// Kind returns the annotation kind a tool produces.
func (t Tool) Kind() Kind { return Kind(t) }

// Handle is one of the two editable endpoints of an annotation.
type Handle int

const (
	HandleStart Handle = iota
	HandleEnd
)

func (h Handle) String() string {
	if h == HandleEnd {
		return "end"
	}
	return "start"
}

// Point is a semantic chart coordinate. Time is unix seconds (UTC),
// bucket-aligned to the bar duration of the interval it was authored under.
type Point struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// Annotation is a persisted two-point drawing overlaid on the chart.
// BasePoints and BaseInterval retain the originally authored anchors so
// interval switches always re-derive from the base instead of compounding
// rounding from the last displayed state.
type Annotation struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Symbol       string    `json:"symbol" gorm:"index:idx_symbol_interval"`
	Interval     Interval  `json:"interval" gorm:"index:idx_symbol_interval"`
	Kind         Kind      `json:"tool"`
	Points       [2]Point  `json:"points" gorm:"serializer:json"`
	Color        string    `json:"color,omitempty"`
	LineWidth    int       `json:"lineWidth,omitempty"`
	BasePoints   [2]Point  `json:"basePoints" gorm:"serializer:json"`
	BaseInterval Interval  `json:"baseInterval"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// PointAt returns the anchor for the given handle.
func (a Annotation) PointAt(h Handle) Point {
	if h == HandleEnd {
		return a.Points[1]
	}
	return a.Points[0]
}

// SetPoint replaces the anchor for the given handle.
func (a *Annotation) SetPoint(h Handle, p Point) {
	if h == HandleEnd {
		a.Points[1] = p
		return
	}
	a.Points[0] = p
}
