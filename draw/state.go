package draw

import "github.com/chartmark/chartmark/core"

// Modifiers carries the modifier keys held during a pointer event.
type Modifiers struct {
	// Snap replaces the point's price with the nearest OHLC value of the
	// candle whose bucket contains it.
	Snap bool
	// HorizontalLock forces the point's price to the anchor point's price.
	HorizontalLock bool
}

// stateKind tags the interaction state value.
type stateKind uint8

const (
	stateIdle stateKind = iota
	stateDrawing
	stateSelected
	stateEditing
)

// state is the single tagged interaction state value. Exactly one shape can
// be in progress at a time; illegal combinations such as drawing while
// editing are unrepresentable.
type state struct {
	kind stateKind

	// Drawing
	tool  core.Tool
	start core.Point

	// Selected, Editing
	id        string
	handle    core.Handle
	hasHandle bool
}

func idle() state { return state{kind: stateIdle} }

func drawing(tool core.Tool, start core.Point) state {
	return state{kind: stateDrawing, tool: tool, start: start}
}

func selected(id string) state {
	return state{kind: stateSelected, id: id}
}

func selectedHandle(id string, h core.Handle) state {
	return state{kind: stateSelected, id: id, handle: h, hasHandle: true}
}

func editing(id string, h core.Handle) state {
	return state{kind: stateEditing, id: id, handle: h, hasHandle: true}
}
