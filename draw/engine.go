package draw

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/google/uuid"
)

const (
	// priceEpsilon bounds the price span below which a completed gesture is
	// treated as an accidental double click.
	priceEpsilon = 1e-9

	defaultPersistTimeout = 10 * time.Second
	defaultLineWidth      = 2
)

var defaultColors = map[core.Kind]string{
	core.KindLine:      "#2962ff",
	core.KindFib:       "#787b86",
	core.KindRectangle: "#089981",
}

// Engine drives creation and editing of annotations from pointer input and
// owns the annotation store. It is deliberately not goroutine safe: confine
// it to the single event loop that owns the chart, the same cooperative
// model the underlying surface assumes. Persistence calls are asynchronous
// and optimistic; failures reach the error callback without rolling back
// local state.
type Engine struct {
	symbol   string
	interval core.Interval

	surface core.ChartSurface
	series  *core.CandleSeries
	mapper  *Mapper
	store   *Store
	hits    *HitTester
	render  *Renderer
	storage core.DrawingStorage
	log     core.Logger

	tool core.Tool
	st   state

	cursor    ScreenPoint
	hasCursor bool
	dirty     bool
	destroyed bool

	persistTimeout time.Duration

	onComplete func(core.Annotation)
	onUpdated  func(core.Annotation)
	onRemoved  func(string)
	onError    func(error)
}

// Option configures an Engine instance
type Option func(*Engine)

// WithStorage sets the persistence gateway for completed and edited
// annotations.
func WithStorage(storage core.DrawingStorage) Option {
	return func(e *Engine) { e.storage = storage }
}

// WithWidth sets the provider for the drawing target's pixel width, used by
// the leftward reference-column scan.
func WithWidth(width func() int) Option {
	return func(e *Engine) { e.mapper.width = width }
}

// WithPersistTimeout bounds each asynchronous persistence call.
func WithPersistTimeout(d time.Duration) Option {
	return func(e *Engine) { e.persistTimeout = d }
}

// NewEngine creates an annotation engine for one (symbol, interval) over the
// given surface and candle window.
func NewEngine(log core.Logger, surface core.ChartSurface, series *core.CandleSeries,
	symbol string, interval core.Interval, options ...Option) *Engine {

	e := &Engine{
		symbol:         symbol,
		interval:       interval,
		surface:        surface,
		series:         series,
		store:          NewStore(),
		log:            log,
		st:             idle(),
		persistTimeout: defaultPersistTimeout,
	}

	e.mapper = NewMapper(surface, series, func() int { return 0 })
	if v, ok := surface.(*Viewport); ok {
		e.mapper.width = v.Width
	}

	e.hits = NewHitTester(e.store, e.mapper)
	e.render = NewRenderer(e.mapper)

	for _, option := range options {
		option(e)
	}

	return e
}

// Store exposes the annotation store for read access.
func (e *Engine) Store() *Store { return e.store }

// Mapper exposes the coordinate mapper.
func (e *Engine) Mapper() *Mapper { return e.mapper }

// HitTester exposes the hit tester.
func (e *Engine) HitTester() *HitTester { return e.hits }

// Symbol returns the active symbol.
func (e *Engine) Symbol() string { return e.symbol }

// Interval returns the active interval.
func (e *Engine) Interval() core.Interval { return e.interval }

// OnAnnotationComplete registers the creation callback.
func (e *Engine) OnAnnotationComplete(fn func(core.Annotation)) { e.onComplete = fn }

// OnAnnotationUpdated registers the edit callback.
func (e *Engine) OnAnnotationUpdated(fn func(core.Annotation)) { e.onUpdated = fn }

// OnAnnotationRemoved registers the deletion callback.
func (e *Engine) OnAnnotationRemoved(fn func(string)) { e.onRemoved = fn }

// OnError registers the callback for persistence failures.
func (e *Engine) OnError(fn func(error)) { e.onError = fn }

// SetTool arms the given tool. Switching away mid-drawing tears down the
// in-progress preview.
func (e *Engine) SetTool(tool core.Tool) {
	if e.destroyed {
		return
	}

	if e.st.kind == stateDrawing && tool != e.st.tool {
		e.st = idle()
		e.hasCursor = false
	}

	e.tool = tool
	e.invalidate()
}

// Tool returns the armed tool.
func (e *Engine) Tool() core.Tool { return e.tool }

// Selected returns the id of the currently selected annotation.
func (e *Engine) Selected() (string, bool) {
	if e.st.kind == stateSelected || e.st.kind == stateEditing {
		return e.st.id, true
	}
	return "", false
}

// LoadAnnotations replaces the store content with a freshly loaded set and
// clears any selection or in-progress gesture.
func (e *Engine) LoadAnnotations(list []*core.Annotation) {
	if e.destroyed {
		return
	}

	e.store.Replace(list)
	e.st = idle()
	e.hasCursor = false
	e.invalidate()
}

// SetSeries swaps the candle window after a data reload.
func (e *Engine) SetSeries(series *core.CandleSeries) {
	e.series = series
	e.mapper.SetSeries(series)
	e.invalidate()
}

// SetInterval re-anchors every stored annotation for the new display
// interval. Anchors are recomputed from each annotation's retained base, not
// from the last displayed state.
func (e *Engine) SetInterval(to core.Interval) {
	if e.destroyed || to == e.interval || to.Seconds() <= 0 {
		return
	}

	e.interval = to
	for _, a := range e.store.All() {
		*a = Remap(*a, to)
	}

	e.invalidate()
}

// PointerDown feeds a click into the state machine.
func (e *Engine) PointerDown(x, y float64, mods Modifiers) {
	if e.destroyed {
		return
	}

	switch {
	case e.st.kind == stateDrawing:
		e.finishDrawing(x, y, mods)
	case e.tool != core.ToolNone:
		e.beginDrawing(x, y, mods)
	default:
		e.selectAt(x, y)
	}

	e.invalidate()
}

// PointerMove feeds a pointer movement into the state machine. While drawing
// it only updates the transient preview; while editing it commits the moved
// handle.
func (e *Engine) PointerMove(x, y float64, mods Modifiers) {
	if e.destroyed {
		return
	}

	switch e.st.kind {
	case stateDrawing:
		e.cursor = ScreenPoint{X: x, Y: y}
		e.hasCursor = true
		e.invalidate()
	case stateEditing:
		e.dragHandle(x, y, mods)
	}
}

// DeleteSelected removes the selected annotation, requests deletion from the
// gateway and returns to idle. A stale selection is a no-op.
func (e *Engine) DeleteSelected() {
	if e.destroyed {
		return
	}

	id, ok := e.Selected()
	e.st = idle()
	if !ok {
		return
	}

	if e.store.Remove(id) {
		e.persistDelete(id)
		if e.onRemoved != nil {
			e.onRemoved(id)
		}
	}

	e.invalidate()
}

// RemoveAnnotation removes an annotation by id, clearing the selection when
// it targets the selected one. Unknown ids are ignored.
func (e *Engine) RemoveAnnotation(id string) {
	if e.destroyed {
		return
	}

	if sel, ok := e.Selected(); ok && sel == id {
		e.st = idle()
	}

	if e.store.Remove(id) {
		e.persistDelete(id)
		if e.onRemoved != nil {
			e.onRemoved(id)
		}
		e.invalidate()
	}
}

// ClearAll drops every annotation, tears down any in-progress gesture and
// requests bulk deletion from the gateway.
func (e *Engine) ClearAll() {
	if e.destroyed {
		return
	}

	e.store.Clear()
	e.st = idle()
	e.hasCursor = false
	e.persistDeleteAll()
	e.invalidate()
}

// NeedsRender reports whether state changed since the last Render call.
// Redraw requests between frames coalesce into this single flag.
func (e *Engine) NeedsRender() bool { return e.dirty }

// Render draws every stored annotation plus the in-progress preview onto the
// target and clears the pending-frame flag. Shapes whose anchors no longer
// project are skipped silently.
func (e *Engine) Render(c Canvas) {
	e.dirty = false
	c.Clear()

	selectedID, _ := e.Selected()
	for _, a := range e.store.All() {
		e.render.Draw(c, *a, a.ID == selectedID)
	}

	if e.st.kind == stateDrawing && e.hasCursor {
		e.render.DrawPreview(c, e.st.tool.Kind(), e.st.start, e.cursor)
	}
}

// Destroy releases callbacks and drops all local state. Subsequent calls on
// the engine are no-ops.
func (e *Engine) Destroy() {
	e.destroyed = true
	e.store.Clear()
	e.st = idle()
	e.hasCursor = false
	e.onComplete = nil
	e.onUpdated = nil
	e.onRemoved = nil
	e.onError = nil
}

func (e *Engine) beginDrawing(x, y float64, mods Modifiers) {
	p, ok := e.mapper.ToSemantic(x, y)
	if !ok {
		// Expected transient while data loads; swallow the click
		return
	}

	if mods.Snap {
		p = e.snap(p)
	}

	e.st = drawing(e.tool, p)
	e.cursor = ScreenPoint{X: x, Y: y}
	e.hasCursor = true
}

func (e *Engine) finishDrawing(x, y float64, mods Modifiers) {
	p, ok := e.mapper.ToSemantic(x, y)
	if !ok {
		return
	}

	if mods.Snap {
		p = e.snap(p)
	}
	if mods.HorizontalLock {
		p.Price = e.st.start.Price
	}

	start := e.st.start
	if absInt64(p.Time-start.Time) < 1 && math.Abs(p.Price-start.Price) < priceEpsilon {
		// Accidental double click; nothing to create
		e.st = idle()
		e.hasCursor = false
		return
	}

	now := time.Now().UTC()
	kind := e.st.tool.Kind()
	a := &core.Annotation{
		ID:           uuid.NewString(),
		Symbol:       e.symbol,
		Interval:     e.interval,
		Kind:         kind,
		Points:       [2]core.Point{start, p},
		Color:        defaultColors[kind],
		LineWidth:    defaultLineWidth,
		BasePoints:   [2]core.Point{start, p},
		BaseInterval: e.interval,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	e.store.Add(a)
	e.persistSave(*a)
	if e.onComplete != nil {
		e.onComplete(*a)
	}

	// One-shot tools: creation disarms the tool
	e.st = idle()
	e.tool = core.ToolNone
	e.hasCursor = false
}

func (e *Engine) selectAt(x, y float64) {
	prev := e.st

	if hit, ok := e.hits.HitTestHandles(x, y); ok {
		sameHandle := prev.kind == stateSelected && prev.id == hit.ID &&
			prev.hasHandle && prev.handle == hit.Handle
		if sameHandle {
			e.st = editing(hit.ID, hit.Handle)
			return
		}

		e.st = selectedHandle(hit.ID, hit.Handle)
		return
	}

	if id, ok := e.hits.HitTestBody(x, y); ok {
		e.st = selected(id)
		return
	}

	// Empty space clears selection and commits any edit in progress
	e.st = idle()
}

func (e *Engine) dragHandle(x, y float64, mods Modifiers) {
	a, ok := e.store.Get(e.st.id)
	if !ok {
		// Selection went stale under a reload
		e.st = idle()
		return
	}

	p, okSem := e.mapper.ToSemantic(x, y)
	if !okSem {
		return
	}

	if mods.Snap {
		p = e.snap(p)
	}
	if mods.HorizontalLock {
		opposite := core.HandleEnd
		if e.st.handle == core.HandleEnd {
			opposite = core.HandleStart
		}
		p.Price = a.PointAt(opposite).Price
	}

	a.SetPoint(e.st.handle, p)

	// Edits re-anchor to the interval they happen in
	a.BasePoints = a.Points
	a.BaseInterval = e.interval
	a.Interval = e.interval
	a.UpdatedAt = time.Now().UTC()

	e.persistSave(*a)
	if e.onUpdated != nil {
		e.onUpdated(*a)
	}

	e.invalidate()
}

// snap moves a point's price to the nearest OHLC value of the candle whose
// bucket contains it. Points outside the loaded window stay untouched.
func (e *Engine) snap(p core.Point) core.Point {
	c, ok := e.series.At(p.Time)
	if !ok {
		return p
	}

	best := c.Open
	for _, v := range []float64{c.High, c.Low, c.Close} {
		if math.Abs(v-p.Price) < math.Abs(best-p.Price) {
			best = v
		}
	}

	p.Price = best
	return p
}

func (e *Engine) invalidate() { e.dirty = true }

func (e *Engine) persistSave(a core.Annotation) {
	if e.storage == nil {
		return
	}

	fail := e.failFunc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()

		if err := e.storage.SaveDrawing(ctx, &a); err != nil {
			fail(fmt.Errorf("save drawing %s: %w", a.ID, err))
		}
	}()
}

func (e *Engine) persistDelete(id string) {
	if e.storage == nil {
		return
	}

	fail := e.failFunc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()

		if err := e.storage.DeleteDrawing(ctx, id); err != nil {
			fail(fmt.Errorf("delete drawing %s: %w", id, err))
		}
	}()
}

func (e *Engine) persistDeleteAll() {
	if e.storage == nil {
		return
	}

	symbol, interval := e.symbol, e.interval
	fail := e.failFunc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()

		if _, err := e.storage.DeleteAllDrawings(ctx, symbol, interval); err != nil {
			fail(fmt.Errorf("clear drawings %s %s: %w", symbol, interval, err))
		}
	}()
}

// failFunc snapshots the logger and error callback for a persistence
// goroutine. In-flight saves must not read engine fields: the owner
// goroutine may rewrite them through OnError or Destroy at any time.
func (e *Engine) failFunc() func(error) {
	log, onError := e.log, e.onError
	return func(err error) {
		if log != nil {
			log.WithError(err).Error("drawing persistence failed")
		}
		if onError != nil {
			onError(err)
		}
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
