package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chartmark/chartmark/core"
	"github.com/chartmark/chartmark/draw"
)

const (
	// framePeriod paces outgoing frames; redraw requests between ticks
	// coalesce into one frame.
	framePeriod = 33 * time.Millisecond

	sessionEventBuffer = 64
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// clientEvent is one decoded message from the browser
type clientEvent struct {
	Type     string  `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Tool     string  `json:"tool"`
	Interval string  `json:"interval"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	DeltaX   float64 `json:"dx"`
	Factor   float64 `json:"factor"`
	Snap     bool    `json:"snap"`
	Lock     bool    `json:"lock"`
	ID       string  `json:"id"`
}

// SessionManager accepts websocket connections and runs one drawing session
// per connection.
type SessionManager struct {
	sync.RWMutex
	sessions map[*session]struct{}
	upgrader websocket.Upgrader
	log      core.Logger
	chart    *Chart
}

// NewSessionManager creates a new session manager
func NewSessionManager(log core.Logger, chart *Chart) *SessionManager {
	return &SessionManager{
		sessions: make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:   log,
		chart: chart,
	}
}

// HandleWebSocket upgrades the connection and starts a drawing session
func (m *SessionManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "Missing symbol parameter", http.StatusBadRequest)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Error("Failed to upgrade connection to WebSocket: ", err)
		return
	}

	s := newSession(m, conn, symbol, m.chart.Interval())

	m.Lock()
	m.sessions[s] = struct{}{}
	count := len(m.sessions)
	m.Unlock()
	m.log.Info("New drawing session for symbol: ", symbol, ", total sessions: ", count)

	go s.readPump()
	go s.run()
}

func (m *SessionManager) drop(s *session) {
	m.Lock()
	delete(m.sessions, s)
	remaining := len(m.sessions)
	m.Unlock()
	m.log.Info("Drawing session closed, remaining: ", remaining)
}

// BroadcastCandle delivers a candle update to every session on its pair
func (m *SessionManager) BroadcastCandle(candle core.Candle) {
	m.RLock()
	defer m.RUnlock()

	for s := range m.sessions {
		if s.symbol != candle.Pair {
			continue
		}
		select {
		case s.candles <- candle:
		default:
			// Session is behind; it will resync from the next candle
		}
	}
}

// session is one browser connection. The engine, viewport and candle window
// are owned exclusively by the run loop goroutine; the read pump only decodes
// messages into the events channel.
type session struct {
	manager *SessionManager
	conn    *websocket.Conn
	symbol  string

	events  chan clientEvent
	candles chan core.Candle
	closed  chan struct{}

	series   *core.CandleSeries
	viewport *draw.Viewport
	engine   *draw.Engine
	canvas   *frameCanvas

	writeMu sync.Mutex
}

func newSession(m *SessionManager, conn *websocket.Conn, symbol string, interval core.Interval) *session {
	candles, _ := m.chart.CandlesSnapshot(symbol)
	series := core.NewCandleSeries(interval, candles...)

	viewport := draw.NewViewport(series, 800, 400)
	canvas := newFrameCanvas(800, 400)

	s := &session{
		manager:  m,
		conn:     conn,
		symbol:   symbol,
		events:   make(chan clientEvent, sessionEventBuffer),
		candles:  make(chan core.Candle, sessionEventBuffer),
		closed:   make(chan struct{}),
		series:   series,
		viewport: viewport,
		canvas:   canvas,
	}

	s.engine = draw.NewEngine(m.log, viewport, series, symbol, interval,
		draw.WithStorage(m.chart.storage))
	s.engine.OnError(func(err error) {
		s.send(WebSocketMessage{Type: "error", Payload: map[string]any{
			"message": err.Error(),
		}})
	})
	s.engine.OnAnnotationComplete(func(a core.Annotation) {
		s.send(WebSocketMessage{Type: "annotationCreated", Payload: a})
	})
	s.engine.OnAnnotationRemoved(func(id string) {
		s.send(WebSocketMessage{Type: "annotationRemoved", Payload: map[string]any{
			"id": id,
		}})
	})

	return s
}

// readPump decodes client messages into the session event channel
func (s *session) readPump() {
	defer close(s.closed)

	s.conn.SetPingHandler(func(string) error {
		return s.conn.WriteControl(websocket.PongMessage, []byte{}, time.Now().Add(10*time.Second))
	})

	for {
		var event clientEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.manager.log.Error("WebSocket read error: ", err)
			}
			return
		}

		select {
		case s.events <- event:
		case <-s.closed:
			return
		}
	}
}

// run is the single goroutine that owns the engine. Pointer events, candle
// updates and the frame ticker all funnel through this loop.
func (s *session) run() {
	defer func() {
		s.engine.Destroy()
		s.conn.Close()
		s.manager.drop(s)
	}()

	s.loadDrawings()
	s.sendInitialData()
	s.engine.Render(s.canvas)
	s.sendFrame()

	ticker := time.NewTicker(framePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case candle := <-s.candles:
			s.series.Append(candle)
			s.viewport.FitPriceScale()
			s.send(WebSocketMessage{Type: "newCandle", Payload: candleJSON(candle)})
			s.engine.SetSeries(s.series)
		case event := <-s.events:
			s.dispatch(event)
		case <-ticker.C:
			if s.engine.NeedsRender() {
				s.engine.Render(s.canvas)
				s.sendFrame()
			}
		}
	}
}

// dispatch applies one client event to the engine
func (s *session) dispatch(event clientEvent) {
	mods := draw.Modifiers{Snap: event.Snap, HorizontalLock: event.Lock}

	switch event.Type {
	case "pointerdown":
		s.engine.PointerDown(event.X, event.Y, mods)
	case "pointermove":
		s.engine.PointerMove(event.X, event.Y, mods)
	case "settool":
		s.engine.SetTool(core.Tool(event.Tool))
	case "delete":
		if event.ID != "" {
			s.engine.RemoveAnnotation(event.ID)
		} else {
			s.engine.DeleteSelected()
		}
	case "clear":
		s.engine.ClearAll()
	case "resize":
		if event.Width > 0 && event.Height > 0 {
			s.viewport.Resize(event.Width, event.Height)
			s.viewport.FitPriceScale()
			s.canvas = newFrameCanvas(event.Width, event.Height)
			s.engine.SetSeries(s.series)
		}
	case "pan":
		s.viewport.Pan(event.DeltaX)
		s.viewport.FitPriceScale()
		s.engine.SetSeries(s.series)
	case "zoom":
		s.viewport.Zoom(event.Factor)
		s.viewport.FitPriceScale()
		s.engine.SetSeries(s.series)
	case "setinterval":
		s.switchInterval(core.Interval(event.Interval))
	default:
		s.manager.log.Warn("Unknown client event: ", event.Type)
	}
}

// switchInterval reloads the candle window at the new interval and remaps the
// engine's annotations from their retained base anchors.
func (s *session) switchInterval(to core.Interval) {
	if !to.Valid() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	candles, err := s.manager.chart.feeder.CandlesByLimit(ctx, s.symbol, to, s.manager.chart.candleLimit)
	if err != nil {
		s.manager.log.WithError(err).Error("interval switch candle reload failed")
		s.send(WebSocketMessage{Type: "error", Payload: map[string]any{
			"message": "failed to load candles for " + to.String(),
		}})
		return
	}

	s.series = core.NewCandleSeries(to, candles...)
	s.viewport.SetSeries(s.series)
	s.engine.SetSeries(s.series)
	s.engine.SetInterval(to)

	s.send(WebSocketMessage{Type: "intervalChanged", Payload: map[string]any{
		"interval": to,
		"candles":  candlesJSON(s.series.Candles()),
	}})
}

// loadDrawings pulls the persisted drawings for this session's scope
func (s *session) loadDrawings() {
	if s.manager.chart.storage == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	drawings, err := s.manager.chart.storage.Drawings(ctx, s.symbol, s.engine.Interval())
	if err != nil {
		s.manager.log.WithError(err).Error("failed to load drawings")
		return
	}

	s.engine.LoadAnnotations(drawings)
}

// sendInitialData ships the candle window, indicators and stored drawings
func (s *session) sendInitialData() {
	annotations := s.engine.Store().All()

	payload := map[string]any{
		"symbol":     s.symbol,
		"interval":   s.engine.Interval(),
		"candles":    candlesJSON(s.series.Candles()),
		"drawings":   annotations,
		"indicators": computeIndicators(s.manager.chart.indicators, s.series),
	}

	s.send(WebSocketMessage{Type: "initialData", Payload: payload})
}

func (s *session) sendFrame() {
	s.send(WebSocketMessage{Type: "frame", Payload: map[string]any{
		"ops": s.canvas.ops,
	}})
}

func (s *session) send(msg WebSocketMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(msg); err != nil {
		s.manager.log.Error("Error sending WebSocket message: ", err)
	}
}

func candleJSON(c core.Candle) Candle {
	return Candle{
		Time:   c.Time,
		Open:   c.Open,
		Close:  c.Close,
		High:   c.High,
		Low:    c.Low,
		Volume: c.Volume,
	}
}

func candlesJSON(candles []core.Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		out = append(out, candleJSON(c))
	}
	return out
}
