package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/chartmark/chartmark/core"
)

// handleHealth handles health check requests
func (c *Chart) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	lastUpdate := c.lastUpdate
	c.Unlock()

	// unhealthy if no updates in more of 10 minutes
	if time.Since(lastUpdate) > 10*time.Minute {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte(lastUpdate.String())); err != nil {
			c.log.Error("Failed to write health status: ", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleIndex handles the main page request
func (c *Chart) handleIndex(w http.ResponseWriter, r *http.Request) {
	symbols := c.Symbols()
	sort.Strings(symbols)

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" && len(symbols) > 0 {
		http.Redirect(w, r, fmt.Sprintf("/?symbol=%s", symbols[0]), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	err := c.indexHTML.Execute(w, map[string]any{
		"symbol":   symbol,
		"symbols":  symbols,
		"interval": c.interval,
	})
	if err != nil {
		c.log.Error("Template execution failed: ", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleScript serves the transpiled chart client script
func (c *Chart) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	if _, err := w.Write([]byte(c.scriptContent)); err != nil {
		c.log.Error("Failed to write chart script: ", err)
	}
}

// handleInstruments serves the symbol list and display interval as JSON
func (c *Chart) handleInstruments(w http.ResponseWriter, _ *http.Request) {
	symbols := c.Symbols()
	sort.Strings(symbols)

	writeJSON(w, c.log, map[string]any{
		"symbols":  symbols,
		"interval": c.interval,
	})
}

// handleCandles serves the candle window for a symbol as JSON
func (c *Chart) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "Missing symbol parameter", http.StatusBadRequest)
		return
	}

	candles, ok := c.CandlesSnapshot(symbol)
	if !ok {
		http.Error(w, "Unknown symbol", http.StatusNotFound)
		return
	}

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		if limit < len(candles) {
			candles = candles[len(candles)-limit:]
		}
	}

	writeJSON(w, c.log, map[string]any{
		"symbol":   symbol,
		"interval": c.interval,
		"candles":  candlesJSON(candles),
	})
}

// handleDrawings is the REST surface over the drawing storage: list, upsert
// and delete. Sessions normally mutate drawings over the websocket; this
// endpoint serves external tooling and the initial page load.
func (c *Chart) handleDrawings(w http.ResponseWriter, r *http.Request) {
	if c.storage == nil {
		http.Error(w, "Drawing storage not configured", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c.listDrawings(w, r)
	case http.MethodPost, http.MethodPut:
		c.saveDrawing(w, r)
	case http.MethodDelete:
		c.deleteDrawings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (c *Chart) listDrawings(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := core.Interval(r.URL.Query().Get("interval"))
	if symbol == "" || !interval.Valid() {
		http.Error(w, "Missing symbol or interval parameter", http.StatusBadRequest)
		return
	}

	drawings, err := c.storage.Drawings(r.Context(), symbol, interval)
	if err != nil {
		c.log.WithError(err).Error("Failed to list drawings")
		http.Error(w, "Failed to list drawings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, c.log, drawings)
}

func (c *Chart) saveDrawing(w http.ResponseWriter, r *http.Request) {
	var a core.Annotation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "Invalid drawing payload", http.StatusBadRequest)
		return
	}

	if a.ID == "" || a.Symbol == "" || !a.Interval.Valid() {
		http.Error(w, "Drawing requires id, symbol and interval", http.StatusBadRequest)
		return
	}

	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	if err := c.storage.SaveDrawing(r.Context(), &a); err != nil {
		c.log.WithError(err).Error("Failed to save drawing")
		http.Error(w, "Failed to save drawing", http.StatusInternalServerError)
		return
	}

	writeJSON(w, c.log, a)
}

func (c *Chart) deleteDrawings(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		err := c.storage.DeleteDrawing(r.Context(), id)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case err == core.ErrDrawingNotFound:
			http.Error(w, "Drawing not found", http.StatusNotFound)
		default:
			c.log.WithError(err).Error("Failed to delete drawing")
			http.Error(w, "Failed to delete drawing", http.StatusInternalServerError)
		}
		return
	}

	symbol := r.URL.Query().Get("symbol")
	interval := core.Interval(r.URL.Query().Get("interval"))
	if symbol == "" || !interval.Valid() {
		http.Error(w, "Missing id, or symbol and interval parameters", http.StatusBadRequest)
		return
	}

	deleted, err := c.storage.DeleteAllDrawings(r.Context(), symbol, interval)
	if err != nil {
		c.log.WithError(err).Error("Failed to clear drawings")
		http.Error(w, "Failed to clear drawings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, c.log, map[string]any{"deleted": deleted})
}

// handleDrawingsExport serves a CSV export of the stored drawings for a scope
func (c *Chart) handleDrawingsExport(w http.ResponseWriter, r *http.Request) {
	if c.storage == nil {
		http.Error(w, "Drawing storage not configured", http.StatusServiceUnavailable)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	interval := core.Interval(r.URL.Query().Get("interval"))
	if symbol == "" || !interval.Valid() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	drawings, err := c.storage.Drawings(r.Context(), symbol, interval)
	if err != nil {
		c.log.WithError(err).Error("Failed to export drawings")
		http.Error(w, "Failed to export drawings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=drawings_"+symbol+".csv")

	buffer := bytes.NewBuffer(nil)
	csvWriter := csv.NewWriter(buffer)

	if err := csvWriter.Write([]string{
		"id", "symbol", "interval", "tool",
		"time1", "price1", "time2", "price2",
		"color", "line_width", "updated_at",
	}); err != nil {
		c.log.Error("Failed writing CSV header: ", err)
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	for _, a := range drawings {
		row := []string{
			a.ID,
			a.Symbol,
			a.Interval.String(),
			string(a.Kind),
			strconv.FormatInt(a.Points[0].Time, 10),
			strconv.FormatFloat(a.Points[0].Price, 'f', -1, 64),
			strconv.FormatInt(a.Points[1].Time, 10),
			strconv.FormatFloat(a.Points[1].Price, 'f', -1, 64),
			a.Color,
			strconv.Itoa(a.LineWidth),
			a.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := csvWriter.Write(row); err != nil {
			c.log.Error("Failed writing CSV data: ", err)
			http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
			return
		}
	}
	csvWriter.Flush()

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buffer.Bytes()); err != nil {
		c.log.Error("Failed writing CSV response: ", err)
	}
}

func writeJSON(w http.ResponseWriter, log core.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("Failed to encode JSON response: ", err)
	}
}
