package web

import (
	"fmt"
	"net/http"

	"github.com/chartmark/chartmark/core"
)

// HTTPServer defines the interface for an HTTP server that Chart will use
type HTTPServer interface {
	// RegisterHandler registers a handler for a specific route
	RegisterHandler(path string, handler http.HandlerFunc)

	// RegisterFileServer registers a handler to serve static files
	RegisterFileServer(path string, fs http.FileSystem)

	// Start starts the HTTP server on the specified port
	Start(port int) error
}

// StandardHTTPServer implements the HTTPServer interface using the standard http package
type StandardHTTPServer struct {
	mux *http.ServeMux
}

// NewStandardHTTPServer creates a new instance of StandardHTTPServer
func NewStandardHTTPServer() *StandardHTTPServer {
	return &StandardHTTPServer{mux: http.NewServeMux()}
}

// RegisterHandler registers a handler for a specific route
func (s *StandardHTTPServer) RegisterHandler(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, handler)
}

// RegisterFileServer registers a handler to serve static files
func (s *StandardHTTPServer) RegisterFileServer(path string, fs http.FileSystem) {
	s.mux.Handle(path, http.FileServer(fs))
}

// Start starts the HTTP server on the specified port
func (s *StandardHTTPServer) Start(port int) error {
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

// ChartServer is a wrapper that combines a Chart with an HTTP server
type ChartServer struct {
	chart  *Chart
	server HTTPServer
	log    core.Logger
}

// NewChartServer creates a new ChartServer
func NewChartServer(chart *Chart, server HTTPServer, log core.Logger) *ChartServer {
	return &ChartServer{
		chart:  chart,
		server: server,
		log:    log,
	}
}

// Start initializes the HTTP server for the chart
func (cs *ChartServer) Start() error {
	cs.chart.RegisterHandlers(cs.server)

	port := cs.chart.GetPort()
	cs.log.Infof("Chart available at http://localhost:%d", port)
	return cs.server.Start(port)
}
