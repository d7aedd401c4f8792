// Package detect broadcasts the results of a template-matching scan to
// connected monitors over a WebSocket hub and exposes them over a small
// JSON API. It is the "reports matches" layer that sits on top of
// [ncc.FFTMulti]; the core package knows nothing about HTTP or JSON.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event describes one template's scan result: the peak of that template's
// row in FFTMulti's output, tagged with the template's station and channel
// codes. ncc-scan publishes one Event per template after FFTMulti returns.
type Event struct {
	Template    string  `json:"template"`
	Station     string  `json:"station"`
	Channel     string  `json:"channel"`
	PeakLag     int     `json:"peakLag"`
	PeakValue   float64 `json:"peakValue"`
	ScanLength  int     `json:"scanLength"`
	FlaggedBad  bool    `json:"flaggedBad"`
	OccurredAt  string  `json:"occurredAt"`
}

// message is the envelope every WebSocket payload is wrapped in.
type message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

//nolint:gochecknoglobals
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Server exposes an in-progress or completed scan's detections over
// WebSocket (/ws) and a plain JSON snapshot (/api/detections).
type Server struct {
	port       int
	hub        *Hub
	httpServer *http.Server

	mu     sync.RWMutex
	events []Event
}

// NewServer returns a Server that will listen on port once Start runs.
func NewServer(port int) *Server {
	return &Server{port: port, hub: NewHub()}
}

// Publish records event and broadcasts it to every connected monitor.
// Safe to call concurrently.
func (s *Server) Publish(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	data, err := json.Marshal(message{Type: "detection", Payload: ev})
	if err != nil {
		slog.Error("failed to marshal detection event", "error", err)
		return
	}

	s.hub.Broadcast(data)
}

// Start runs the HTTP server until it errors or Shutdown is called.
func (s *Server) Start() error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/detections", s.handleAPIDetections)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("detection server starting", "port", s.port, "url", fmt.Sprintf("http://localhost:%d", s.port))

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register <- c

	s.sendBacklog(c)

	go c.writePump()
	c.readPump()
}

// sendBacklog replays every event recorded so far to a newly connected
// client, so a monitor that joins mid-scan still sees earlier detections.
func (s *Server) sendBacklog(c *client) {
	s.mu.RLock()
	backlog := make([]Event, len(s.events))
	copy(backlog, s.events)
	s.mu.RUnlock()

	data, err := json.Marshal(message{Type: "backlog", Payload: backlog})
	if err != nil {
		slog.Error("failed to marshal backlog", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) handleAPIDetections(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(events); err != nil {
		slog.Error("failed to encode detections", "error", err)
	}
}
