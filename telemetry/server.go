// Package telemetry broadcasts the light system's per-frame counters to
// debug-overlay clients over websockets.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gekko3d/lightgraph"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // debug tooling only, any origin may attach
	},
}

// statsMessage is the wire frame sent to every client.
type statsMessage struct {
	Type  string                `json:"type"`
	Stats lightgraph.FrameStats `json:"stats"`
}

// Server fans FrameStats out to connected websocket clients. Publish is
// called from the render frontend once per frame; slow or dead clients are
// dropped, never waited on across frames.
type Server struct {
	log lightgraph.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	last    lightgraph.FrameStats
	hasLast bool
}

func NewServer(log lightgraph.Logger) *Server {
	if log == nil {
		log = lightgraph.NewNopLogger()
	}
	return &Server{
		log:     log,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler returns the websocket endpoint; mount it wherever the debug HTTP
// server lives.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// NumClients returns the number of attached clients.
func (s *Server) NumClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("telemetry upgrade: %v", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = connMu
	last, hasLast := s.last, s.hasLast
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// New clients get the latest snapshot immediately.
	if hasLast {
		connMu.Lock()
		err := conn.WriteJSON(statsMessage{Type: "stats", Stats: last})
		connMu.Unlock()
		if err != nil {
			return
		}
	}

	// Drain client messages until the peer goes away; clients only listen.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts the frame's counters to every attached client.
func (s *Server) Publish(stats lightgraph.FrameStats) {
	msg := statsMessage{Type: "stats", Stats: stats}

	s.mu.Lock()
	s.last = stats
	s.hasLast = true
	s.mu.Unlock()

	s.mu.RLock()
	var failed []*websocket.Conn
	for conn, connMu := range s.clients {
		connMu.Lock()
		err := conn.WriteJSON(msg)
		connMu.Unlock()
		if err != nil {
			s.log.Warnf("telemetry write: %v", err)
			conn.Close()
			failed = append(failed, conn)
		}
	}
	s.mu.RUnlock()

	if len(failed) > 0 {
		s.mu.Lock()
		for _, conn := range failed {
			delete(s.clients, conn)
		}
		s.mu.Unlock()
	}
}

// Close drops every client connection.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}
