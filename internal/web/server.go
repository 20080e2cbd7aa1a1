// Package web implements the local HTTP server the external renderer talks
// to. It serves the JSON API and streams portal snapshots and notices over
// websockets and SSE. It renders no markup itself.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gotuzzoj23/SolanaDApp/internal/api"
	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Portal is the controller surface the server needs
type Portal interface {
	api.Portal
	Subscribe() (<-chan types.Snapshot, func())
}

// broker fans encoded snapshots out to connected stream clients
type broker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newBroker() *broker {
	return &broker{
		clients: make(map[chan []byte]struct{}),
	}
}

func (b *broker) register(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *broker) unregister(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
	}
}

func (b *broker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// Client is slow/blocked, skip
		}
	}
}

func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Server is the renderer-facing HTTP server.
type Server struct {
	portal     Portal
	port       int
	logger     *logger.Logger
	broker     *broker
	apiService *api.Service
	upgrader   *websocket.Upgrader
	httpServer *http.Server

	stopWatch func()
}

// NewServer creates a new web server. allowedOrigins lists renderer origins
// allowed to open websockets in addition to same-host pages.
func NewServer(p Portal, notices *logger.Logger, port int, allowedOrigins ...string) *Server {
	if notices == nil {
		notices = logger.New(200)
	}

	s := &Server{
		portal:     p,
		port:       port,
		logger:     notices,
		broker:     newBroker(),
		apiService: api.NewService(p, notices),
		upgrader:   newUpgrader(allowedOrigins),
	}

	// Start listening for portal changes and broadcast them to stream clients
	updates, cancel := p.Subscribe()
	s.stopWatch = cancel
	go s.watchSnapshots(updates)

	return s
}

// ServeDocs enables the reference pages under /api/docs.
func (s *Server) ServeDocs(d api.Docs) {
	s.apiService.SetDocs(d)
}

// Logger returns the server's notice feed
func (s *Server) Logger() *logger.Logger {
	return s.logger
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.apiService.HandleHealth)
	mux.HandleFunc("/api/version", s.apiService.HandleVersion)
	mux.HandleFunc("/api/state", s.apiService.HandleState)
	mux.HandleFunc("/api/state/stream", s.handleStateStream) // SSE fallback for renderers without websockets
	mux.HandleFunc("/api/connect", s.apiService.HandleConnect)
	mux.HandleFunc("/api/refresh", s.apiService.HandleRefresh)
	mux.HandleFunc("/api/initialize", s.apiService.HandleInitialize)
	mux.HandleFunc("/api/input", s.apiService.HandleInput)
	mux.HandleFunc("/api/submit", s.apiService.HandleSubmit)
	mux.HandleFunc("/api/notices", s.apiService.HandleNotices)
	mux.HandleFunc("/api/docs", s.apiService.HandleDocs)
	mux.HandleFunc("/api/docs/", s.apiService.HandleDocs)

	// WebSocket routes
	mux.HandleFunc("/ws/state", s.handleStateWS)
	mux.HandleFunc("/ws/notices", s.handleNoticesWS)

	return noStore(mux)
}

// Start runs the server in the background.
func (s *Server) Start() <-chan error {
	log.Printf("Web: serving renderer API on http://localhost:%d", s.port)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)

	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown stops the server and the snapshot watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopWatch()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// watchSnapshots listens for portal changes and broadcasts them to all
// stream clients
func (s *Server) watchSnapshots(updates <-chan types.Snapshot) {
	for snap := range updates {
		data, err := json.Marshal(snap)
		if err != nil {
			log.Printf("Web: encode snapshot: %v", err)
			continue
		}
		s.broker.broadcast(data)
	}
}

// handleStateWS streams a snapshot on connect and after every change
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientChan := make(chan []byte, 10)
	s.broker.register(clientChan)
	defer s.broker.unregister(clientChan)

	closed := watchClose(conn)

	if err := writeJSON(conn, s.portal.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case data, ok := <-clientChan:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := writePing(conn); err != nil {
				return
			}
		}
	}
}

// handleNoticesWS streams user-visible notices, oldest first
func (s *Server) handleNoticesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := watchClose(conn)

	// Send initial history (last 50 notices), oldest first
	initial := s.logger.GetRecent(50)
	for i := len(initial) - 1; i >= 0; i-- {
		if err := writeJSON(conn, initial[i]); err != nil {
			return
		}
	}

	var lastSeen time.Time
	if len(initial) > 0 {
		lastSeen = initial[0].Timestamp
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			for _, msg := range s.logger.Since(lastSeen) {
				if err := writeJSON(conn, msg); err != nil {
					return
				}
				lastSeen = msg.Timestamp
			}
		case <-ping.C:
			if err := writePing(conn); err != nil {
				return
			}
		}
	}
}

// handleStateStream streams snapshots as server-sent events
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	clientChan := make(chan []byte, 10)
	s.broker.register(clientChan)
	defer s.broker.unregister(clientChan)

	initial, err := json.Marshal(s.portal.Snapshot())
	if err != nil {
		http.Error(w, "Failed to encode state", http.StatusInternalServerError)
		return
	}
	writeEvent(w, initial)
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-clientChan:
			if !ok {
				return
			}
			writeEvent(w, data)
			flusher.Flush()
		case <-keepAlive.C:
			// Send keep-alive comment to prevent timeout
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) {
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
}

// noStore sets cache-busting headers so renderers never see stale state
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
