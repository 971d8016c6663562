// Package server exposes the dispatch store over a unix socket: plain HTTP
// for state reads and dispatches, SSE and WebSocket for live updates.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/store"
)

// RunningConfig is the active daemon configuration, exposed via /api/config
// so clients can verify what the daemon actually loaded.
type RunningConfig struct {
	ConfigFile       string        `json:"config_file,omitempty"`
	Shell            string        `json:"shell,omitempty"`
	SnapshotInterval time.Duration `json:"snapshot_interval"`
	StartedAt        time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	store         *store.Store
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a Server for the given store.
func New(st *store.Store, logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		store:  st,
		upgrader: websocket.Upgrader{
			// The socket itself is permission-gated; no origin policy applies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetRunningConfig sets the configuration reported by /api/config.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/dispatch", s.handleDispatch)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/api/config", s.handleGetConfig)

	s.server = &http.Server{
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleGetState returns the full committed snapshot as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.GetState())
}

// handleDispatch accepts an action envelope, applies it, and replies with
// the structured error on rejection. The response is sent only after the
// action has fully committed.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env action.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	if err := s.store.DispatchEnvelope(env); err != nil {
		s.logger.WithField("type", env.Type).WithError(err).Debug("Dispatch rejected")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.runningConfig)
}

// handleStream provides Server-Sent Events for real-time updates. The
// current snapshot is sent immediately so a client never starts blind.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	initial := store.Update{Type: store.UpdateState, Snapshot: s.store.GetState()}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// wsRequest is an inbound WebSocket frame: an action envelope plus an
// optional client-chosen id echoed back on the ack.
type wsRequest struct {
	ID string `json:"id,omitempty"`
	action.Envelope
}

// wsAck reports the outcome of one dispatched frame.
type wsAck struct {
	Kind  string          `json:"kind"` // "ack"
	ID    string          `json:"id,omitempty"`
	OK    bool            `json:"ok"`
	Error json.RawMessage `json:"error,omitempty"`
}

// handleWebSocket serves the bidirectional protocol: updates flow out,
// action envelopes flow in, each answered with an ack frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Debug("WebSocket client connected")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// Writes are serialized through one goroutine; gorilla connections do
	// not allow concurrent writers. The outbound channel is never closed:
	// the forwarder may be parked on a send when the read loop returns, so
	// shutdown is signaled on stop instead.
	outbound := make(chan interface{}, 64)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(done)
		for {
			select {
			case msg := <-outbound:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	go func() {
		initial := store.Update{Type: store.UpdateState, Snapshot: s.store.GetState()}
		select {
		case outbound <- initial:
		case <-done:
			return
		case <-stop:
			return
		}
		for update := range ch {
			select {
			case outbound <- update:
			case <-done:
				return
			case <-stop:
				return
			}
		}
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.logger.Debug("WebSocket client disconnected")
			return
		}
		ack := wsAck{Kind: "ack", ID: req.ID, OK: true}
		if err := s.store.DispatchEnvelope(req.Envelope); err != nil {
			ack.OK = false
			ack.Error = errorJSON(err)
		}
		select {
		case outbound <- ack:
		case <-done:
			return
		}
	}
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidAction, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownProject, errors.ErrCodeUnknownWorktree, errors.ErrCodeUnknownSession:
		return http.StatusNotFound
	case errors.ErrCodeCompletionInFlight:
		return http.StatusConflict
	case errors.ErrCodeStoreClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(err error) json.RawMessage {
	if se, ok := err.(*errors.StudioError); ok {
		return json.RawMessage(se.ToJSON())
	}
	raw, _ := json.Marshal(map[string]string{
		"code":    string(errors.ErrCodeInternal),
		"message": err.Error(),
	})
	return raw
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(errors.GetCode(err)))
	w.Write(errorJSON(err))
}
