package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectrum-sweep/internal/spectrum"
)

const (
	clientBufferSize = 16
	writeTimeout     = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// SweepMessage is sent to monitor clients for every completed sweep
type SweepMessage struct {
	DeviceID string          `json:"deviceID"`
	Sweep    *spectrum.Sweep `json:"sweep"`
}

// Source looks up the latest sweep of a device. An empty deviceID selects
// the first device. ok is false for an unknown device.
type Source interface {
	Latest(deviceID string) (id string, sweep *spectrum.Sweep, ok bool)
}

type client struct {
	conn *websocket.Conn
	send chan *SweepMessage
}

// writePump sends queued sweeps to the websocket connection until the
// queue is closed or a write fails.
func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Monitor serves the live sweep feed. It never blocks the publisher: a
// client that falls behind misses sweeps.
type Monitor struct {
	source   Source
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewMonitor creates a new Monitor reading snapshots from source
func NewMonitor(source Source, logger *slog.Logger) *Monitor {
	return &Monitor{
		source: source,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP routes of the monitor
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWebsocket)
	mux.HandleFunc("/sweep", m.handleSweep)
	return mux
}

// Publish queues the sweep for every connected client
func (m *Monitor) Publish(deviceID string, sweep *spectrum.Sweep) {
	msg := &SweepMessage{DeviceID: deviceID, Sweep: sweep}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for c := range m.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients
func (m *Monitor) Clients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Monitor) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("websocket upgrade failed: %s", err))
		return
	}

	c := &client{conn: conn, send: make(chan *SweepMessage, clientBufferSize)}

	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("monitor client connected", slog.String("remote", r.RemoteAddr))

	go c.writePump()

	defer func() {
		m.mu.Lock()
		delete(m.clients, c)
		close(c.send) // stops writePump
		m.mu.Unlock()

		m.logger.Debug("monitor client disconnected", slog.String("remote", r.RemoteAddr))
	}()

	// the feed is one-way, reading only detects the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Monitor) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deviceID, sweep, ok := m.source.Latest(r.URL.Query().Get("device"))
	if !ok {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}
	if sweep == nil {
		http.Error(w, "no sweep completed yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&SweepMessage{DeviceID: deviceID, Sweep: sweep}); err != nil {
		m.logger.Warn(fmt.Sprintf("error writing sweep: %s", err))
	}
}

// disconnect closes every client connection, ending their handlers.
func (m *Monitor) disconnect() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for c := range m.clients {
		_ = c.conn.Close()
	}
}

// Serve runs the monitor on addr until ctx is cancelled
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
		m.disconnect() // hijacked connections are not closed by Shutdown
	}()

	m.logger.Info("monitor listening", slog.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}
