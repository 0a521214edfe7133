package mitmproxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinel-intercept/proxy/internal/domain/eventbus"
)

// LiveFeed pushes every Event Bus event to whatever operator dashboard is
// currently connected over WebSocket — the UI-facing counterpart to the
// raw-byte WebSocket relay in websocket.go, which forwards intercepted
// traffic rather than the proxy's own state changes. It also accepts a
// small set of operator commands on the same connection (pause/resume,
// intercept on/off), the only control surface that can reach the live
// Engine's in-memory Gate and pause flag from outside the process.
type LiveFeed struct {
	bus          *eventbus.Bus
	logger       *slog.Logger
	togglePause  func() bool
	setIntercept func(bool)
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewLiveFeed creates a LiveFeed publishing events from bus. togglePause
// and setIntercept back the "toggle_pause" and "set_intercept" operator
// commands; either may be nil to disable that command.
func NewLiveFeed(bus *eventbus.Bus, logger *slog.Logger, togglePause func() bool, setIntercept func(bool)) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{bus: bus, logger: logger, togglePause: togglePause, setIntercept: setIntercept}
}

// feedCommand is an operator instruction sent over the live feed
// connection; Enabled is only meaningful for "set_intercept".
type feedCommand struct {
	Command string `json:"command"`
	Enabled bool   `json:"enabled"`
}

// ServeHTTP upgrades the request and streams Bus events as JSON text
// frames until the client disconnects or the bus unsubscribes it.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("live feed upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	// Read client-initiated messages (operator commands, pings, close) on
	// their own goroutine so a silent client doesn't block the read
	// deadline.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f.handleCommand(data)
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(feedEnvelope{Type: ev.Type, Data: ev.Data}); err != nil {
				return
			}
		}
	}
}

type feedEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleCommand dispatches a single inbound control frame. Malformed or
// unknown commands are ignored — this is a best-effort operator control
// surface, not a request/response API.
func (f *LiveFeed) handleCommand(data []byte) {
	var cmd feedCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return
	}
	switch cmd.Command {
	case "toggle_pause":
		if f.togglePause != nil {
			f.togglePause()
		}
	case "set_intercept":
		if f.setIntercept != nil {
			f.setIntercept(cmd.Enabled)
		}
	}
}
