package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/agentflow/logger"
)

// KeepAliveInterval is how often an idle stream gets a comment line. It
// stays below common proxy idle timeouts.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent is the first event of every stream.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	Pattern  string `json:"pattern"`
}

// ServeSSE subscribes a client with pattern and streams its messages until
// the request ends or the hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, pattern string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("[SSE] Could not disable write deadline", logger.Fields("client_id", clientID, "error", err.Error()))
	}

	client := NewClient(clientID, pattern)
	if !hub.Register(client) {
		http.Error(w, "event stream is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	connected, _ := json.Marshal(ConnectedEvent{ClientID: clientID, Pattern: pattern})
	writeEvent(w, EventTypeConnected, connected)
	flusher.Flush()

	logger.Debug("[SSE] Client connected", logger.Fields(
		"client_id", clientID,
		"pattern", pattern,
		"remote_addr", r.RemoteAddr,
	))

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("[SSE] Client disconnected", logger.Fields("client_id", clientID, "reason", ctx.Err().Error()))
			return

		case msg, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, msg.Event, msg.Data)
			flusher.Flush()

		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
