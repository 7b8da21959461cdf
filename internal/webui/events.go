package webui

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mzyy94/airsane/internal/metrics"
	"github.com/mzyy94/airsane/internal/scanner"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// eventMessage is one message of the /api/events feed.
type eventMessage struct {
	Type    string            `json:"type"`
	Payload scanner.JobStatus `json:"payload"`
}

// handleEvents streams scan job status changes over a WebSocket,
// starting with the current status.
func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.opts.Job == nil {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()
	slog.Debug("websocket connected", "remote", r.RemoteAddr)

	status := h.opts.Job.Status
	updates, stop := status.Watch()
	defer stop()

	// The reader only handles control frames and notices the close.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(s scanner.JobStatus) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(eventMessage{Type: "status", Payload: s}) == nil
	}
	if !send(status.Snapshot()) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case s := <-updates:
			if !send(s) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
