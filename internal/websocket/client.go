package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is one websocket connection bound to a browser context.
type Client struct {
	contextID string
	send      chan []byte
}

type ServeOptions struct {
	OriginPatterns []string
}

// Serve upgrades the request and streams the context's events until either
// side goes away. initial, if not nil, is sent before any event.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, contextID string, initial []byte, opts ServeOptions) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: opts.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "context_id", contextID, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	client := &Client{contextID: contextID, send: make(chan []byte, sendBuffer)}

	ctx := conn.CloseRead(r.Context())

	select {
	case h.register <- client:
	case <-ctx.Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-time.After(time.Second):
		}
	}()

	if initial != nil {
		if err := write(ctx, conn, initial); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case message, ok := <-client.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "closing")
				return
			}
			if err := write(ctx, conn, message); err != nil {
				slog.Debug("websocket write failed", "context_id", contextID, "close_status", websocket.CloseStatus(err), "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func write(parent context.Context, conn *websocket.Conn, message []byte) error {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, message)
}
