package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"command-center/internal/event"
)

// Hub fans bus events out to the connections of the browser context each
// event belongs to.
type Hub struct {
	// Connected clients, grouped by browser context.
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	bus event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		bus:        bus,
	}
}

// Run dispatches until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			for _, group := range h.clients {
				for client := range group {
					close(client.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return

		case client := <-h.register:
			group, ok := h.clients[client.contextID]
			if !ok {
				group = map[*Client]bool{}
				h.clients[client.contextID] = group
			}
			group[client] = true

		case client := <-h.unregister:
			h.remove(client)

		case e, ok := <-events:
			if !ok {
				return
			}
			group := h.clients[e.ContextID]
			if len(group) == 0 {
				continue
			}

			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}
			for client := range group {
				select {
				case client.send <- message:
				default:
					// Too slow to keep up; drop the connection.
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	group, ok := h.clients[client.contextID]
	if !ok || !group[client] {
		return
	}
	delete(group, client)
	close(client.send)
	if len(group) == 0 {
		delete(h.clients, client.contextID)
	}
}
