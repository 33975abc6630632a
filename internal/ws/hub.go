package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub tracks open connections per user and closes them on shutdown.
type Hub struct {
	clients    map[*Client]bool
	perUser    map[uuid.UUID]int
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	log        zerolog.Logger
	done       chan struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		perUser:    make(map[uuid.UUID]int),
		register:   make(chan *Client, 128),
		unregister: make(chan *Client, 128),
		log:        log.With().Str("component", "ws_hub").Logger(),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.clients = make(map[*Client]bool)
			h.perUser = make(map[uuid.UUID]int)
			h.mutex.Unlock()

			for _, c := range clients {
				c.Close()
			}
			h.log.Info().Int("closed", len(clients)).Msg("ws hub stopped")
			return

		case client := <-h.register:
			if client == nil {
				continue
			}
			h.mutex.Lock()
			h.clients[client] = true
			h.perUser[client.userID]++
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug().Str("user_id", client.userID.String()).Int("total_clients", total).Msg("ws connected")

		case client := <-h.unregister:
			if client == nil {
				continue
			}
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if h.perUser[client.userID]--; h.perUser[client.userID] <= 0 {
					delete(h.perUser, client.userID)
				}
			}
			total := len(h.clients)
			h.mutex.Unlock()
			client.Close()
			h.log.Debug().Str("user_id", client.userID.String()).Int("total_clients", total).Msg("ws disconnected")
		}
	}
}

// Done is closed after Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Register(client *Client) {
	if h == nil {
		return
	}
	select {
	case <-h.done:
		client.Close()
		return
	default:
	}
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	if h == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) UserCount() int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.perUser)
}
