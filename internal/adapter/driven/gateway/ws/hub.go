package ws

import (
	"sync"

	"github.com/Wyydra/roulette/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Hub is the connection registry. It implements port.ClientRegistry.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]Client
	stopped bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ClientID]Client),
	}
}

// Register adds c. A second registration under the same id, or any
// registration after Stop, is ignored and reported as false.
func (h *Hub) Register(c Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	if _, ok := h.clients[c.ID()]; ok {
		log.Warn().Str("client_id", c.ID().String()).Msg("Client already registered")
		return false
	}
	h.clients[c.ID()] = c
	log.Debug().Int("count", len(h.clients)).Str("client_id", c.ID().String()).Msg("Client registered")
	return true
}

func (h *Hub) Unregister(id domain.ClientID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Error().Err(err).Str("client_id", id.String()).Msg("Error closing client connection")
	}
	log.Debug().Int("count", count).Str("client_id", id.String()).Msg("Client unregistered")
}

func (h *Hub) Send(id domain.ClientID, evt domain.Event) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	if !c.Deliver(evt) {
		log.Warn().Str("client_id", id.String()).Str("event", evt.Name.String()).Msg("Client send buffer full, dropping event")
		return false
	}
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every registered client.
func (h *Hub) Stop() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[domain.ClientID]Client)
	h.stopped = true
	h.mu.Unlock()

	log.Info().Int("count", len(clients)).Msg("Stopping hub. Disconnecting all clients.")
	for id, c := range clients {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("client_id", id.String()).Msg("Error closing client connection")
		}
	}
}
