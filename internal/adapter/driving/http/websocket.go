package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/roulette/internal/config"
	"github.com/Wyydra/roulette/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrUnknownEvent = errors.New("unknown event")

// WSClient is one signaling connection. Outbound events go through a
// buffered channel drained by writePump, so Deliver never blocks.
type WSClient struct {
	id   domain.ClientID
	conn *websocket.Conn
	cfg  config.WSConfig

	send      chan domain.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newWSClient(id domain.ClientID, conn *websocket.Conn, cfg config.WSConfig) *WSClient {
	return &WSClient{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan domain.Event, cfg.SendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *WSClient) ID() domain.ClientID {
	return c.id
}

func (c *WSClient) Deliver(evt domain.Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which in turn closes the socket.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *WSClient) writePump(l zerolog.Logger) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				l.Debug().Err(err).Str("event", evt.Name.String()).Msg("Write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)
			return
		}
	}
}

type incomingDTO struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(domain.NewClientID(), conn, h.cfg.WS)

	l := log.With().Str("client_id", client.id.String()).Logger()
	l.Info().Msg("New client connected")

	if !h.Hub.Register(client) {
		l.Warn().Msg("Registration refused")
		conn.Close()
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump(l)
	}()

	ctx := r.Context()
	defer func() {
		// cleanup must run even if the request context is already gone
		if err := h.Matchmaker.Disconnect(context.WithoutCancel(ctx), client.id); err != nil {
			l.Warn().Err(err).Msg("Disconnect not applied by matchmaker")
		}
		h.Hub.Unregister(client.id)
		client.Close()
		<-writerDone
		l.Info().Msg("Client disconnected")
	}()

	conn.SetReadLimit(h.cfg.WS.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.WS.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.WS.PongWait))
	})

	// listening for browser
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		var req incomingDTO
		if err := json.Unmarshal(data, &req); err != nil {
			l.Warn().Err(err).Msg("Invalid message")
			continue
		}

		if err := h.dispatch(ctx, client.id, req); err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				l.Warn().Err(err).Msg("Ignoring message")
				continue
			}
			l.Error().Err(err).Str("event", req.Event).Msg("Failed to handle event")
			break
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, id domain.ClientID, req incomingDTO) error {
	name := domain.EventName(req.Event)
	switch {
	case name == domain.EventStart:
		return h.Matchmaker.Start(ctx, id)
	case name == domain.EventNext:
		return h.Matchmaker.Next(ctx, id)
	case name.IsSignal():
		return h.Matchmaker.Relay(ctx, id, name, req.Payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, req.Event)
	}
}
