package http

import (
	"encoding/json"
	"net/http"

	"github.com/Wyydra/roulette/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/roulette/internal/config"
	"github.com/Wyydra/roulette/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Matchmaker *service.Matchmaker
	Hub        *ws.Hub

	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewHandler(matchmaker *service.Matchmaker, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		Matchmaker: matchmaker,
		Hub:        hub,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WS.ReadBufferSize,
			WriteBufferSize: cfg.WS.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.Server.OriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)
	r.Get("/healthz", h.Healthz)
	r.Get("/stats", h.Stats)
	r.Get("/ice-servers", h.ICEServers)

	if dir := h.cfg.Server.StaticDir; dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	}

	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type statsDTO struct {
	Connected int `json:"connected"`
	service.Stats
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Matchmaker.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to snapshot matchmaker")
		http.Error(w, "matchmaker unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, statsDTO{Connected: h.Hub.Count(), Stats: stats})
}

type iceServersDTO struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func (h *Handler) ICEServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, iceServersDTO{ICEServers: h.cfg.ICE.WebRTCServers()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
