package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-voice-tutor/internal/app"
	"ai-voice-tutor/internal/language"
	"ai-voice-tutor/internal/service/session"
)

const (
	defaultStartTimeout = 15 * time.Second
	wsWriteWait         = 10 * time.Second
	wsPongWait          = 60 * time.Second
	wsPingPeriod        = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is a client request on the session websocket.
type Command struct {
	Action string `json:"action"` // start, end
}

type errorResponse struct {
	Error   string           `json:"error"`
	Session session.Snapshot `json:"session"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{app: application}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/languages", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, language.Supported)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Post("/start", h.startSession)
			r.Post("/end", h.endSession)
			r.Get("/ws", h.watchSession)
		})
	})

	return r
}

type handlers struct {
	app *app.Application
}

func (h *handlers) startTimeout() time.Duration {
	if h.app.Cfg != nil && h.app.Cfg.Live.ConnectTimeout > 0 {
		return h.app.Cfg.Live.ConnectTimeout
	}
	return defaultStartTimeout
}

// start runs StartSession detached from the caller; only the dial is bounded.
func (h *handlers) start() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.startTimeout())
	defer cancel()
	return h.app.Session.StartSession(ctx)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Session.Snapshot())
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	err := h.start()
	snap := h.app.Session.Snapshot()

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, session.ErrActive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Session: snap})
	default:
		msg := err.Error()
		if m, ok := h.app.Session.Err(); ok {
			msg = m
		}
		log.Warn().Err(err).Str("requestId", middleware.GetReqID(r.Context())).Msg("Session start failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: msg, Session: snap})
	}
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	h.app.Session.EndSession()
	writeJSON(w, http.StatusOK, h.app.Session.Snapshot())
}

// watchSession streams snapshots over a websocket and accepts start/end
// commands from the client.
func (h *handlers) watchSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("remote", r.RemoteAddr).Logger()
	logger.Info().Msg("Session watcher connected")

	updates, cancel := h.app.Session.Subscribe()
	defer cancel()

	// Reader: commands and pongs. Exits when the client goes away.
	closed := make(chan struct{})
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("Session watcher read failed")
				}
				return
			}
			switch cmd.Action {
			case "start":
				if err := h.start(); err != nil {
					logger.Warn().Err(err).Msg("Session start from watcher failed")
				}
			case "end":
				h.app.Session.EndSession()
			default:
				logger.Debug().Str("action", cmd.Action).Msg("Ignoring unknown command")
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug().Err(err).Msg("Session watcher write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			logger.Info().Msg("Session watcher disconnected")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
