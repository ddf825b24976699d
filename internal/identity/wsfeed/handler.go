// Package wsfeed receives identity assertions from a wallet bridge over a
// websocket and publishes them to an identity.Feed.
package wsfeed

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"

	"rollcall/internal/identity"
)

const (
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
)

// Ack is written back for every frame.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Identity string `json:"identity,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler upgrades bridge connections. Invalid or replayed frames are
// logged, acknowledged as refused, and skipped.
type Handler struct {
	feed     *identity.Feed
	verifier *Verifier
	seen     *gocache.Cache
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithAllowedOrigins lets browser pages from these origins connect. Without
// it only same-origin pages and clients that send no Origin header (the
// bridge process) can upgrade.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		if len(origins) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		}
	}
}

// New creates a handler. Token IDs are remembered for replayWindow, which
// should be at least the assertion lifetime.
func New(feed *identity.Feed, verifier *Verifier, replayWindow time.Duration, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		feed:     feed,
		verifier: verifier,
		seen:     gocache.New(replayWindow, 2*replayWindow),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the bridge endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/identity/ws", h.ServeHTTP)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "identity bridge upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.logger.InfoContext(r.Context(), "identity bridge connected", "remote", r.RemoteAddr)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WarnContext(r.Context(), "identity bridge read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		ack := h.accept(string(frame))
		if err := conn.WriteJSON(ack); err != nil {
			h.logger.WarnContext(r.Context(), "identity bridge ack failed", "error", err)
			return
		}
	}
}

func (h *Handler) accept(token string) Ack {
	event, tokenID, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("identity assertion refused", "error", err)
		return Ack{Error: err.Error()}
	}
	if err := h.seen.Add(tokenID, struct{}{}, gocache.DefaultExpiration); err != nil {
		h.logger.Warn("identity assertion replayed", "jti", tokenID)
		return Ack{Error: "assertion already used"}
	}
	if h.feed.Publish(event) {
		h.logger.Info("active identity changed", "identity", event.String())
	}
	return Ack{Accepted: true, Identity: event.String()}
}

func (h *Handler) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
