package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
	"github.com/MrSnakeDoc/roomrouter/internal/rooms"
)

// CommandListUsers asks the shard for the room's member list.
const CommandListUsers = "getAllUsers"

// Options configures a Handler.
type Options struct {
	WriteTimeout   time.Duration
	ReadLimit      int64         // largest accepted message, DefaultReadLimit when zero
	PongWait       time.Duration // silence allowed before a peer is dropped, DefaultPongWait when zero
	AllowedOrigins []string      // empty allows any origin
	Metrics        *metrics.ShardMetrics
}

// Handler upgrades /websocket requests and runs the session until the
// client goes away.
type Handler struct {
	registry     *rooms.Registry
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	readLimit    int64
	pongWait     time.Duration
	metrics      *metrics.ShardMetrics
	logger       logger.Logger
}

// NewHandler creates a websocket handler bound to registry.
func NewHandler(registry *rooms.Registry, opts Options, log logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
		writeTimeout: opts.WriteTimeout,
		readLimit:    opts.ReadLimit,
		pongWait:     opts.PongWait,
		metrics:      opts.Metrics,
		logger:       log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID := strings.TrimSpace(q.Get("room"))
	if roomID == "" {
		http.Error(w, "missing or empty 'room' parameter", http.StatusBadRequest)
		return
	}

	connID := uuid.NewString()
	profile := domain.Profile{
		ID:   firstNonEmpty(q.Get("userId"), r.Header.Get("x-user-id"), connID),
		Name: firstNonEmpty(q.Get("userName"), r.Header.Get("x-user-name")),
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed",
			logger.String("room", roomID),
			logger.Error(err))
		return
	}

	conn := NewConn(connID, socket, h.writeTimeout)
	log := h.logger.With(
		logger.String("room", roomID),
		logger.String("conn", connID),
		logger.String("user_id", profile.ID))
	log.Info("websocket connected", logger.String("user_name", profile.Name))

	if err := conn.Keepalive(h.readLimit, h.pongWait); err != nil {
		log.Warn("failed to arm keepalive", logger.Error(err))
		_ = conn.Close()
		return
	}

	h.registry.Join(roomID, conn, profile)
	if err := conn.Send(rooms.WelcomeMessage(h.registry.ServerID(), roomID)); err != nil {
		log.Warn("failed to send welcome", logger.Error(err))
	}

	h.readLoop(conn, roomID, profile, log)
}

// readLoop dispatches text frames until the socket fails, then closes the
// connection, which removes it from the room.
func (h *Handler) readLoop(conn *Conn, roomID string, profile domain.Profile, log logger.Logger) {
	defer func() {
		_ = conn.Close()
		log.Info("websocket disconnected")
	}()

	for {
		kind, data, err := conn.ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				log.Warn("websocket message too large, closing")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", logger.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		text := string(data)
		if strings.EqualFold(text, CommandListUsers) {
			if err := conn.Send(rooms.UserListMessage(h.registry.Members(roomID))); err != nil {
				log.Warn("failed to send user list", logger.Error(err))
			}
			continue
		}

		h.registry.Broadcast(roomID, rooms.ChatMessage(profile.Name, text))
		h.metrics.RecordMessage(metrics.MessageChat)
	}
}

// checkOrigin allows any origin when allowed is empty, and requests without
// an Origin header always.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
