package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// SnapshotEvent is the type of the first message on every stream.
const SnapshotEvent = "workspace.snapshot"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SnapshotFunc returns the current workspace of a user.
type SnapshotFunc func(userID string) any

type snapshotMessage struct {
	Type      string `json:"type"`
	Workspace any    `json:"workspace"`
}

// WebSocketHandler upgrades authenticated requests to event streams.
type WebSocketHandler struct {
	hub           *Hub
	snapshot      SnapshotFunc
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. snapshot may be nil.
func NewWebSocketHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:           hub,
		snapshot:      snapshot,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

func sessionIDFromRequest(r *http.Request) string {
	sid := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sid == "" || !sessionIDPattern.MatchString(sid) {
		return uuid.NewString()
	}
	return sid
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	sessionID := sessionIDFromRequest(r)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "stream ended")
	}()

	sub := h.hub.Register(userID, sessionID, ws)
	defer h.hub.Unregister(userID, sessionID, sub)

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	if h.snapshot != nil {
		if err := h.write(ctx, ws, snapshotMessage{Type: SnapshotEvent, Workspace: h.snapshot(userID)}); err != nil {
			h.logger.Debug("Failed to send snapshot", "error", err, "user_id", userID)
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case e := <-sub.Events():
			if err := h.write(ctx, ws, e); err != nil {
				h.logger.Debug("WebSocket write error", "error", err, "user_id", userID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
