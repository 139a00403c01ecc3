package events

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
)

// Handler upgrades HTTP connections to WebSocket and attaches them to
// the hub.
type Handler struct {
	hub      *Hub
	auth     *auth.Service
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, authService *auth.Service, log *logger.Logger, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Handler{
		hub:  hub,
		auth: authService,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWS handles WebSocket requests. The browser WebSocket API cannot
// set custom headers, so the access token travels in the query string
// or the session cookie.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) error {
	token := r.URL.Query().Get("token")
	if token == "" {
		if cookie, err := r.Cookie(auth.AccessTokenCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return apperrors.Unauthorized("missing access token")
	}

	user, err := h.auth.ValidateAccessToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return apperrors.TokenExpired()
		case errors.Is(err, auth.ErrAccountDeactivated):
			return apperrors.AccountDeactivated()
		default:
			return apperrors.InvalidToken("invalid access token")
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]any{"error": err.Error()})
		return nil
	}

	client := newClient(h.hub, conn, user.ID)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}
