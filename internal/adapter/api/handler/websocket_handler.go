package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"lokapasar/internal/adapter/api/middleware"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"
)

type WebSocketHandler struct {
	wsManager        *ws.Manager
	authMiddleware   *middleware.AuthMiddleware
	handshakeTimeout time.Duration
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, authMiddleware *middleware.AuthMiddleware, handshakeTimeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:        wsManager,
		authMiddleware:   authMiddleware,
		handshakeTimeout: handshakeTimeout,
	}
}

// HandleWebSocket authenticates the upgrade request and hands the connection
// to the manager. Browsers cannot set headers on WebSocket upgrades, so the
// token is read from the query string first, then the Authorization header.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	// Bound the verification so a slow identity backend cannot hold the
	// upgrade open indefinitely.
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.handshakeTimeout)
	defer cancel()

	userID, err := h.authMiddleware.GetUIDFromToken(ctx, token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
