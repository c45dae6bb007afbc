package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/badminton-platform/middleware"
	"github.com/Dosada05/badminton-platform/notifications"
)

type WebSocketHandler struct {
	hub      *notifications.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *notifications.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs godoc
// @Summary Subscribe to match notifications
// @Tags notifications
// @Description Upgrades to a websocket that receives confirmation_requested, match_confirmed and match_rejected events for the authenticated account. Pass the token as a query parameter when headers cannot be set.
// @Param token query string false "Bearer token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string "Missing or invalid token"
// @Security BearerAuth
// @Router /ws [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetAccountIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", slog.String("account_id", accountID), slog.Any("error", err))
		return
	}

	room := notifications.RoomForAccount(accountID)
	client := notifications.NewClient(h.hub, conn, room)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client connected", slog.String("room", room))
}
