package handlers

import (
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/projecthubmthae/G8Livesystem2025/internal/live"
	"github.com/projecthubmthae/G8Livesystem2025/internal/services"
	livews "github.com/projecthubmthae/G8Livesystem2025/internal/websocket"
	"github.com/projecthubmthae/G8Livesystem2025/pkg/utils"
)

// LiveHandler upgrades session subscribers onto the broadcast hub.
type LiveHandler struct {
	service   *services.SessionService
	hub       *livews.Hub
	jwtSecret string
}

func NewLiveHandler(service *services.SessionService, hub *livews.Hub, jwtSecret string) *LiveHandler {
	return &LiveHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *LiveHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	sessionID := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.GetSession(c.Context(), sessionID); err != nil {
		if errors.Is(err, live.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve session"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("session_id", sessionID)
	return c.Next()
}

func (h *LiveHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	sessionID, _ := conn.Locals("session_id").(string)
	client := livews.NewClient(h.hub, conn, sessionID, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *LiveHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
