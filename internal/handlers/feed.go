package handlers

import (
	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/realtime"
)

// FeedHandler streams signup and profile events to websocket clients.
type FeedHandler struct {
	Hub *realtime.Hub
}

func NewFeedHandler(hub *realtime.Hub) *FeedHandler {
	return &FeedHandler{Hub: hub}
}

// Upgrade rejects plain HTTP requests to the feed endpoint.
func (h *FeedHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *FeedHandler) WebSocketHandler(c *websocket.Conn) {
	userID := uuid.Nil
	if raw, ok := c.Locals("userId").(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			userID = id
		}
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	log.Debug("feed client connected", "client", client.ID, "user", userID)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Debug("feed client disconnected", "client", client.ID)
	}()

	go func() {
		for msg := range client.Send {
			if err := client.Conn.WriteText(msg); err != nil {
				log.Debug("feed write failed", "client", client.ID, "error", err)
				return
			}
		}
	}()

	// The feed is one-way; reading only detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
