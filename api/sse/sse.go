// Package sse streams loot drops and weapon effects to clients.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/cache"
	mw "github.com/kasuganosora/modforge/middleware"
	"go.uber.org/zap"
)

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	channels  []string
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a Handler relaying the given pub/sub channels. Each
// message is sent as an event named after its channel.
func NewHandler(pubsub cache.PubSub, logger *zap.Logger, channels ...string) *Handler {
	return &Handler{pubsub: pubsub, channels: channels, keepalive: 30 * time.Second, logger: logger}
}

// ownerOf extracts the player a payload concerns.
func ownerOf(payload string) string {
	var v struct {
		PlayerID string `json:"player_id"`
		Owner    string `json:"owner"`
	}
	if json.Unmarshal([]byte(payload), &v) != nil {
		return ""
	}
	if v.PlayerID != "" {
		return v.PlayerID
	}
	return v.Owner
}

// ServeSSE handles GET /events?player=<id>.
// With a player (query or X-Player-ID header) only that player's events are sent.
func (h *Handler) ServeSSE(c *gin.Context) {
	filter := c.Query("player")
	if filter == "" {
		filter = mw.GetPlayerID(c)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, h.channels...)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if filter != "" && ownerOf(msg.Payload) != filter {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Channel, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
