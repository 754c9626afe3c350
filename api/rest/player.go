package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/game/player"
	"go.uber.org/zap"
)

const progressTop = 100

// PlayerHandler handles progression REST endpoints.
type PlayerHandler struct {
	tracker *player.Tracker
	logger  *zap.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(t *player.Tracker, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{tracker: t, logger: logger}
}

// Progress handles GET /api/players/:id/progress.
func (h *PlayerHandler) Progress(c *gin.Context) {
	p, err := h.tracker.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("progress lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Spend handles POST /api/players/:id/tokens/spend.
func (h *PlayerHandler) Spend(c *gin.Context) {
	p, err := h.tracker.Spend(c.Request.Context(), c.Param("id"))
	if errors.Is(err, player.ErrNoTokens) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("token spend failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Top handles GET /api/players/top?limit=20.
func (h *PlayerHandler) Top(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= progressTop {
		limit = l
	}
	ctx := c.Request.Context()
	ids, err := h.tracker.Top(ctx, limit)
	if err != nil {
		h.logger.Error("leaderboard failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]player.Progress, 0, len(ids))
	for _, id := range ids {
		p, err := h.tracker.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	c.JSON(http.StatusOK, gin.H{"ranking": out})
}
