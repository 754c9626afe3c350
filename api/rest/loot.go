package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/audit"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/loot"
	"github.com/kasuganosora/modforge/game/mod"
	"go.uber.org/zap"
)

// LootHandler handles loot REST endpoints.
type LootHandler struct {
	svc    *loot.Service
	audit  audit.Logger
	logger *zap.Logger
}

// NewLootHandler creates a LootHandler.
func NewLootHandler(svc *loot.Service, auditLog audit.Logger, logger *zap.Logger) *LootHandler {
	return &LootHandler{svc: svc, audit: auditLog, logger: logger}
}

type rollRequest struct {
	Weights []battle.RarityWeight `json:"weights"`
}

type rollResponse struct {
	Rarity  mod.Rarity `json:"rarity"`
	ModID   string     `json:"mod_id,omitempty"`
	ModName string     `json:"mod_name,omitempty"`
}

// Roll handles POST /api/loot/roll.
func (h *LootHandler) Roll(c *gin.Context) {
	start := time.Now()
	var req rollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, m := h.svc.Roll(req.Weights)
	resp := rollResponse{Rarity: r}
	if m != nil {
		resp.ModID = m.ID
		resp.ModName = m.Name
	}
	record(c, h.audit, start, audit.AuditEntry{Action: audit.ActionLootRoll, Request: req, Response: resp})
	c.JSON(http.StatusOK, resp)
}

// Kill handles POST /api/loot/kills by publishing a kill event.
func (h *LootHandler) Kill(c *gin.Context) {
	var ev loot.KillEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.PublishKill(c.Request.Context(), ev); err != nil {
		if errors.Is(err, loot.ErrBadKill) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("kill publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"kill_id": ev.KillID})
}

// Recent handles GET /api/loot/recent?limit=20.
func (h *LootHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	drops, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("recent drops failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drops": drops})
}
