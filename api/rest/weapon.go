package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/audit"
	"github.com/kasuganosora/modforge/game/armory"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/loot"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/weapon"
	mw "github.com/kasuganosora/modforge/middleware"
	"go.uber.org/zap"
)

// DamageSinks hands out the health sink of an impact target.
type DamageSinks interface {
	Damage(ctx context.Context, target, source string) battle.HealthSink
}

// WeaponHandler handles weapon REST endpoints.
type WeaponHandler struct {
	armory  *armory.Armory
	catalog loot.CatalogSource
	sinks   DamageSinks
	audit   audit.Logger
	logger  *zap.Logger
}

// NewWeaponHandler creates a WeaponHandler. sinks and auditLog may be nil.
func NewWeaponHandler(a *armory.Armory, catalog loot.CatalogSource, sinks DamageSinks, auditLog audit.Logger, logger *zap.Logger) *WeaponHandler {
	return &WeaponHandler{armory: a, catalog: catalog, sinks: sinks, audit: auditLog, logger: logger}
}

type createWeaponRequest struct {
	Owner   string `json:"owner"`
	Profile string `json:"profile" binding:"required"`
}

type equipRequest struct {
	ModID string `json:"mod_id" binding:"required"`
}

type impactRequest struct {
	TargetID string `json:"target_id" binding:"required"`
	EnemyID  string `json:"enemy_id"`
}

// weaponStatus maps armory and weapon errors to HTTP status codes.
func weaponStatus(err error) int {
	switch {
	case errors.Is(err, armory.ErrUnknownWeapon),
		errors.Is(err, armory.ErrUnknownProjectile):
		return http.StatusNotFound
	case errors.Is(err, armory.ErrUnknownMod),
		errors.Is(err, weapon.ErrSlotRange),
		errors.Is(err, weapon.ErrSlotMismatch),
		errors.Is(err, weapon.ErrModIndex),
		errors.Is(err, weapon.ErrNilMod):
		return http.StatusBadRequest
	case errors.Is(err, weapon.ErrFireCooldown),
		errors.Is(err, weapon.ErrDestroyed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *WeaponHandler) fail(c *gin.Context, err error) {
	status := weaponStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("weapon request failed", zap.String("trace_id", mw.GetTraceID(c)), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Create handles POST /api/weapons.
func (h *WeaponHandler) Create(c *gin.Context) {
	start := time.Now()
	var req createWeaponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Owner == "" {
		req.Owner = mw.GetPlayerID(c)
	}
	if req.Owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner required"})
		return
	}
	cat := h.catalog.Catalog()
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
		return
	}
	p, ok := cat.Profile(req.Profile)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown profile"})
		return
	}

	v, err := h.armory.Create(c.Request.Context(), req.Owner, p)
	record(c, h.audit, start, audit.AuditEntry{
		PlayerID: req.Owner, WeaponID: v.ID, Action: audit.ActionCreate,
		Request: req, Response: v, Error: errMsg(err),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Get handles GET /api/weapons/:id.
func (h *WeaponHandler) Get(c *gin.Context) {
	v, err := h.armory.View(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Equip handles POST /api/weapons/:id/slots/:slot/mods.
func (h *WeaponHandler) Equip(c *gin.Context) {
	start := time.Now()
	slot, ok := mod.ParseSlot(c.Param("slot"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown slot"})
		return
	}
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	v, err := h.armory.Equip(c.Request.Context(), id, slot, req.ModID)
	record(c, h.audit, start, audit.AuditEntry{
		WeaponID: id, Action: audit.ActionEquip,
		Request: gin.H{"slot": slot, "mod_id": req.ModID}, Response: v, Error: errMsg(err),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Unequip handles DELETE /api/weapons/:id/slots/:slot/mods/:index.
func (h *WeaponHandler) Unequip(c *gin.Context) {
	start := time.Now()
	slot, ok := mod.ParseSlot(c.Param("slot"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown slot"})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	id := c.Param("id")
	v, err := h.armory.Unequip(c.Request.Context(), id, slot, index)
	record(c, h.audit, start, audit.AuditEntry{
		WeaponID: id, Action: audit.ActionUnequip,
		Request: gin.H{"slot": slot, "index": index}, Response: v, Error: errMsg(err),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Reload handles POST /api/weapons/:id/reload.
func (h *WeaponHandler) Reload(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	v, err := h.armory.Reload(c.Request.Context(), id)
	record(c, h.audit, start, audit.AuditEntry{
		WeaponID: id, Action: audit.ActionReload, Response: v, Error: errMsg(err),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Fire handles POST /api/weapons/:id/fire.
func (h *WeaponHandler) Fire(c *gin.Context) {
	shots, err := h.armory.Fire(c.Request.Context(), c.Param("id"), time.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	ids := make([]string, len(shots))
	for i, p := range shots {
		ids[i] = p.ID
	}
	c.JSON(http.StatusOK, gin.H{"projectiles": ids})
}

// Impact handles POST /api/weapons/:id/projectiles/:pid/impact. The enemy's
// resistances scale the damage, which goes to the target's health sink.
func (h *WeaponHandler) Impact(c *gin.Context) {
	start := time.Now()
	var req impactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	v, err := h.armory.View(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	target := weapon.Target{ID: req.TargetID}
	if req.EnemyID != "" {
		cat := h.catalog.Catalog()
		if cat == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": loot.ErrNoCatalog.Error()})
			return
		}
		e, ok := cat.Enemy(req.EnemyID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown enemy " + req.EnemyID})
			return
		}
		target.Multipliers = e.Resistance
	}

	var sink battle.HealthSink
	if h.sinks != nil {
		sink = h.sinks.Damage(c.Request.Context(), req.TargetID, v.Owner)
	}
	out, err := h.armory.Impact(c.Request.Context(), id, c.Param("pid"), target, sink)
	record(c, h.audit, start, audit.AuditEntry{
		PlayerID: v.Owner, WeaponID: id, Action: audit.ActionImpact,
		Request: req, Response: out, Error: errMsg(err),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target_id": req.TargetID, "amount": out.Amount, "crit": out.Crit})
}

// Delete handles DELETE /api/weapons/:id.
func (h *WeaponHandler) Delete(c *gin.Context) {
	if err := h.armory.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
