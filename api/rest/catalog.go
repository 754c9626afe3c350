package rest

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/game/loot"
	"github.com/kasuganosora/modforge/game/mod"
)

// CatalogHandler exposes the loaded mod catalog.
type CatalogHandler struct {
	catalog loot.CatalogSource
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(catalog loot.CatalogSource) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type modView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slot        mod.Slot   `json:"slot"`
	Rarity      mod.Rarity `json:"rarity"`
	Description string     `json:"description,omitempty"`
	Effects     []string   `json:"effects"`
}

// Mods handles GET /api/catalog/mods?rarity=rare.
func (h *CatalogHandler) Mods(c *gin.Context) {
	cat := h.catalog.Catalog()
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
		return
	}
	mods := cat.Mods()
	if q := c.Query("rarity"); q != "" {
		r, ok := mod.ParseRarity(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown rarity"})
			return
		}
		mods = cat.Pool(r)
	}
	out := make([]modView, 0, len(mods))
	for _, m := range mods {
		v := modView{ID: m.ID, Name: m.Name, Slot: m.Slot, Rarity: m.Rarity, Description: m.Description}
		v.Effects = make([]string, len(m.Effects))
		for i, e := range m.Effects {
			v.Effects[i] = e.Kind.String()
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"mods": out})
}

// Profiles handles GET /api/catalog/profiles.
func (h *CatalogHandler) Profiles(c *gin.Context) {
	cat := h.catalog.Catalog()
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded"})
		return
	}
	names := cat.ProfileNames()
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"profiles": names})
}
