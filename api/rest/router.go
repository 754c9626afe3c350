package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups the REST handlers mounted by RegisterRoutes.
type Handlers struct {
	Weapon  *WeaponHandler
	Loot    *LootHandler
	Player  *PlayerHandler
	Catalog *CatalogHandler
}

// RegisterRoutes mounts /health and the /api routes on r.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	weapons := api.Group("/weapons")
	weapons.POST("", h.Weapon.Create)
	weapons.GET("/:id", h.Weapon.Get)
	weapons.DELETE("/:id", h.Weapon.Delete)
	weapons.POST("/:id/slots/:slot/mods", h.Weapon.Equip)
	weapons.DELETE("/:id/slots/:slot/mods/:index", h.Weapon.Unequip)
	weapons.POST("/:id/reload", h.Weapon.Reload)
	weapons.POST("/:id/fire", h.Weapon.Fire)
	weapons.POST("/:id/projectiles/:pid/impact", h.Weapon.Impact)

	lootG := api.Group("/loot")
	lootG.POST("/roll", h.Loot.Roll)
	lootG.POST("/kills", h.Loot.Kill)
	lootG.GET("/recent", h.Loot.Recent)

	players := api.Group("/players")
	players.GET("/top", h.Player.Top)
	players.GET("/:id/progress", h.Player.Progress)
	players.POST("/:id/tokens/spend", h.Player.Spend)

	catalog := api.Group("/catalog")
	catalog.GET("/mods", h.Catalog.Mods)
	catalog.GET("/profiles", h.Catalog.Profiles)
}
