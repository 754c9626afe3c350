package resource

import (
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/weapon"
)

// Enemy is the loot and progression data of an enemy kind.
type Enemy struct {
	ID         string
	Name       string
	XPMin      int
	XPMax      int
	DropTable  []battle.RarityWeight
	Resistance map[mod.Element]float64
}

// Catalog is an immutable, fully resolved mod catalog.
type Catalog struct {
	mods      map[string]*mod.Mod
	order     []string
	profiles  map[string]weapon.Profile
	dropTable []battle.RarityWeight
	enemies   map[string]*Enemy

	// Warnings lists authored entries that were skipped while loading.
	Warnings []string
}

func newCatalog() *Catalog {
	return &Catalog{
		mods:     make(map[string]*mod.Mod),
		profiles: make(map[string]weapon.Profile),
		enemies:  make(map[string]*Enemy),
	}
}

// Mod returns the mod with id.
func (c *Catalog) Mod(id string) (*mod.Mod, bool) {
	m, ok := c.mods[id]
	return m, ok
}

// Mods returns every mod in authored order.
func (c *Catalog) Mods() []*mod.Mod {
	out := make([]*mod.Mod, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.mods[id])
	}
	return out
}

// Pool returns the mods of rarity r in authored order.
func (c *Catalog) Pool(r mod.Rarity) []*mod.Mod {
	var out []*mod.Mod
	for _, id := range c.order {
		if m := c.mods[id]; m.Rarity == r {
			out = append(out, m)
		}
	}
	return out
}

// Profile returns the base weapon profile named name.
func (c *Catalog) Profile(name string) (weapon.Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// ProfileNames lists the known profile keys.
func (c *Catalog) ProfileNames() []string {
	out := make([]string, 0, len(c.profiles))
	for k := range c.profiles {
		out = append(out, k)
	}
	return out
}

// DropTable returns the default rarity weights.
func (c *Catalog) DropTable() []battle.RarityWeight {
	return append([]battle.RarityWeight(nil), c.dropTable...)
}

// Enemy returns the enemy kind id.
func (c *Catalog) Enemy(id string) (*Enemy, bool) {
	e, ok := c.enemies[id]
	return e, ok
}

// DropTableFor returns the enemy's own drop table, or the default one.
func (c *Catalog) DropTableFor(enemyID string) []battle.RarityWeight {
	if e, ok := c.enemies[enemyID]; ok && len(e.DropTable) > 0 {
		return append([]battle.RarityWeight(nil), e.DropTable...)
	}
	return c.DropTable()
}
