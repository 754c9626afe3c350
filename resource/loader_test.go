package resource

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasuganosora/modforge/game/action"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/script"
	"github.com/kasuganosora/modforge/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCatalog = `
profiles:
  rifle:
    name: Rifle
    stats:
      crit_chance: 5
      fire_delay: 0.25
      bullets_per_shot: 1
      max_ammo: 30
      bullet_vel: 80
    damage:
      normal: 10
drop_table:
  - {rarity: rare, weight: 50}
  - {rarity: medium, weight: 50}
enemies:
  grunt:
    name: Grunt
    xp_min: 5
    xp_max: 15
    resistance:
      fire: 0.5
  boss:
    xp_min: 100
    xp_max: 200
    drop_table:
      - {rarity: well_done, weight: 1}
mods:
  - id: hot_barrel
    name: Hot Barrel
    slot: barrel
    rarity: rare
    effects:
      - type: damage_change
        element: fire
        delta: 5
      - type: stat_change
        stat: spread_angle
        delta: -1
      - type: hook_attach
        hook: on_bullet_impact
        action: debug_message
        args: {message: sizzle}
  - id: vampire_grip
    slot: grip
    rarity: medium
    effects:
      - type: hook_attach
        hook: on_weapon_fire
        action: heal
        args: {amount: 2}
      - type: timer_attach
        on_weapon: false
        interval: 250ms
        action: debug_message
        args: {message: tick}
      - type: transmogrify
  - id: plain_stock
    slot: stock
    rarity: rare
`

func TestParse_Sample(t *testing.T) {
	// heal needs a host; without one the effect is skipped, not the catalog.
	cat, err := Parse([]byte(sampleCatalog), action.NewRegistry(nil, nil, zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, cat.Warnings, 2)
	assert.Contains(t, cat.Warnings[0], "vampire_grip")
	vg, _ := cat.Mod("vampire_grip")
	assert.Len(t, vg.Effects, 1)

	cat, err = Parse([]byte(sampleCatalog), action.NewRegistry(nopHost{}, nil, zap.NewNop()))
	require.NoError(t, err)

	p, ok := cat.Profile("rifle")
	require.True(t, ok)
	assert.Equal(t, "Rifle", p.Name)
	assert.Equal(t, 0.25, p.Stats[mod.StatFireDelay])
	assert.Equal(t, 10.0, p.Damage[mod.ElementNormal])

	assert.Equal(t, []battle.RarityWeight{
		{Rarity: mod.RarityRare, Weight: 50},
		{Rarity: mod.RarityMedium, Weight: 50},
	}, cat.DropTable())

	g, ok := cat.Enemy("grunt")
	require.True(t, ok)
	assert.Equal(t, 5, g.XPMin)
	assert.Equal(t, 0.5, g.Resistance[mod.ElementFire])
	assert.Equal(t, cat.DropTable(), cat.DropTableFor("grunt"))
	assert.Equal(t, []battle.RarityWeight{{Rarity: mod.RarityWellDone, Weight: 1}}, cat.DropTableFor("boss"))

	hb, ok := cat.Mod("hot_barrel")
	require.True(t, ok)
	assert.Equal(t, mod.SlotBarrel, hb.Slot)
	require.Len(t, hb.Effects, 3)
	assert.Equal(t, mod.EffectDamageChange, hb.Effects[0].Kind)
	assert.Equal(t, hook.OnBulletImpact, hb.Effects[2].Hook)
	assert.Equal(t, "hot_barrel#2:debug_message", hb.Effects[2].Callback.Name)

	vg, _ = cat.Mod("vampire_grip")
	require.Len(t, vg.Effects, 2)
	assert.Equal(t, 250*time.Millisecond, vg.Effects[1].Interval)
	assert.False(t, vg.Effects[1].OnWeapon)
	require.Len(t, cat.Warnings, 1)
	assert.Contains(t, cat.Warnings[0], "transmogrify")

	rare := cat.Pool(mod.RarityRare)
	require.Len(t, rare, 2)
	assert.Equal(t, "hot_barrel", rare[0].ID)
	assert.Equal(t, "plain_stock", rare[1].ID)
	assert.Empty(t, cat.Pool(mod.RarityMediumWell))
	assert.Len(t, cat.Mods(), 3)
}

func TestParse_Errors(t *testing.T) {
	actions := action.NewRegistry(nopHost{}, nil, zap.NewNop())
	cases := map[string]string{
		"bad yaml":     "mods: [",
		"unknown slot": "mods: [{id: a, slot: trigger}]",
		"missing id":   "mods: [{slot: barrel}]",
		"duplicate id": "mods: [{id: a, slot: barrel}, {id: a, slot: grip}]",
		"bad rarity":   "drop_table: [{rarity: legendary, weight: 1}]",
		"bad xp range": "enemies: {grunt: {xp_min: 10, xp_max: 5}}",
		"bad profile":  "profiles: {rifle: {stats: {luck: 1}}}",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), actions)
			assert.Error(t, err)
		})
	}
}

func TestParse_SkipsMalformedEffects(t *testing.T) {
	actions := action.NewRegistry(nopHost{}, nil, zap.NewNop())
	cases := map[string]string{
		"bad element":   "{type: damage_change, element: water, delta: 1}",
		"bad stat":      "{type: stat_change, stat: luck, delta: 1}",
		"bad hook":      "{type: hook_attach, hook: on_jump, action: debug_message, args: {message: x}}",
		"bad interval":  "{type: timer_attach, interval: soon, action: debug_message, args: {message: x}}",
		"zero interval": "{type: timer_attach, interval: 0s, action: debug_message, args: {message: x}}",
		"bad action":    "{type: hook_attach, hook: on_weapon_fire, action: explode}",
		"bad args":      "{type: hook_attach, hook: on_weapon_fire, action: heal}",
	}
	for name, effect := range cases {
		t.Run(name, func(t *testing.T) {
			src := "mods: [{id: a, slot: barrel, effects: [" + effect +
				", {type: stat_change, stat: crit_chance, delta: 5}]}]"
			cat, err := Parse([]byte(src), actions)
			require.NoError(t, err)
			require.Len(t, cat.Warnings, 1)
			assert.Contains(t, cat.Warnings[0], "mod a effect #0")

			m, ok := cat.Mod("a")
			require.True(t, ok, "the mod survives with its valid effects")
			require.Len(t, m.Effects, 1)
			assert.Equal(t, mod.StatCritChance, m.Effects[0].Stat)
		})
	}
}

type nopHost struct{}

func (nopHost) Heal(context.Context, string, float64) error  { return nil }
func (nopHost) Phase(context.Context, string, float64) error { return nil }
func (nopHost) Drop(context.Context, string, string) error   { return nil }

func writeCatalog(t *testing.T, path, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestLoader_LoadKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mods.yaml")
	l := NewLoader(path, action.NewRegistry(nopHost{}, nil, zap.NewNop()), zap.NewNop())

	assert.Error(t, l.Load())
	assert.Nil(t, l.Catalog())
	_, ok := l.Mod("hot_barrel")
	assert.False(t, ok)

	var reloads int32
	l.OnReload(func(*Catalog) { atomic.AddInt32(&reloads, 1) })

	writeCatalog(t, path, sampleCatalog)
	require.NoError(t, l.Load())
	_, ok = l.Mod("hot_barrel")
	assert.True(t, ok)

	writeCatalog(t, path, "mods: [")
	assert.Error(t, l.Load())
	_, ok = l.Mod("hot_barrel")
	assert.True(t, ok, "a failed load keeps the previous catalog")
	assert.Equal(t, int32(1), atomic.LoadInt32(&reloads))
}

func TestLoader_WatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mods.yaml")
	writeCatalog(t, path, "mods: [{id: a, slot: barrel}]")

	l := NewLoader(path, action.NewRegistry(nopHost{}, nil, zap.NewNop()), zap.NewNop())
	require.NoError(t, l.Load())

	reloaded := make(chan *Catalog, 4)
	l.OnReload(func(c *Catalog) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, 20*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// unrelated files in the directory are ignored
	writeCatalog(t, filepath.Join(dir, "other.yaml"), "x: 1")

	require.Eventually(t, func() bool {
		writeCatalog(t, path, "mods: [{id: a, slot: barrel}, {id: b, slot: grip}]")
		select {
		case c := <-reloaded:
			_, ok := c.Mod("b")
			return ok
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestParse_ShippedCatalog(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "data", "mods.yaml"))
	require.NoError(t, err)
	sb := script.NewSandbox(1, time.Second, zap.NewNop())
	cat, err := Parse(data, action.NewRegistry(nopHost{}, sb, zap.NewNop()))
	require.NoError(t, err)
	assert.Empty(t, cat.Warnings)
	assert.Len(t, cat.Mods(), 10)

	for _, name := range []string{"rifle", "shotgun"} {
		_, ok := cat.Profile(name)
		assert.True(t, ok, name)
	}
	for _, r := range []mod.Rarity{mod.RarityRare, mod.RarityMediumRare, mod.RarityMedium, mod.RarityMediumWell, mod.RarityWellDone} {
		assert.NotEmpty(t, cat.Pool(r), r.String())
	}
	assert.Equal(t, 100, battle.TotalWeight(cat.DropTable()))
}
