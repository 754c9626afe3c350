package weapon

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/plugin/hook"
	"github.com/kasuganosora/modforge/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func rifle() Profile {
	return Profile{
		Name: "rifle",
		Stats: map[mod.StatKind]float64{
			mod.StatCritChance:     10,
			mod.StatFireDelay:      0.5,
			mod.StatBulletsPerShot: 1,
			mod.StatMaxAmmo:        30,
			mod.StatBulletVel:      50,
			mod.StatBulletAcc:      -2,
		},
		Damage: map[mod.Element]float64{mod.ElementNormal: 10},
	}
}

func newWeapon(t *testing.T) (*Weapon, *scheduler.ManualClock) {
	t.Helper()
	clock := scheduler.NewManualClock(epoch)
	return New("w1", "player-1", rifle(), clock, zap.NewNop()), clock
}

func recorder(name string, calls *[]string) hook.Callback {
	return hook.Callback{Name: name, Fn: func(_ context.Context, event string, _ interface{}) error {
		*calls = append(*calls, name+":"+event)
		return nil
	}}
}

func TestNew_InitialSnapshot(t *testing.T) {
	w, _ := newWeapon(t)
	snap := w.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 30.0, w.Stats().Get(mod.StatMaxAmmo))
	v, ok := w.Damage().Get(mod.ElementNormal)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.Empty(t, w.Loadout())
}

func TestEquip_RebuildsAndPublishes(t *testing.T) {
	w, _ := newWeapon(t)
	before := w.Snapshot()

	m := &mod.Mod{ID: "hot", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.DamageChange(mod.ElementFire, 5),
		mod.StatChange(mod.StatCritChance, 15),
	}}
	require.NoError(t, w.Equip(mod.SlotBarrel, m))

	after := w.Snapshot()
	assert.Greater(t, after.Version, before.Version)
	assert.Equal(t, 25.0, after.Stats.Get(mod.StatCritChance))
	assert.True(t, after.Damage.Has(mod.ElementFire))
	assert.False(t, before.Damage.Has(mod.ElementFire), "published snapshots are immutable")
	assert.Equal(t, map[mod.Slot][]string{mod.SlotBarrel: {"hot"}}, w.Loadout())
}

func TestEquip_Errors(t *testing.T) {
	w, _ := newWeapon(t)
	assert.ErrorIs(t, w.Equip(mod.Slot(99), &mod.Mod{}), ErrSlotRange)
	assert.ErrorIs(t, w.Equip(mod.SlotGrip, nil), ErrNilMod)
	assert.ErrorIs(t, w.Equip(mod.SlotGrip, &mod.Mod{ID: "x", Slot: mod.SlotOptic}), ErrSlotMismatch)
	assert.Equal(t, uint64(1), w.Snapshot().Version)
}

func TestUnequip(t *testing.T) {
	w, _ := newWeapon(t)
	a := &mod.Mod{ID: "a", Slot: mod.SlotGrip, Effects: []mod.Effect{mod.StatChange(mod.StatRecoilForce, 2)}}
	b := &mod.Mod{ID: "b", Slot: mod.SlotGrip, Effects: []mod.Effect{mod.StatChange(mod.StatRecoilForce, 3)}}
	require.NoError(t, w.Equip(mod.SlotGrip, a))
	require.NoError(t, w.Equip(mod.SlotGrip, b))
	assert.Equal(t, 5.0, w.Stats().Get(mod.StatRecoilForce))

	got, err := w.Unequip(mod.SlotGrip, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 3.0, w.Stats().Get(mod.StatRecoilForce))
	assert.Equal(t, []string{"b"}, w.Loadout()[mod.SlotGrip])

	_, err = w.Unequip(mod.SlotGrip, 5)
	assert.ErrorIs(t, err, ErrModIndex)
	_, err = w.Unequip(mod.Slot(-1), 0)
	assert.ErrorIs(t, err, ErrSlotRange)
}

func TestReload_Idempotent(t *testing.T) {
	w, _ := newWeapon(t)
	require.NoError(t, w.Equip(mod.SlotOptic, &mod.Mod{ID: "o", Slot: mod.SlotOptic, Effects: []mod.Effect{
		mod.StatChange(mod.StatSpreadAngle, 4),
		mod.HookAttach(hook.OnWeaponFire, hook.Callback{Name: "f"}),
	}}))
	s1 := w.Snapshot()
	w.Reload()
	s2 := w.Snapshot()
	assert.Equal(t, s1.Stats, s2.Stats)
	assert.Equal(t, s1.Damage, s2.Damage)
	assert.Equal(t, s1.Hooks.Counts(), s2.Hooks.Counts())
	assert.Equal(t, s1.Version+1, s2.Version)
}

func TestUpdate_TimersThenHook(t *testing.T) {
	w, clock := newWeapon(t)
	var calls []string
	require.NoError(t, w.Equip(mod.SlotMagazine, &mod.Mod{ID: "m", Slot: mod.SlotMagazine, Effects: []mod.Effect{
		mod.TimerAttach(true, time.Second, recorder("tick", &calls)),
		mod.TimerAttach(false, time.Second, recorder("bullet", &calls)),
		mod.HookAttach(hook.OnWeaponUpdate, recorder("upd", &calls)),
	}}))
	assert.Equal(t, 1, w.ActiveTimers())

	w.Update(context.Background(), clock.Advance(500*time.Millisecond))
	assert.Equal(t, []string{"upd:on_weapon_update"}, calls)

	calls = nil
	w.Update(context.Background(), clock.Advance(500*time.Millisecond))
	assert.Equal(t, []string{"tick:timer", "upd:on_weapon_update"}, calls)
}

func TestRebuild_CancelsPreviousTimers(t *testing.T) {
	w, clock := newWeapon(t)
	var calls []string
	require.NoError(t, w.Equip(mod.SlotMagazine, &mod.Mod{ID: "m", Slot: mod.SlotMagazine, Effects: []mod.Effect{
		mod.TimerAttach(true, time.Second, recorder("tick", &calls)),
	}}))
	w.Reload()
	w.Reload()
	assert.Equal(t, 1, w.ActiveTimers())

	w.Update(context.Background(), clock.Advance(time.Second))
	assert.Equal(t, []string{"tick:timer"}, calls)

	_, err := w.Unequip(mod.SlotMagazine, 0)
	require.NoError(t, err)
	calls = nil
	w.Update(context.Background(), clock.Advance(5*time.Second))
	assert.Empty(t, calls)
	assert.Equal(t, 0, w.ActiveTimers())
}

func TestRebuild_DeferredDuringDispatch(t *testing.T) {
	w, clock := newWeapon(t)
	var seen []uint64
	extra := &mod.Mod{ID: "extra", Slot: mod.SlotStock, Effects: []mod.Effect{mod.StatChange(mod.StatMaxAmmo, 10)}}

	equipper := hook.Callback{Name: "equipper", Fn: func(_ context.Context, _ string, data interface{}) error {
		ww := data.(*Weapon)
		seen = append(seen, ww.Snapshot().Version)
		if len(ww.Loadout()[mod.SlotStock]) == 0 {
			return ww.Equip(mod.SlotStock, extra)
		}
		return nil
	}}
	observer := hook.Callback{Name: "observer", Fn: func(_ context.Context, _ string, data interface{}) error {
		seen = append(seen, data.(*Weapon).Snapshot().Version)
		return nil
	}}
	require.NoError(t, w.Equip(mod.SlotBarrel, &mod.Mod{ID: "h", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.HookAttach(hook.OnWeaponUpdate, equipper),
		mod.HookAttach(hook.OnWeaponUpdate, observer),
	}}))
	v := w.Snapshot().Version

	w.Update(context.Background(), clock.Now())
	assert.Equal(t, []uint64{v, v}, seen, "rebuild waits for the dispatch to finish")
	assert.Equal(t, v+1, w.Snapshot().Version)
	assert.Equal(t, 40.0, w.Stats().Get(mod.StatMaxAmmo))
}

func TestFire_SpawnsAndCooldown(t *testing.T) {
	w, clock := newWeapon(t)
	var calls []string
	require.NoError(t, w.Equip(mod.SlotBarrel, &mod.Mod{ID: "shotgun", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.StatChange(mod.StatBulletsPerShot, 2.7),
		mod.HookAttach(hook.OnWeaponFire, recorder("fire", &calls)),
	}}))

	ps, err := w.Fire(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Len(t, ps, 3)
	assert.Equal(t, []string{"fire:on_weapon_fire"}, calls)
	assert.NotEqual(t, ps[0].ID, ps[1].ID)

	_, err = w.Fire(context.Background(), clock.Advance(100*time.Millisecond))
	assert.True(t, errors.Is(err, ErrFireCooldown))
	assert.Len(t, calls, 1)

	_, err = w.Fire(context.Background(), clock.Advance(400*time.Millisecond))
	assert.NoError(t, err)
}

func TestFire_BulletCap(t *testing.T) {
	w, clock := newWeapon(t)
	require.NoError(t, w.Equip(mod.SlotBarrel, &mod.Mod{ID: "flak", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.StatChange(mod.StatBulletsPerShot, 1e12),
	}}))

	ps, err := w.Fire(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Len(t, ps, DefaultMaxBullets)

	w.LimitBullets(4)
	ps, err = w.Fire(context.Background(), clock.Advance(time.Second))
	require.NoError(t, err)
	assert.Len(t, ps, 4)
}

func TestBulletCount(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want int
	}{
		{"below one", 0.4, 1},
		{"nan", math.NaN(), 1},
		{"floored", 3.9, 3},
		{"at cap", 8, 8},
		{"above cap", 9, 8},
		{"infinite", math.Inf(1), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bulletCount(tt.v, 8))
		})
	}
}

func TestRollback_RestoresLoadoutAndVersion(t *testing.T) {
	w, _ := newWeapon(t)
	var calls []string
	require.NoError(t, w.Equip(mod.SlotGrip, &mod.Mod{ID: "g", Slot: mod.SlotGrip, Effects: []mod.Effect{
		mod.TimerAttach(true, time.Second, recorder("t", &calls)),
	}}))
	before := w.Snapshot()
	cp := w.Checkpoint()

	require.NoError(t, w.Equip(mod.SlotBarrel, &mod.Mod{ID: "hot", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.DamageChange(mod.ElementFire, 5),
	}}))
	require.True(t, w.Damage().Has(mod.ElementFire))

	w.Rollback(cp)
	assert.Equal(t, before.Version, w.Snapshot().Version)
	assert.False(t, w.Damage().Has(mod.ElementFire))
	assert.Nil(t, w.Loadout()[mod.SlotBarrel])
	assert.Equal(t, []string{"g"}, w.Loadout()[mod.SlotGrip])
	assert.Equal(t, 1, w.ActiveTimers())
}

func TestReloaded_DispatchesHook(t *testing.T) {
	w, _ := newWeapon(t)
	var calls []string
	require.NoError(t, w.Equip(mod.SlotMagazine, &mod.Mod{ID: "r", Slot: mod.SlotMagazine, Effects: []mod.Effect{
		mod.HookAttach(hook.OnWeaponReload, recorder("r", &calls)),
	}}))
	w.Reloaded(context.Background())
	assert.Equal(t, []string{"r:on_weapon_reload"}, calls)
}

func TestRebind(t *testing.T) {
	w, _ := newWeapon(t)
	old := &mod.Mod{ID: "a", Slot: mod.SlotGrip, Effects: []mod.Effect{mod.StatChange(mod.StatRecoilForce, 1)}}
	gone := &mod.Mod{ID: "b", Slot: mod.SlotGrip}
	require.NoError(t, w.Equip(mod.SlotGrip, old))
	require.NoError(t, w.Equip(mod.SlotGrip, gone))

	updated := &mod.Mod{ID: "a", Slot: mod.SlotGrip, Effects: []mod.Effect{mod.StatChange(mod.StatRecoilForce, 7)}}
	dropped := w.Rebind(func(id string) (*mod.Mod, bool) {
		if id == "a" {
			return updated, true
		}
		return nil, false
	})
	assert.Equal(t, []string{"b"}, dropped)
	assert.Equal(t, 7.0, w.Stats().Get(mod.StatRecoilForce))
	assert.Equal(t, []string{"a"}, w.Loadout()[mod.SlotGrip])
}

func TestGroups_Copy(t *testing.T) {
	w, _ := newWeapon(t)
	require.NoError(t, w.Equip(mod.SlotStock, &mod.Mod{ID: "s", Slot: mod.SlotStock}))
	g := w.Groups()
	require.Len(t, g, mod.SlotCount)
	g[mod.SlotStock].Mods[0] = nil
	assert.Equal(t, []string{"s"}, w.Loadout()[mod.SlotStock])
}
