package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/script"
	"github.com/kasuganosora/modforge/game/weapon"
	"github.com/kasuganosora/modforge/plugin/hook"
	"github.com/kasuganosora/modforge/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHost struct {
	mu     sync.Mutex
	healed map[string]float64
	phased map[string]float64
	drops  []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{healed: map[string]float64{}, phased: map[string]float64{}}
}

func (h *fakeHost) Heal(_ context.Context, owner string, amount float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healed[owner] += amount
	return nil
}

func (h *fakeHost) Phase(_ context.Context, owner string, distance float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phased[owner] += distance
	return nil
}

func (h *fakeHost) Drop(_ context.Context, owner, item string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drops = append(h.drops, owner+":"+item)
	return nil
}

type owned string

func (o owned) OwnerID() string { return string(o) }

func newRegistry(t *testing.T, host Host) *Registry {
	t.Helper()
	return NewRegistry(host, script.NewSandbox(1, 200*time.Millisecond, zap.NewNop()), zap.NewNop())
}

func TestNames(t *testing.T) {
	r := newRegistry(t, newFakeHost())
	assert.Equal(t, []string{"debug_message", "drop", "heal", "phase", "script"}, r.Names())

	noScript := NewRegistry(nil, nil, nil)
	assert.NotContains(t, noScript.Names(), "script")
}

func TestBuild_Heal(t *testing.T) {
	host := newFakeHost()
	r := newRegistry(t, host)
	cb, err := r.Build("heal", "", Args{"amount": 5})
	require.NoError(t, err)
	assert.Equal(t, "heal", cb.Name)

	require.NoError(t, cb.Call(context.Background(), "on_weapon_fire", owned("p1")))
	require.NoError(t, cb.Call(context.Background(), "on_weapon_fire", owned("p1")))
	assert.Equal(t, 10.0, host.healed["p1"])
}

func TestBuild_PhaseNeedsOwner(t *testing.T) {
	r := newRegistry(t, newFakeHost())
	cb, err := r.Build("phase", "blink", Args{"distance": 3.5})
	require.NoError(t, err)
	assert.Equal(t, "blink", cb.Name)
	err = cb.Call(context.Background(), "timer", nil)
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestBuild_Drop(t *testing.T) {
	host := newFakeHost()
	r := newRegistry(t, host)
	cb, err := r.Build("drop", "", Args{"item": "ammo_box"})
	require.NoError(t, err)
	require.NoError(t, cb.Call(context.Background(), "on_bullet_impact", owned("p2")))
	assert.Equal(t, []string{"p2:ammo_box"}, host.drops)
}

func TestBuild_DebugMessage(t *testing.T) {
	r := newRegistry(t, nil)
	cb, err := r.Build("debug_message", "", Args{"message": "fired"})
	require.NoError(t, err)
	assert.NoError(t, cb.Call(context.Background(), "on_weapon_fire", nil))
}

func TestBuild_Errors(t *testing.T) {
	r := newRegistry(t, newFakeHost())

	_, err := r.Build("teleport", "", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.Build("heal", "", Args{})
	assert.ErrorIs(t, err, ErrBadArgs)

	_, err = r.Build("heal", "", Args{"amount": "lots"})
	assert.ErrorIs(t, err, ErrBadArgs)

	_, err = r.Build("script", "", Args{"source": "{{{"})
	assert.ErrorIs(t, err, ErrBadArgs)

	_, err = NewRegistry(nil, nil, nil).Build("heal", "", Args{"amount": 1})
	assert.Error(t, err)
}

func TestRegister_Custom(t *testing.T) {
	r := newRegistry(t, nil)
	called := false
	r.Register("ping", func(_ *Registry, _ Args) (hook.Func, error) {
		return func(context.Context, string, interface{}) error { called = true; return nil }, nil
	})
	cb, err := r.Build("ping", "", nil)
	require.NoError(t, err)
	require.NoError(t, cb.Call(context.Background(), "x", nil))
	assert.True(t, called)
}

func TestScript_OnWeaponTimer(t *testing.T) {
	host := newFakeHost()
	r := newRegistry(t, host)
	cb, err := r.Build("script", "regen", Args{"source": `
		if (event === "timer") { host.heal(weapon.stat("crit_chance")); }
	`})
	require.NoError(t, err)

	clock := scheduler.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w := weapon.New("w1", "p1", weapon.Profile{
		Stats:  map[mod.StatKind]float64{mod.StatCritChance: 12},
		Damage: map[mod.Element]float64{mod.ElementNormal: 1},
	}, clock, zap.NewNop())
	require.NoError(t, w.Equip(mod.SlotMagazine, &mod.Mod{ID: "regen", Slot: mod.SlotMagazine, Effects: []mod.Effect{
		mod.TimerAttach(true, time.Second, cb),
	}}))

	w.Update(context.Background(), clock.Advance(time.Second))
	assert.Equal(t, 12.0, host.healed["p1"])
}

func TestScript_ProjectileImpactDamageLookup(t *testing.T) {
	host := newFakeHost()
	r := newRegistry(t, host)
	cb, err := r.Build("script", "", Args{"source": `host.phase(weapon.damage("fire") + weapon.stat("bullet_vel"))`})
	require.NoError(t, err)

	clock := scheduler.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w := weapon.New("w1", "p1", weapon.Profile{
		Stats:  map[mod.StatKind]float64{mod.StatBulletVel: 20},
		Damage: map[mod.Element]float64{mod.ElementFire: 3},
	}, clock, zap.NewNop())
	require.NoError(t, w.Equip(mod.SlotBarrel, &mod.Mod{ID: "b", Slot: mod.SlotBarrel, Effects: []mod.Effect{
		mod.HookAttach(hook.OnBulletImpact, cb),
	}}))
	ps, err := w.Fire(context.Background(), clock.Now())
	require.NoError(t, err)
	_, err = ps[0].Impact(context.Background(), weapon.Target{ID: "enemy"})
	require.NoError(t, err)
	assert.Equal(t, 23.0, host.phased["p1"])
}

func TestScript_ErrorIsReturned(t *testing.T) {
	r := newRegistry(t, nil)
	cb, err := r.Build("script", "", Args{"source": `throw new Error("nope")`})
	require.NoError(t, err)
	err = cb.Call(context.Background(), "timer", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, hook.ErrPanic))
}

func TestArgs_Number(t *testing.T) {
	for _, v := range []interface{}{3, int64(3), uint64(3), 3.0, float32(3)} {
		n, err := Args{"n": v}.Number("n")
		require.NoError(t, err)
		assert.Equal(t, 3.0, n)
	}
}
