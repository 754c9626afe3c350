package weapon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/plugin/hook"
	"github.com/kasuganosora/modforge/scheduler"
	"go.uber.org/zap"
)

var (
	ErrSlotRange    = errors.New("weapon: slot out of range")
	ErrSlotMismatch = errors.New("weapon: mod does not fit slot")
	ErrModIndex     = errors.New("weapon: mod index out of range")
	ErrNilMod       = errors.New("weapon: nil mod")
	ErrFireCooldown = errors.New("weapon: fire delay not elapsed")
	ErrDestroyed    = errors.New("weapon: projectile already destroyed")
)

// DefaultMaxBullets caps bullets_per_shot until LimitBullets sets another cap.
const DefaultMaxBullets = 64

// Profile is the authored base configuration of a weapon.
type Profile struct {
	Name   string                   `json:"name" yaml:"name"`
	Stats  map[mod.StatKind]float64 `json:"stats" yaml:"stats"`
	Damage map[mod.Element]float64  `json:"damage" yaml:"damage"`
}

// Snapshot is the derived state published by a rebuild. It is immutable.
type Snapshot struct {
	Version          uint64
	BuiltAt          time.Time
	Stats            mod.StatTable
	Damage           mod.DamageTable
	Hooks            *hook.Registry
	ProjectileTimers []mod.TimerBinding
}

// Weapon owns a base profile, its equipped mod groups and the derived state
// computed from them. Mutating methods are not safe for concurrent use;
// Snapshot may be read from any goroutine.
type Weapon struct {
	ID    string
	Name  string
	Owner string

	baseStats  mod.StatTable
	baseDamage mod.DamageTable
	groups     [mod.SlotCount]mod.ModGroup

	snap    atomic.Pointer[Snapshot]
	version uint64
	timers  *scheduler.TimerSet
	clock   scheduler.Clock
	logger  *zap.Logger

	depth      int
	pending    bool
	lastShot   time.Time
	maxBullets int
}

// Checkpoint is a loadout a weapon can roll back to.
type Checkpoint struct {
	groups  []mod.ModGroup
	version uint64
}

// New creates a weapon from p and performs the initial rebuild.
func New(id, owner string, p Profile, clock scheduler.Clock, logger *zap.Logger) *Weapon {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	w := &Weapon{
		ID:         id,
		Name:       p.Name,
		Owner:      owner,
		baseStats:  mod.NewStatTable(p.Stats),
		baseDamage: mod.NewDamageTable(p.Damage),
		clock:      clock,
		logger:     logger.With(zap.String("weapon", id)),
		maxBullets: DefaultMaxBullets,
	}
	for i := range w.groups {
		s := mod.Slot(i)
		w.groups[i] = mod.ModGroup{Name: s.String(), Slot: s}
	}
	w.timers = scheduler.NewTimerSet(id, w, w.logger)
	w.rebuild()
	return w
}

// OwnerID returns the entity holding the weapon.
func (w *Weapon) OwnerID() string { return w.Owner }

// Snapshot returns the most recently published derived state.
func (w *Weapon) Snapshot() *Snapshot { return w.snap.Load() }

func (w *Weapon) Stats() mod.StatTable    { return w.snap.Load().Stats }
func (w *Weapon) Damage() mod.DamageTable { return w.snap.Load().Damage }
func (w *Weapon) Hooks() *hook.Registry   { return w.snap.Load().Hooks }

// Base returns the authored profile the weapon was created from.
func (w *Weapon) Base() Profile {
	return Profile{Name: w.Name, Stats: w.baseStats.Map(), Damage: w.baseDamage.Map()}
}

// ActiveTimers returns the number of running weapon timers.
func (w *Weapon) ActiveTimers() int { return w.timers.Len() }

// Equip appends m to slot and rebuilds.
func (w *Weapon) Equip(slot mod.Slot, m *mod.Mod) error {
	if !slot.Valid() {
		return ErrSlotRange
	}
	if m == nil {
		return ErrNilMod
	}
	if m.Slot != slot {
		return fmt.Errorf("%w: %s is a %s mod", ErrSlotMismatch, m.ID, m.Slot)
	}
	g := &w.groups[slot]
	g.Mods = append(g.Mods, m)
	w.rebuild()
	return nil
}

// Unequip removes the mod at index in slot and rebuilds.
func (w *Weapon) Unequip(slot mod.Slot, index int) (*mod.Mod, error) {
	if !slot.Valid() {
		return nil, ErrSlotRange
	}
	g := &w.groups[slot]
	if index < 0 || index >= len(g.Mods) {
		return nil, ErrModIndex
	}
	m := g.Mods[index]
	mods := make([]*mod.Mod, 0, len(g.Mods)-1)
	mods = append(mods, g.Mods[:index]...)
	g.Mods = append(mods, g.Mods[index+1:]...)
	w.rebuild()
	return m, nil
}

// LimitBullets caps the projectiles spawned per shot. n <= 0 is ignored.
func (w *Weapon) LimitBullets(n int) {
	if n > 0 {
		w.maxBullets = n
	}
}

// Checkpoint captures the current loadout and snapshot version.
func (w *Weapon) Checkpoint() Checkpoint {
	return Checkpoint{groups: w.Groups(), version: w.version}
}

// Rollback restores the loadout of cp and rebuilds it under cp's version.
func (w *Weapon) Rollback(cp Checkpoint) {
	for i, g := range cp.groups {
		w.groups[i].Mods = append([]*mod.Mod(nil), g.Mods...)
	}
	w.version = cp.version - 1
	w.rebuild()
}

// Reload rebuilds the derived state from the current groups.
func (w *Weapon) Reload() { w.rebuild() }

// Rebind replaces every equipped mod with the one lookup returns for its ID
// and rebuilds. Mods lookup no longer knows are removed; their IDs are returned.
func (w *Weapon) Rebind(lookup func(id string) (*mod.Mod, bool)) []string {
	var dropped []string
	for i := range w.groups {
		g := &w.groups[i]
		kept := make([]*mod.Mod, 0, len(g.Mods))
		for _, m := range g.Mods {
			nm, ok := lookup(m.ID)
			if !ok || nm.Slot != g.Slot {
				dropped = append(dropped, m.ID)
				continue
			}
			kept = append(kept, nm)
		}
		g.Mods = kept
	}
	w.rebuild()
	return dropped
}

// Groups returns a copy of the equipped groups.
func (w *Weapon) Groups() []mod.ModGroup {
	out := make([]mod.ModGroup, len(w.groups))
	for i, g := range w.groups {
		out[i] = mod.ModGroup{Name: g.Name, Slot: g.Slot, Mods: append([]*mod.Mod(nil), g.Mods...)}
	}
	return out
}

// Loadout returns the equipped mod IDs per slot, in equip order.
func (w *Weapon) Loadout() map[mod.Slot][]string {
	out := make(map[mod.Slot][]string)
	for _, g := range w.groups {
		if len(g.Mods) == 0 {
			continue
		}
		ids := make([]string, len(g.Mods))
		for i, m := range g.Mods {
			ids[i] = m.ID
		}
		out[g.Slot] = ids
	}
	return out
}

// Update advances the weapon timers and dispatches on_weapon_update.
func (w *Weapon) Update(ctx context.Context, now time.Time) {
	w.enter()
	defer w.leave()
	w.timers.Advance(ctx, now)
	w.snap.Load().Hooks.Dispatch(ctx, hook.OnWeaponUpdate, w, w.logger)
}

// Fire dispatches on_weapon_fire and spawns bullets_per_shot projectiles,
// at most the LimitBullets cap, each holding a copy of the state current at spawn time.
// Returns ErrFireCooldown when fire_delay seconds have not passed since the last shot.
func (w *Weapon) Fire(ctx context.Context, now time.Time) ([]*Projectile, error) {
	delay := seconds(w.snap.Load().Stats.Get(mod.StatFireDelay))
	if !w.lastShot.IsZero() && now.Sub(w.lastShot) < delay {
		return nil, ErrFireCooldown
	}
	w.lastShot = now

	w.enter()
	w.snap.Load().Hooks.Dispatch(ctx, hook.OnWeaponFire, w, w.logger)
	w.leave()

	snap := w.snap.Load()
	out := make([]*Projectile, bulletCount(snap.Stats.Get(mod.StatBulletsPerShot), w.maxBullets))
	for i := range out {
		out[i] = newProjectile(w, snap, now)
	}
	return out, nil
}

// Reloaded dispatches on_weapon_reload. Ammo handling is up to the caller.
func (w *Weapon) Reloaded(ctx context.Context) {
	w.enter()
	defer w.leave()
	w.snap.Load().Hooks.Dispatch(ctx, hook.OnWeaponReload, w, w.logger)
}

// Stop cancels the weapon timers.
func (w *Weapon) Stop() { w.timers.CancelAll() }

func (w *Weapon) enter() { w.depth++ }

func (w *Weapon) leave() {
	w.depth--
	if w.depth == 0 && w.pending {
		w.rebuild()
	}
}

// rebuild is deferred while a dispatch or timer pass is running.
func (w *Weapon) rebuild() {
	if w.depth > 0 {
		w.pending = true
		return
	}
	w.pending = false
	w.timers.CancelAll()

	res := mod.Rebuild(w.baseStats, w.baseDamage, w.groups[:])
	now := w.clock.Now()
	w.version++
	w.snap.Store(&Snapshot{
		Version:          w.version,
		BuiltAt:          now,
		Stats:            res.Stats,
		Damage:           res.Damage,
		Hooks:            res.Hooks,
		ProjectileTimers: res.ProjectileTimers(),
	})

	for _, b := range res.WeaponTimers() {
		w.timers.Add(b.Interval, b.Callback)
	}
	w.timers.Start(now)
	w.logger.Debug("weapon rebuilt",
		zap.Uint64("version", w.version),
		zap.Int("timers", w.timers.Len()))
}

// bulletCount floors v into [1, max]. NaN counts as 1.
func bulletCount(v float64, max int) int {
	switch {
	case !(v >= 1):
		return 1
	case v >= float64(max):
		return max
	}
	return int(math.Floor(v))
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
