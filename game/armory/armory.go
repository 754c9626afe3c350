// Package armory keeps the live weapons of the server. All weapon mutation
// goes through it so HTTP handlers and the world tick never race a rebuild.
package armory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/modforge/cache"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/weapon"
	"github.com/kasuganosora/modforge/scheduler"
	"go.uber.org/zap"
)

var (
	ErrUnknownWeapon     = errors.New("armory: unknown weapon")
	ErrUnknownMod        = errors.New("armory: unknown mod")
	ErrUnknownProjectile = errors.New("armory: unknown projectile")
)

// ModSource resolves mod IDs. The resource loader and catalogs implement it.
type ModSource interface {
	Mod(id string) (*mod.Mod, bool)
}

// View is the JSON-ready state of one weapon.
type View struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Owner            string                `json:"owner"`
	Version          uint64                `json:"version"`
	Stats            mod.StatTable         `json:"stats"`
	Damage           mod.DamageTable       `json:"damage"`
	Hooks            map[string]int        `json:"hooks"`
	Loadout          map[mod.Slot][]string `json:"loadout"`
	Timers           int                   `json:"timers"`
	ProjectileTimers int                   `json:"projectile_timers"`
}

// Deps are the collaborators of an Armory. Store and Cache may be nil.
type Deps struct {
	Mods        ModSource
	Store       *Store
	Cache       cache.Cache
	Resolver    *battle.Resolver
	Clock       scheduler.Clock
	SnapshotTTL time.Duration
	// ProjectileTTL destroys projectiles that hit nothing for this long.
	// Zero keeps them until they hit or their weapon is removed.
	ProjectileTTL time.Duration
	MaxBullets    int
	Logger        *zap.Logger
}

// Armory is the registry of live weapons keyed by ID.
type Armory struct {
	mu          sync.Mutex
	weapons     map[string]*weapon.Weapon
	projectiles map[string]*weapon.Projectile

	mods          ModSource
	store         *Store
	cache         cache.Cache
	resolver      *battle.Resolver
	clock         scheduler.Clock
	ttl           time.Duration
	projectileTTL time.Duration
	maxBullets    int
	logger        *zap.Logger
}

// New creates an empty Armory.
func New(d Deps) *Armory {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = scheduler.SystemClock{}
	}
	if d.Resolver == nil {
		d.Resolver = battle.NewResolver(2, 0.5)
	}
	return &Armory{
		weapons:       make(map[string]*weapon.Weapon),
		projectiles:   make(map[string]*weapon.Projectile),
		mods:          d.Mods,
		store:         d.Store,
		cache:         d.Cache,
		resolver:      d.Resolver,
		clock:         d.Clock,
		ttl:           d.SnapshotTTL,
		projectileTTL: d.ProjectileTTL,
		maxBullets:    d.MaxBullets,
		logger:        d.Logger,
	}
}

func (a *Armory) newWeapon(id, owner string, p weapon.Profile) *weapon.Weapon {
	w := weapon.New(id, owner, p, a.clock, a.logger)
	w.LimitBullets(a.maxBullets)
	return w
}

func snapshotKey(id string) string { return "weapon:" + id }

func view(w *weapon.Weapon) View {
	snap := w.Snapshot()
	return View{
		ID:               w.ID,
		Name:             w.Name,
		Owner:            w.Owner,
		Version:          snap.Version,
		Stats:            snap.Stats,
		Damage:           snap.Damage,
		Hooks:            snap.Hooks.Counts(),
		Loadout:          w.Loadout(),
		Timers:           w.ActiveTimers(),
		ProjectileTimers: len(snap.ProjectileTimers),
	}
}

// Len returns the number of live weapons.
func (a *Armory) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.weapons)
}

// IDs returns the live weapon IDs, sorted.
func (a *Armory) IDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.weapons))
	for id := range a.weapons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create registers a new weapon for owner built from p.
func (a *Armory) Create(ctx context.Context, owner string, p weapon.Profile) (View, error) {
	w := a.newWeapon(uuid.New().String(), owner, p)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.weapons[w.ID] = w
	if err := a.persist(ctx, w); err != nil {
		delete(a.weapons, w.ID)
		w.Stop()
		return View{}, err
	}
	a.logger.Info("weapon created",
		zap.String("weapon", w.ID),
		zap.String("owner", owner),
		zap.String("profile", p.Name))
	return view(w), nil
}

// View returns the current state of weapon id.
func (a *Armory) View(id string) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.weapons[id]
	if !ok {
		return View{}, ErrUnknownWeapon
	}
	return view(w), nil
}

// CachedView returns the last snapshot written to the cache for id.
func (a *Armory) CachedView(ctx context.Context, id string) (View, error) {
	var v View
	if a.cache == nil {
		return v, ErrUnknownWeapon
	}
	raw, err := a.cache.Get(ctx, snapshotKey(id))
	if err != nil {
		if cache.IsNotFound(err) {
			return v, ErrUnknownWeapon
		}
		return v, err
	}
	err = json.Unmarshal([]byte(raw), &v)
	return v, err
}

// Equip resolves modID and equips it into slot of weapon id.
func (a *Armory) Equip(ctx context.Context, id string, slot mod.Slot, modID string) (View, error) {
	m, ok := a.lookup(modID)
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrUnknownMod, modID)
	}
	return a.mutate(ctx, id, func(w *weapon.Weapon) error {
		return w.Equip(slot, m)
	})
}

// Unequip removes the mod at index from slot of weapon id.
func (a *Armory) Unequip(ctx context.Context, id string, slot mod.Slot, index int) (View, error) {
	return a.mutate(ctx, id, func(w *weapon.Weapon) error {
		_, err := w.Unequip(slot, index)
		return err
	})
}

// Reload forces a rebuild of weapon id.
func (a *Armory) Reload(ctx context.Context, id string) (View, error) {
	return a.mutate(ctx, id, func(w *weapon.Weapon) error {
		w.Reload()
		return nil
	})
}

// Remove stops weapon id and forgets it.
func (a *Armory) Remove(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.weapons[id]
	if !ok {
		return ErrUnknownWeapon
	}
	w.Stop()
	delete(a.weapons, id)
	for pid, p := range a.projectiles {
		if p.WeaponID == id {
			p.Destroy()
			delete(a.projectiles, pid)
		}
	}
	if a.cache != nil {
		if err := a.cache.Del(ctx, snapshotKey(id)); err != nil {
			a.logger.Warn("snapshot evict failed", zap.String("weapon", id), zap.Error(err))
		}
	}
	if a.store != nil {
		return a.store.Delete(ctx, id)
	}
	return nil
}

// Fire fires weapon id at now. The projectiles stay live, updated by Tick,
// until they hit through Impact, expire or their weapon is removed.
func (a *Armory) Fire(ctx context.Context, id string, now time.Time) ([]*weapon.Projectile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.weapons[id]
	if !ok {
		return nil, ErrUnknownWeapon
	}
	shots, err := w.Fire(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, p := range shots {
		a.projectiles[p.ID] = p
	}
	return shots, nil
}

// Projectiles returns the number of live projectiles.
func (a *Armory) Projectiles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.projectiles)
}

// Impact resolves live projectile pid of weapon id hitting target and hands
// the damage to sink.
func (a *Armory) Impact(ctx context.Context, id, pid string, target weapon.Target, sink battle.HealthSink) (battle.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.projectiles[pid]
	if !ok || p.WeaponID != id {
		return battle.Outcome{}, ErrUnknownProjectile
	}
	return a.strike(ctx, p, target, sink)
}

// Strike resolves the impact of p on target and applies it to sink.
// A projectile strikes once; later calls return weapon.ErrDestroyed.
func (a *Armory) Strike(ctx context.Context, p *weapon.Projectile, target weapon.Target, sink battle.HealthSink) (battle.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.strike(ctx, p, target, sink)
}

func (a *Armory) strike(ctx context.Context, p *weapon.Projectile, target weapon.Target, sink battle.HealthSink) (battle.Outcome, error) {
	delete(a.projectiles, p.ID)
	hit, err := p.Impact(ctx, target)
	if err != nil {
		return battle.Outcome{}, err
	}
	out := a.resolver.Apply(hit, sink)
	a.logger.Debug("projectile impact",
		zap.String("weapon", p.WeaponID),
		zap.String("projectile", p.ID),
		zap.String("target", target.ID),
		zap.Float64("amount", out.Amount),
		zap.Bool("crit", out.Crit))
	return out, nil
}

// Tick updates every live weapon, then every live projectile, at now.
// Projectiles older than the projectile TTL are destroyed.
func (a *Armory) Tick(ctx context.Context, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.weapons {
		w.Update(ctx, now)
	}
	for pid, p := range a.projectiles {
		if a.projectileTTL > 0 && now.Sub(p.SpawnedAt) >= a.projectileTTL {
			p.Destroy()
		} else {
			p.Update(ctx, now)
		}
		if p.Destroyed() {
			delete(a.projectiles, pid)
		}
	}
}

// Rebind re-resolves every equipped mod against mods, used after a catalog
// reload. Mods that disappeared are unequipped.
func (a *Armory) Rebind(ctx context.Context, mods ModSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mods = mods
	for id, w := range a.weapons {
		dropped := w.Rebind(mods.Mod)
		if len(dropped) > 0 {
			a.logger.Warn("mods removed from weapon",
				zap.String("weapon", id),
				zap.Strings("mods", dropped))
		}
		if err := a.persist(ctx, w); err != nil {
			a.logger.Error("persist after rebind failed", zap.String("weapon", id), zap.Error(err))
		}
	}
}

// SaveAll persists every live weapon. Returns the first error.
func (a *Armory) SaveAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var first error
	for id, w := range a.weapons {
		if err := a.persist(ctx, w); err != nil {
			a.logger.Error("autosave failed", zap.String("weapon", id), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Restore rebuilds every persisted loadout. Unknown mods are skipped.
func (a *Armory) Restore(ctx context.Context) (int, error) {
	if a.store == nil {
		return 0, nil
	}
	rows, err := a.store.All(ctx)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := range rows {
		p, loadout, err := decode(&rows[i])
		if err != nil {
			a.logger.Warn("skip loadout", zap.Error(err))
			continue
		}
		w := a.newWeapon(rows[i].WeaponID, rows[i].Owner, p)
		for s := mod.Slot(0); s < mod.Slot(mod.SlotCount); s++ {
			for _, modID := range loadout[s] {
				m, ok := a.lookupLocked(modID)
				if !ok {
					a.logger.Warn("restore: unknown mod",
						zap.String("weapon", w.ID),
						zap.String("mod", modID))
					continue
				}
				if err := w.Equip(s, m); err != nil {
					a.logger.Warn("restore: equip failed",
						zap.String("weapon", w.ID),
						zap.String("mod", modID),
						zap.Error(err))
				}
			}
		}
		if old, ok := a.weapons[w.ID]; ok {
			old.Stop()
		}
		a.weapons[w.ID] = w
		n++
	}
	return n, nil
}

func (a *Armory) lookup(id string) (*mod.Mod, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookupLocked(id)
}

func (a *Armory) lookupLocked(id string) (*mod.Mod, bool) {
	if a.mods == nil {
		return nil, false
	}
	return a.mods.Mod(id)
}

func (a *Armory) mutate(ctx context.Context, id string, fn func(*weapon.Weapon) error) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.weapons[id]
	if !ok {
		return View{}, ErrUnknownWeapon
	}
	cp := w.Checkpoint()
	if err := fn(w); err != nil {
		return View{}, err
	}
	if err := a.persist(ctx, w); err != nil {
		w.Rollback(cp)
		a.logger.Warn("loadout change rolled back", zap.String("weapon", id), zap.Error(err))
		return View{}, err
	}
	return view(w), nil
}

// persist writes w to the store and caches its snapshot. Caller holds a.mu.
func (a *Armory) persist(ctx context.Context, w *weapon.Weapon) error {
	if a.store != nil {
		if err := a.store.Save(ctx, w); err != nil {
			return fmt.Errorf("armory: save %s: %w", w.ID, err)
		}
	}
	if a.cache != nil {
		b, err := json.Marshal(view(w))
		if err != nil {
			return err
		}
		if err := a.cache.Set(ctx, snapshotKey(w.ID), string(b), a.ttl); err != nil {
			a.logger.Warn("snapshot cache failed", zap.String("weapon", w.ID), zap.Error(err))
		}
	}
	return nil
}
