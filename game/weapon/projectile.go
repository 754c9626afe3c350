package weapon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/plugin/hook"
	"github.com/kasuganosora/modforge/scheduler"
	"go.uber.org/zap"
)

// Target describes what a projectile hit.
type Target struct {
	ID          string
	Multipliers map[mod.Element]float64
}

// ImpactEvent is the data passed to on_bullet_impact callbacks.
type ImpactEvent struct {
	Projectile *Projectile
	Target     Target
}

// OwnerID returns the shooter of the projectile.
func (e *ImpactEvent) OwnerID() string { return e.Projectile.Owner }

// Projectile carries the weapon state captured when it was fired. Later
// rebuilds of the weapon do not affect it.
type Projectile struct {
	ID           string
	WeaponID     string
	Owner        string
	SpawnedAt    time.Time
	Damage       mod.DamageTable
	CritChance   float64
	Velocity     float64
	Acceleration float64

	hooks     *hook.Registry
	timers    *scheduler.TimerSet
	logger    *zap.Logger
	destroyed bool
}

func newProjectile(w *Weapon, snap *Snapshot, now time.Time) *Projectile {
	p := &Projectile{
		ID:           uuid.New().String(),
		WeaponID:     w.ID,
		Owner:        w.Owner,
		SpawnedAt:    now,
		Damage:       snap.Damage,
		CritChance:   snap.Stats.Get(mod.StatCritChance),
		Velocity:     snap.Stats.Get(mod.StatBulletVel),
		Acceleration: snap.Stats.Get(mod.StatBulletAcc),
		hooks:        snap.Hooks,
		logger:       w.logger,
	}
	p.timers = scheduler.NewTimerSet(p.ID, p, w.logger)
	for _, b := range snap.ProjectileTimers {
		p.timers.Add(b.Interval, b.Callback)
	}
	p.timers.Start(now)
	return p
}

// OwnerID returns the shooter of the projectile.
func (p *Projectile) OwnerID() string { return p.Owner }

// Destroyed reports whether the projectile has been destroyed.
func (p *Projectile) Destroyed() bool { return p.destroyed }

// ActiveTimers returns the number of running projectile timers.
func (p *Projectile) ActiveTimers() int { return p.timers.Len() }

// Speed returns the speed at now given the captured velocity and acceleration.
func (p *Projectile) Speed(now time.Time) float64 {
	return p.Velocity + p.Acceleration*now.Sub(p.SpawnedAt).Seconds()
}

// Update advances the projectile timers and dispatches on_bullet_update.
func (p *Projectile) Update(ctx context.Context, now time.Time) {
	if p.destroyed {
		return
	}
	p.timers.Advance(ctx, now)
	p.hooks.Dispatch(ctx, hook.OnBulletUpdate, p, p.logger)
}

// Impact dispatches on_bullet_impact, destroys the projectile and returns
// the hit to resolve against target. A target matching the owner is self-inflicted.
// A projectile hits once; later calls return ErrDestroyed.
func (p *Projectile) Impact(ctx context.Context, target Target) (battle.Hit, error) {
	if p.destroyed {
		return battle.Hit{}, ErrDestroyed
	}
	p.hooks.Dispatch(ctx, hook.OnBulletImpact, &ImpactEvent{Projectile: p, Target: target}, p.logger)
	p.Destroy()
	return battle.Hit{
		Damage:        p.Damage,
		Multipliers:   target.Multipliers,
		CritChance:    p.CritChance,
		SelfInflicted: target.ID != "" && target.ID == p.Owner,
	}, nil
}

// Destroy cancels the projectile timers.
func (p *Projectile) Destroy() {
	p.destroyed = true
	p.timers.CancelAll()
}
