package action

import (
	"context"
	"fmt"

	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/script"
	"github.com/kasuganosora/modforge/game/weapon"
	"github.com/kasuganosora/modforge/plugin/hook"
	"go.uber.org/zap"
)

func debugMessage(r *Registry, args Args) (hook.Func, error) {
	msg, err := args.String("message")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, event string, data interface{}) error {
		owner, _ := ownerOf(data)
		r.logger.Info(msg, zap.String("event", event), zap.String("owner", owner))
		return nil
	}, nil
}

func heal(r *Registry, args Args) (hook.Func, error) {
	if err := r.needHost(); err != nil {
		return nil, err
	}
	amount, err := args.Number("amount")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, _ string, data interface{}) error {
		owner, err := ownerOf(data)
		if err != nil {
			return err
		}
		return r.host.Heal(ctx, owner, amount)
	}, nil
}

func phase(r *Registry, args Args) (hook.Func, error) {
	if err := r.needHost(); err != nil {
		return nil, err
	}
	distance, err := args.Number("distance")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, _ string, data interface{}) error {
		owner, err := ownerOf(data)
		if err != nil {
			return err
		}
		return r.host.Phase(ctx, owner, distance)
	}, nil
}

func drop(r *Registry, args Args) (hook.Func, error) {
	item, err := args.String("item")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, event string, data interface{}) error {
		owner, _ := ownerOf(data)
		r.logger.Info("drop", zap.String("item", item), zap.String("event", event), zap.String("owner", owner))
		if r.host == nil {
			return nil
		}
		return r.host.Drop(ctx, owner, item)
	}, nil
}

func runScript(r *Registry, args Args) (hook.Func, error) {
	src, err := args.String("source")
	if err != nil {
		return nil, err
	}
	if err := script.Compile("action", src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return func(ctx context.Context, event string, data interface{}) error {
		_, err := r.sandbox.Eval(ctx, src, r.env(ctx, event, data))
		return err
	}, nil
}

// env exposes the firing weapon or projectile to a script.
func (r *Registry) env(ctx context.Context, event string, data interface{}) *script.Env {
	env := &script.Env{
		Event: event,
		Log: func(msg string) {
			r.logger.Info("script", zap.String("event", event), zap.String("message", msg))
		},
	}
	owner, _ := ownerOf(data)
	env.Owner = owner
	if owner != "" && r.host != nil {
		env.Heal = func(v float64) {
			if err := r.host.Heal(ctx, owner, v); err != nil {
				r.logger.Warn("script heal failed", zap.Error(err))
			}
		}
		env.Phase = func(v float64) {
			if err := r.host.Phase(ctx, owner, v); err != nil {
				r.logger.Warn("script phase failed", zap.Error(err))
			}
		}
	}

	var stats func(mod.StatKind) (float64, bool)
	var damage mod.DamageTable
	switch d := data.(type) {
	case *weapon.Weapon:
		snap := d.Stats()
		stats = func(k mod.StatKind) (float64, bool) { return snap.Get(k), true }
		damage = d.Damage()
	case *weapon.ImpactEvent:
		stats = projectileStats(d.Projectile)
		damage = d.Projectile.Damage
	case *weapon.Projectile:
		stats = projectileStats(d)
		damage = d.Damage
	}
	if stats != nil {
		env.Stat = func(name string) (float64, bool) {
			k, ok := mod.ParseStatKind(name)
			if !ok {
				return 0, false
			}
			return stats(k)
		}
		env.Damage = func(name string) (float64, bool) {
			e, ok := mod.ParseElement(name)
			if !ok {
				return 0, false
			}
			return damage.Get(e)
		}
	}
	return env
}

func projectileStats(p *weapon.Projectile) func(mod.StatKind) (float64, bool) {
	return func(k mod.StatKind) (float64, bool) {
		switch k {
		case mod.StatCritChance:
			return p.CritChance, true
		case mod.StatBulletVel:
			return p.Velocity, true
		case mod.StatBulletAcc:
			return p.Acceleration, true
		}
		return 0, false
	}
}
