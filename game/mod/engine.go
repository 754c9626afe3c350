package mod

import "github.com/kasuganosora/modforge/plugin/hook"

// Result is the derived state produced by Rebuild.
type Result struct {
	Stats  StatTable
	Damage DamageTable
	Hooks  *hook.Registry
	Timers []TimerBinding
}

// Rebuild computes effective tables, hook lists and timer bindings from the
// base tables and the equipped groups. Groups are applied in slot order, mods
// in equip order and effects in declared order. Unknown effect kinds are
// skipped. The inputs are not modified.
func Rebuild(baseStats StatTable, baseDamage DamageTable, groups []ModGroup) Result {
	res := Result{
		Stats:  NewStatTable(baseStats.Map()),
		Damage: baseDamage,
		Hooks:  hook.NewRegistry(),
	}

	for _, g := range groups {
		for _, m := range g.Mods {
			if m == nil {
				continue
			}
			for _, e := range m.Effects {
				res.apply(e)
			}
		}
	}
	return res
}

func (r *Result) apply(e Effect) {
	switch e.Kind {
	case EffectDamageChange:
		r.Damage.apply(e.Element, e.Delta)
	case EffectStatChange:
		r.Stats.add(e.Stat, e.Delta)
	case EffectHookAttach:
		if e.Hook.Valid() {
			r.Hooks.Attach(e.Hook, e.Callback)
		}
	case EffectTimerAttach:
		r.Timers = append(r.Timers, TimerBinding{
			OnWeapon: e.OnWeapon,
			Interval: e.Interval,
			Callback: e.Callback,
		})
	}
}

// WeaponTimers returns the bindings the weapon itself runs.
func (r Result) WeaponTimers() []TimerBinding {
	return filterTimers(r.Timers, true)
}

// ProjectileTimers returns the bindings each spawned projectile runs.
func (r Result) ProjectileTimers() []TimerBinding {
	return filterTimers(r.Timers, false)
}

func filterTimers(in []TimerBinding, onWeapon bool) []TimerBinding {
	var out []TimerBinding
	for _, b := range in {
		if b.OnWeapon == onWeapon {
			out = append(out, b)
		}
	}
	return out
}
