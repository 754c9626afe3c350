package mod

import (
	"time"

	"github.com/kasuganosora/modforge/plugin/hook"
)

// EffectKind tags the variant held by an Effect.
type EffectKind int

const (
	EffectDamageChange EffectKind = iota + 1
	EffectStatChange
	EffectHookAttach
	EffectTimerAttach
)

func (k EffectKind) String() string {
	switch k {
	case EffectDamageChange:
		return "damage_change"
	case EffectStatChange:
		return "stat_change"
	case EffectHookAttach:
		return "hook_attach"
	case EffectTimerAttach:
		return "timer_attach"
	}
	return "unknown"
}

// Effect is one atomic change carried by a mod. Only the fields relevant to
// Kind are read. Effects are immutable once authored.
type Effect struct {
	Kind        EffectKind
	Description string

	Element Element
	Stat    StatKind
	Delta   float64

	Hook     hook.Name
	OnWeapon bool
	Interval time.Duration
	Callback hook.Callback
}

// DamageChange adds delta to the base damage of e.
func DamageChange(e Element, delta float64) Effect {
	return Effect{Kind: EffectDamageChange, Element: e, Delta: delta}
}

// StatChange adds delta to stat k.
func StatChange(k StatKind, delta float64) Effect {
	return Effect{Kind: EffectStatChange, Stat: k, Delta: delta}
}

// HookAttach registers cb on hook name.
func HookAttach(name hook.Name, cb hook.Callback) Effect {
	return Effect{Kind: EffectHookAttach, Hook: name, Callback: cb}
}

// TimerAttach binds cb to a timer firing every interval. onWeapon selects
// whether the weapon or each spawned projectile runs it.
func TimerAttach(onWeapon bool, interval time.Duration, cb hook.Callback) Effect {
	return Effect{Kind: EffectTimerAttach, OnWeapon: onWeapon, Interval: interval, Callback: cb}
}

// Mod is an equippable unit contributing effects to a weapon.
type Mod struct {
	ID          string
	Name        string
	Slot        Slot
	Rarity      Rarity
	Description string
	Effects     []Effect
}

// ModGroup is the ordered list of mods equipped in one slot.
type ModGroup struct {
	Name string
	Slot Slot
	Mods []*Mod
}

// TimerBinding describes a periodic callback produced by a rebuild.
type TimerBinding struct {
	OnWeapon bool
	Interval time.Duration
	Callback hook.Callback
}
