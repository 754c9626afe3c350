package battle

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kasuganosora/modforge/game/mod"
)

// Hit bundles everything needed to compute one damage event.
type Hit struct {
	Damage        mod.DamageTable
	Multipliers   map[mod.Element]float64 // target resistances; missing elements count as 1.0
	CritChance    float64                 // percent, 0-100
	SelfInflicted bool
}

// Outcome holds the result of a damage calculation.
type Outcome struct {
	Amount float64 `json:"amount"`
	Crit   bool    `json:"crit"`
	Roll   float64 `json:"roll"`
}

// HealthSink receives resolved damage. Clamping and death handling belong to it.
type HealthSink interface {
	ApplyDamage(amount float64)
}

// Resolver turns a Hit into a final damage amount.
type Resolver struct {
	CritMultiplier   float64
	SelfDamageFactor float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver creates a Resolver with its own random source.
func NewResolver(critMultiplier, selfDamageFactor float64) *Resolver {
	return NewResolverWithSource(critMultiplier, selfDamageFactor, rand.NewSource(time.Now().UnixNano()))
}

// NewResolverWithSource creates a Resolver drawing crit rolls from src.
func NewResolverWithSource(critMultiplier, selfDamageFactor float64, src rand.Source) *Resolver {
	return &Resolver{
		CritMultiplier:   critMultiplier,
		SelfDamageFactor: selfDamageFactor,
		rng:              rand.New(src),
	}
}

// Resolve rolls for a crit in [0,100) and computes the damage of h.
func (r *Resolver) Resolve(h Hit) Outcome {
	r.mu.Lock()
	roll := r.rng.Float64() * 100
	r.mu.Unlock()
	return r.ResolveWithRoll(h, roll)
}

// ResolveWithRoll computes the damage of h using a fixed crit roll:
// the element-weighted sum, times CritMultiplier when roll <= CritChance,
// times SelfDamageFactor when self-inflicted. No validation is applied.
func (r *Resolver) ResolveWithRoll(h Hit, roll float64) Outcome {
	total := 0.0
	h.Damage.Each(func(e mod.Element, v float64) {
		mult := 1.0
		if m, ok := h.Multipliers[e]; ok {
			mult = m
		}
		total += v * mult
	})

	out := Outcome{Roll: roll}
	if roll <= h.CritChance {
		out.Crit = true
		total *= r.CritMultiplier
	}
	if h.SelfInflicted {
		total *= r.SelfDamageFactor
	}
	out.Amount = total
	return out
}

// Apply resolves h and hands the amount to sink.
func (r *Resolver) Apply(h Hit, sink HealthSink) Outcome {
	out := r.Resolve(h)
	if sink != nil {
		sink.ApplyDamage(out.Amount)
	}
	return out
}
