package mod

import (
	"encoding/json"
	"fmt"
	"math"
)

// StatKind is a weapon stat.
type StatKind int

const (
	StatCritChance StatKind = iota
	StatFireDelay
	StatSpreadAngle
	StatBulletsPerShot
	StatRecoilForce
	StatMaxAmmo
	StatReloadSpeed
	StatReloadDelay
	StatBulletVel
	StatBulletAcc

	statKindCount
)

// StatKindCount is the number of declared stats.
const StatKindCount = int(statKindCount)

type statDef struct {
	name     string
	min, max float64
}

// Valid ranges; a stat is clamped into its range after every change.
var statDefs = [statKindCount]statDef{
	StatCritChance:     {"crit_chance", 0, 100},
	StatFireDelay:      {"fire_delay", 0.01, math.Inf(1)},
	StatSpreadAngle:    {"spread_angle", 0, 360},
	StatBulletsPerShot: {"bullets_per_shot", 1, math.Inf(1)},
	StatRecoilForce:    {"recoil_force", 0, math.Inf(1)},
	StatMaxAmmo:        {"max_ammo", 1, math.Inf(1)},
	StatReloadSpeed:    {"reload_speed", 0.01, math.Inf(1)},
	StatReloadDelay:    {"reload_delay", math.Inf(-1), math.Inf(1)},
	StatBulletVel:      {"bullet_vel", 0.01, math.Inf(1)},
	StatBulletAcc:      {"bullet_acc", math.Inf(-1), math.Inf(1)},
}

func (k StatKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("stat(%d)", int(k))
	}
	return statDefs[k].name
}

func (k StatKind) Valid() bool { return k >= 0 && k < statKindCount }

// Range returns the inclusive valid range of k.
func (k StatKind) Range() (min, max float64) {
	d := statDefs[k]
	return d.min, d.max
}

// Clamp forces v into the valid range of k. NaN becomes the lower bound, or 0 when unbounded.
func (k StatKind) Clamp(v float64) float64 {
	lo, hi := k.Range()
	if math.IsNaN(v) {
		if math.IsInf(lo, -1) {
			return 0
		}
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func (k StatKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("mod: invalid stat %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *StatKind) UnmarshalText(b []byte) error {
	v, ok := ParseStatKind(string(b))
	if !ok {
		return fmt.Errorf("mod: unknown stat %q", string(b))
	}
	*k = v
	return nil
}

// ParseStatKind resolves a stat by name.
func ParseStatKind(s string) (StatKind, bool) {
	for i, d := range statDefs {
		if d.name == s {
			return StatKind(i), true
		}
	}
	return 0, false
}

// StatTable holds one value per stat kind. The zero value is not clamped;
// build tables with NewStatTable.
type StatTable struct {
	values [statKindCount]float64
}

// NewStatTable builds a complete table from base values. Missing stats start
// at 0; every value is clamped into range.
func NewStatTable(base map[StatKind]float64) StatTable {
	var t StatTable
	for k, v := range base {
		if k.Valid() {
			t.values[k] = v
		}
	}
	for k := range t.values {
		t.values[k] = StatKind(k).Clamp(t.values[k])
	}
	return t
}

// Get returns the value of k.
func (t StatTable) Get(k StatKind) float64 {
	if !k.Valid() {
		return 0
	}
	return t.values[k]
}

func (t *StatTable) add(k StatKind, delta float64) {
	if !k.Valid() {
		return
	}
	t.values[k] = k.Clamp(t.values[k] + delta)
}

// Map returns the table as a map with an entry for every stat.
func (t StatTable) Map() map[StatKind]float64 {
	out := make(map[StatKind]float64, statKindCount)
	for k, v := range t.values {
		out[StatKind(k)] = v
	}
	return out
}

func (t StatTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]float64, statKindCount)
	for k, v := range t.values {
		// encoding/json rejects infinities.
		if math.IsInf(v, 0) {
			continue
		}
		out[StatKind(k).String()] = v
	}
	return json.Marshal(out)
}

func (t *StatTable) UnmarshalJSON(b []byte) error {
	var in map[StatKind]float64
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = NewStatTable(in)
	return nil
}
