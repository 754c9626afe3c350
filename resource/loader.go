package resource

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/modforge/game/action"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/weapon"
	"github.com/kasuganosora/modforge/plugin/hook"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("resource: catalog not loaded")

// Loader reads the mod catalog file and keeps the last good catalog.
type Loader struct {
	path    string
	actions *action.Registry
	logger  *zap.Logger

	current atomic.Pointer[Catalog]

	mu        sync.Mutex
	listeners []func(*Catalog)
}

// NewLoader creates a Loader for the catalog at path. Action references are
// resolved through actions.
func NewLoader(path string, actions *action.Registry, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{path: path, actions: actions, logger: logger}
}

// Path returns the catalog file path.
func (l *Loader) Path() string { return l.path }

// Catalog returns the current catalog, or nil before the first load.
func (l *Loader) Catalog() *Catalog { return l.current.Load() }

// Mod looks up a mod in the current catalog.
func (l *Loader) Mod(id string) (*mod.Mod, bool) {
	c := l.current.Load()
	if c == nil {
		return nil, false
	}
	return c.Mod(id)
}

// OnReload registers fn to run after every successful load.
func (l *Loader) OnReload(fn func(*Catalog)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Load reads and parses the catalog. On failure the previous catalog stays active.
func (l *Loader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", l.path, err)
	}
	cat, err := Parse(data, l.actions)
	if err != nil {
		return fmt.Errorf("resource: %s: %w", l.path, err)
	}
	for _, w := range cat.Warnings {
		l.logger.Warn("catalog entry skipped", zap.String("path", l.path), zap.String("reason", w))
	}
	l.current.Store(cat)
	l.logger.Info("catalog loaded",
		zap.String("path", l.path),
		zap.Int("mods", len(cat.order)),
		zap.Int("profiles", len(cat.profiles)),
		zap.Int("enemies", len(cat.enemies)))

	l.mu.Lock()
	listeners := make([]func(*Catalog), len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(cat)
	}
	return nil
}

// Parse decodes a YAML catalog and resolves every effect.
func Parse(data []byte, actions *action.Registry) (*Catalog, error) {
	var spec CatalogSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	cat := newCatalog()
	for key, ps := range spec.Profiles {
		p, err := parseProfile(ps)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", key, err)
		}
		if p.Name == "" {
			p.Name = key
		}
		cat.profiles[key] = p
	}

	table, err := parseDropTable(spec.DropTable)
	if err != nil {
		return nil, fmt.Errorf("drop_table: %w", err)
	}
	cat.dropTable = table

	for id, es := range spec.Enemies {
		e, err := parseEnemy(id, es)
		if err != nil {
			return nil, fmt.Errorf("enemy %s: %w", id, err)
		}
		cat.enemies[id] = e
	}

	for i, ms := range spec.Mods {
		if ms.ID == "" {
			return nil, fmt.Errorf("mod #%d: missing id", i)
		}
		if _, dup := cat.mods[ms.ID]; dup {
			return nil, fmt.Errorf("mod %s: duplicate id", ms.ID)
		}
		m, err := parseMod(ms, actions, &cat.Warnings)
		if err != nil {
			return nil, fmt.Errorf("mod %s: %w", ms.ID, err)
		}
		cat.mods[m.ID] = m
		cat.order = append(cat.order, m.ID)
	}
	return cat, nil
}

func parseProfile(ps ProfileSpec) (weapon.Profile, error) {
	p := weapon.Profile{
		Name:   ps.Name,
		Stats:  make(map[mod.StatKind]float64, len(ps.Stats)),
		Damage: make(map[mod.Element]float64, len(ps.Damage)),
	}
	for name, v := range ps.Stats {
		k, ok := mod.ParseStatKind(name)
		if !ok {
			return p, fmt.Errorf("unknown stat %q", name)
		}
		p.Stats[k] = v
	}
	for name, v := range ps.Damage {
		e, ok := mod.ParseElement(name)
		if !ok {
			return p, fmt.Errorf("unknown element %q", name)
		}
		p.Damage[e] = v
	}
	return p, nil
}

func parseDropTable(specs []DropSpec) ([]battle.RarityWeight, error) {
	out := make([]battle.RarityWeight, 0, len(specs))
	for _, d := range specs {
		r, ok := mod.ParseRarity(d.Rarity)
		if !ok {
			return nil, fmt.Errorf("unknown rarity %q", d.Rarity)
		}
		out = append(out, battle.RarityWeight{Rarity: r, Weight: d.Weight})
	}
	return out, nil
}

func parseEnemy(id string, es EnemySpec) (*Enemy, error) {
	if es.XPMax < es.XPMin {
		return nil, fmt.Errorf("xp_max %d below xp_min %d", es.XPMax, es.XPMin)
	}
	table, err := parseDropTable(es.DropTable)
	if err != nil {
		return nil, err
	}
	e := &Enemy{
		ID:         id,
		Name:       es.Name,
		XPMin:      es.XPMin,
		XPMax:      es.XPMax,
		DropTable:  table,
		Resistance: make(map[mod.Element]float64, len(es.Resistance)),
	}
	for name, v := range es.Resistance {
		el, ok := mod.ParseElement(name)
		if !ok {
			return nil, fmt.Errorf("unknown element %q", name)
		}
		e.Resistance[el] = v
	}
	return e, nil
}

func parseMod(ms ModSpec, actions *action.Registry, warnings *[]string) (*mod.Mod, error) {
	slot, ok := mod.ParseSlot(ms.Slot)
	if !ok {
		return nil, fmt.Errorf("unknown slot %q", ms.Slot)
	}
	rarity := mod.RarityNone
	if ms.Rarity != "" {
		if rarity, ok = mod.ParseRarity(ms.Rarity); !ok {
			return nil, fmt.Errorf("unknown rarity %q", ms.Rarity)
		}
	}
	m := &mod.Mod{
		ID:          ms.ID,
		Name:        ms.Name,
		Slot:        slot,
		Rarity:      rarity,
		Description: ms.Description,
	}
	for i, es := range ms.Effects {
		e, err := parseEffect(ms.ID, i, es, actions)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("mod %s effect #%d: %v", ms.ID, i, err))
			continue
		}
		if e.Kind == 0 {
			*warnings = append(*warnings, fmt.Sprintf("mod %s effect #%d: unknown type %q", ms.ID, i, es.Type))
			continue
		}
		e.Description = es.Description
		m.Effects = append(m.Effects, e)
	}
	return m, nil
}

func parseEffect(modID string, idx int, es EffectSpec, actions *action.Registry) (mod.Effect, error) {
	switch es.Type {
	case "damage_change":
		el, ok := mod.ParseElement(es.Element)
		if !ok {
			return mod.Effect{}, fmt.Errorf("unknown element %q", es.Element)
		}
		return mod.DamageChange(el, es.Delta), nil

	case "stat_change":
		k, ok := mod.ParseStatKind(es.Stat)
		if !ok {
			return mod.Effect{}, fmt.Errorf("unknown stat %q", es.Stat)
		}
		return mod.StatChange(k, es.Delta), nil

	case "hook_attach":
		name, ok := hook.ParseName(es.Hook)
		if !ok {
			return mod.Effect{}, fmt.Errorf("unknown hook %q", es.Hook)
		}
		cb, err := buildCallback(modID, idx, es, actions)
		if err != nil {
			return mod.Effect{}, err
		}
		return mod.HookAttach(name, cb), nil

	case "timer_attach":
		interval, err := time.ParseDuration(es.Interval)
		if err != nil {
			return mod.Effect{}, fmt.Errorf("interval: %w", err)
		}
		if interval <= 0 {
			return mod.Effect{}, fmt.Errorf("interval must be positive, got %s", es.Interval)
		}
		cb, err := buildCallback(modID, idx, es, actions)
		if err != nil {
			return mod.Effect{}, err
		}
		return mod.TimerAttach(es.OnWeapon, interval, cb), nil
	}
	return mod.Effect{}, nil
}

func buildCallback(modID string, idx int, es EffectSpec, actions *action.Registry) (hook.Callback, error) {
	if actions == nil {
		return hook.Callback{}, errors.New("no action registry")
	}
	label := fmt.Sprintf("%s#%d:%s", modID, idx, es.Action)
	return actions.Build(es.Action, label, action.Args(es.Args))
}
