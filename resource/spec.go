package resource

// CatalogSpec is the authored YAML layout of a mod catalog file.
type CatalogSpec struct {
	Profiles  map[string]ProfileSpec `yaml:"profiles"`
	DropTable []DropSpec             `yaml:"drop_table"`
	Enemies   map[string]EnemySpec   `yaml:"enemies"`
	Mods      []ModSpec              `yaml:"mods"`
}

type ProfileSpec struct {
	Name   string             `yaml:"name"`
	Stats  map[string]float64 `yaml:"stats"`
	Damage map[string]float64 `yaml:"damage"`
}

type DropSpec struct {
	Rarity string `yaml:"rarity"`
	Weight int    `yaml:"weight"`
}

type EnemySpec struct {
	Name       string             `yaml:"name"`
	XPMin      int                `yaml:"xp_min"`
	XPMax      int                `yaml:"xp_max"`
	DropTable  []DropSpec         `yaml:"drop_table"`
	Resistance map[string]float64 `yaml:"resistance"`
}

type ModSpec struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Slot        string       `yaml:"slot"`
	Rarity      string       `yaml:"rarity"`
	Description string       `yaml:"description"`
	Effects     []EffectSpec `yaml:"effects"`
}

// EffectSpec is one authored effect. Type selects which fields apply:
// damage_change (element, delta), stat_change (stat, delta),
// hook_attach (hook, action, args) and timer_attach (on_weapon, interval, action, args).
type EffectSpec struct {
	Type        string                 `yaml:"type"`
	Description string                 `yaml:"description"`
	Element     string                 `yaml:"element"`
	Stat        string                 `yaml:"stat"`
	Delta       float64                `yaml:"delta"`
	Hook        string                 `yaml:"hook"`
	OnWeapon    bool                   `yaml:"on_weapon"`
	Interval    string                 `yaml:"interval"`
	Action      string                 `yaml:"action"`
	Args        map[string]interface{} `yaml:"args"`
}
