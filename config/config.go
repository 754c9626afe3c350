package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Security    SecurityConfig    `mapstructure:"security"`
	Combat      CombatConfig      `mapstructure:"combat"`
	Loot        LootConfig        `mapstructure:"loot"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Weapon      WeaponConfig      `mapstructure:"weapon"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Script      ScriptConfig      `mapstructure:"script"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
	LogSQL       bool          `mapstructure:"log_sql"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
	SnapshotTTL     time.Duration `mapstructure:"snapshot_ttl"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type CombatConfig struct {
	CritMultiplier   float64 `mapstructure:"crit_multiplier"`
	SelfDamageFactor float64 `mapstructure:"self_damage_factor"`
}

type LootConfig struct {
	Boundary    string        `mapstructure:"boundary"` // inclusive_upper | strict
	KillChannel string        `mapstructure:"kill_channel"`
	DropChannel string        `mapstructure:"drop_channel"`
	DedupeTTL   time.Duration `mapstructure:"dedupe_ttl"`
	RecentSize  int           `mapstructure:"recent_size"`
}

type ProgressionConfig struct {
	TokenThreshold int `mapstructure:"token_threshold"`
}

type WeaponConfig struct {
	TickMs           int           `mapstructure:"tick_ms"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	EffectChannel    string        `mapstructure:"effect_channel"`
	ProjectileTTL    time.Duration `mapstructure:"projectile_ttl"`
	MaxBullets       int           `mapstructure:"max_bullets_per_shot"`
}

type CatalogConfig struct {
	Path     string        `mapstructure:"path"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type ScriptConfig struct {
	VMPoolSize int           `mapstructure:"vm_pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/modforge.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.redis_prefix", "modforge:")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("cache.snapshot_ttl", "10m")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("combat.crit_multiplier", 2.0)
	v.SetDefault("combat.self_damage_factor", 0.5)
	v.SetDefault("loot.boundary", "inclusive_upper")
	v.SetDefault("loot.kill_channel", "kill")
	v.SetDefault("loot.drop_channel", "loot_drop")
	v.SetDefault("loot.dedupe_ttl", "10m")
	v.SetDefault("loot.recent_size", 50)
	v.SetDefault("progression.token_threshold", 100)
	v.SetDefault("weapon.tick_ms", 50)
	v.SetDefault("weapon.autosave_interval", "1m")
	v.SetDefault("weapon.effect_channel", "weapon_effect")
	v.SetDefault("weapon.projectile_ttl", "10s")
	v.SetDefault("weapon.max_bullets_per_shot", 64)
	v.SetDefault("catalog.path", "./data/mods.yaml")
	v.SetDefault("catalog.watch", true)
	v.SetDefault("catalog.debounce", "200ms")
	v.SetDefault("script.vm_pool_size", 8)
	v.SetDefault("script.timeout", "5s")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
