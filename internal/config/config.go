package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`

	Fees        FeesConfig        `mapstructure:"fees"`
	Curve       CurveConfig       `mapstructure:"curve"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	AutoResolve AutoResolveConfig `mapstructure:"auto_resolve"`
	PriceCache  PriceCacheConfig  `mapstructure:"price_cache"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// FeesConfig is the trade fee split. Policy parameters routed to the external
// payment-distribution collaborator, not amounts deducted from the curve quote.
type FeesConfig struct {
	CreatorRate  float64 `mapstructure:"creator_rate"`
	PlatformRate float64 `mapstructure:"platform_rate"`
	ReferralRate float64 `mapstructure:"referral_rate"`
}

type CurveConfig struct {
	DefaultSteepness float64 `mapstructure:"default_steepness"`
}

type MetricsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AutoResolveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Spec      string `mapstructure:"spec"`
	BatchSize int    `mapstructure:"batch_size"`
}

type PriceCacheConfig struct {
	RefreshSpec string        `mapstructure:"refresh_spec"`
	TTL         time.Duration `mapstructure:"ttl"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("fees.creator_rate", 0.05)
	v.SetDefault("fees.platform_rate", 0.02)
	v.SetDefault("fees.referral_rate", 0.0001)
	v.SetDefault("curve.default_steepness", 0.5)
	v.SetDefault("metrics.base_url", "http://localhost:5055")
	v.SetDefault("metrics.timeout", "15s")
	v.SetDefault("auto_resolve.enabled", true)
	v.SetDefault("auto_resolve.spec", "@every 1m")
	v.SetDefault("auto_resolve.batch_size", 100)
	v.SetDefault("price_cache.refresh_spec", "@every 30s")
	v.SetDefault("price_cache.ttl", "5m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
