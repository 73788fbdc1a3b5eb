package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Auth        AuthConfig        `mapstructure:"auth"`
	DecisionLog DecisionLogConfig `mapstructure:"decision_log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type JWTConfig struct {
	Issuer           string `mapstructure:"issuer"`
	Secret           string `mapstructure:"secret"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
}

// AuthConfig carries the platform-admin allow-list and the audience
// allow-list. Both are immutable after startup; handlers receive them by
// value and never mutate them.
type AuthConfig struct {
	PlatformAdminEmails []string `mapstructure:"platform_admin_emails"`
	AllowedAudiences    []string `mapstructure:"allowed_audiences"`
	Production          bool     `mapstructure:"production"`
}

// DecisionLogConfig tunes the buffered sink for shadow-mode ABAC decisions.
type DecisionLogConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	BufferSize      int  `mapstructure:"buffer_size"`
	FlushIntervalMs int  `mapstructure:"flush_interval_ms"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// AccessTTL returns the token lifetime as a duration.
func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTTLMinutes) * time.Minute
}

const defaultSecret = "changeme-secret"

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("jwt.issuer", "aegis")
	viper.SetDefault("jwt.secret", defaultSecret)
	viper.SetDefault("jwt.access_ttl_minutes", 15)
	viper.SetDefault("auth.platform_admin_emails", []string{})
	viper.SetDefault("auth.allowed_audiences", []string{})
	viper.SetDefault("auth.production", false)
	viper.SetDefault("decision_log.enabled", true)
	viper.SetDefault("decision_log.buffer_size", 500)
	viper.SetDefault("decision_log.flush_interval_ms", 100)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that would silently weaken token checks.
// In production mode an empty audience allow-list would make every
// tenant-access verification skip its audience check, so it is a startup
// error here rather than a runtime fallback.
func (c *Config) Validate() error {
	if c.JWT.Issuer == "" {
		return fmt.Errorf("jwt.issuer must be set")
	}
	if c.JWT.AccessTTLMinutes <= 0 {
		return fmt.Errorf("jwt.access_ttl_minutes must be positive")
	}
	if !c.Auth.Production {
		return nil
	}
	if c.JWT.Secret == "" || c.JWT.Secret == defaultSecret {
		return fmt.Errorf("jwt.secret must be set to a non-default value in production")
	}
	if len(c.Auth.AllowedAudiences) == 0 {
		return fmt.Errorf("auth.allowed_audiences must not be empty in production")
	}
	return nil
}
