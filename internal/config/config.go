// Package config loads fitlog settings from a config file, a .env file and
// FITLOG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fitlog/internal/adapter/avatars"
	"fitlog/internal/gravatar"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Session stores.
const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

// Avatar stores.
const (
	AvatarStoreDisk = "disk"
	AvatarStoreS3   = "s3"
)

// Config holds the configuration for the fitlog server.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `mapstructure:"listen"`
	// WebDir is the directory holding the single-page app. Empty disables it.
	WebDir string `mapstructure:"web_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	Storage  StorageConfig    `mapstructure:"storage"`
	Session  SessionConfig    `mapstructure:"session"`
	Auth     AuthConfig       `mapstructure:"auth"`
	Avatars  AvatarsConfig    `mapstructure:"avatars"`
	Gravatar gravatar.Options `mapstructure:"gravatar"`
}

// StorageConfig selects where users and entries live.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// SessionConfig controls login sessions.
type SessionConfig struct {
	// Store is "sql" (the storage driver's database) or "redis".
	Store        string        `mapstructure:"store"`
	TTL          time.Duration `mapstructure:"ttl"`
	RedisURL     string        `mapstructure:"redis_url"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// RegistrationEnabled allows self-service sign up. When false only the
	// first account can register.
	RegistrationEnabled bool              `mapstructure:"registration_enabled"`
	ForwardAuth         ForwardAuthConfig `mapstructure:"forward_auth"`
	OIDC                OIDCConfig        `mapstructure:"oidc"`
}

// ForwardAuthConfig trusts a username header set by a reverse proxy.
type ForwardAuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Header  string `mapstructure:"header"`
}

// OIDCConfig holds the OpenID Connect configuration.
type OIDCConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// AvatarsConfig selects the avatar blob store.
type AvatarsConfig struct {
	Store string            `mapstructure:"store"`
	Dir   string            `mapstructure:"dir"`
	Size  int               `mapstructure:"size"`
	S3    avatars.S3Options `mapstructure:"s3"`
}

// Load reads the configuration. If path is empty the usual locations are
// searched and a missing file is not an error.
func Load(path string) (*Config, error) {
	// A .env file is optional.
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FITLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fitlog")
		v.AddConfigPath("/etc/fitlog")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("web_dir", "web")
	v.SetDefault("log_level", "info")

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "fitlog.db")

	v.SetDefault("session.store", SessionStoreSQL)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("auth.registration_enabled", true)
	v.SetDefault("auth.forward_auth.enabled", false)
	v.SetDefault("auth.forward_auth.header", "Remote-User")
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")

	v.SetDefault("avatars.store", AvatarStoreDisk)
	v.SetDefault("avatars.dir", "avatars")
	v.SetDefault("avatars.size", 256)
	v.SetDefault("avatars.s3.bucket", "")
	v.SetDefault("avatars.s3.region", "us-east-1")
	v.SetDefault("avatars.s3.endpoint", "")
	v.SetDefault("avatars.s3.access_key", "")
	v.SetDefault("avatars.s3.secret_key", "")
	v.SetDefault("avatars.s3.prefix", "")

	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverMemory:
		log.Warn("Using in-memory storage, all data is lost on restart")
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Session.Store {
	case SessionStoreSQL:
	case SessionStoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.redis_url is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if c.Auth.ForwardAuth.Enabled && c.Auth.ForwardAuth.Header == "" {
		return fmt.Errorf("auth.forward_auth.header is required when forward auth is enabled")
	}
	if o := c.Auth.OIDC; o.Enabled {
		if o.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if o.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if o.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if o.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
	}

	switch c.Avatars.Store {
	case AvatarStoreDisk:
		if c.Avatars.Dir == "" {
			return fmt.Errorf("avatars.dir is required for the disk avatar store")
		}
	case AvatarStoreS3:
		if c.Avatars.S3.Bucket == "" {
			return fmt.Errorf("avatars.s3.bucket is required for the s3 avatar store")
		}
	default:
		return fmt.Errorf("unknown avatar store %q", c.Avatars.Store)
	}
	if c.Avatars.Size <= 0 || c.Avatars.Size > 2048 {
		return fmt.Errorf("avatars.size must be between 1 and 2048")
	}

	if c.Gravatar.Enabled {
		if !gravatar.ValidRating(c.Gravatar.Rating) {
			return fmt.Errorf("invalid gravatar rating %q", c.Gravatar.Rating)
		}
		if !gravatar.ValidSize(c.Gravatar.Size) {
			return fmt.Errorf("invalid gravatar size %d", c.Gravatar.Size)
		}
	}
	return nil
}
