package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env       string `mapstructure:"INK_ENV"`
	HTTPAddr  string `mapstructure:"INK_HTTP_ADDR"`
	PublicURL string `mapstructure:"INK_PUBLIC_ORIGIN"`

	Store    StoreConfig    `mapstructure:",squash"`
	Admin    AdminConfig    `mapstructure:",squash"`
	Uploads  UploadConfig   `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	// Backend selects the content store implementation: "memory" or "redis".
	Backend  string `mapstructure:"INK_STORE_BACKEND"`
	RedisURL string `mapstructure:"INK_REDIS_URL"`
	// FailoverEnabled keeps the blog serving from an in-memory store when
	// Redis drops out. Writes made during the outage are lost on recovery.
	FailoverEnabled bool          `mapstructure:"INK_STORE_FAILOVER"`
	ProbeInterval   time.Duration `mapstructure:"INK_STORE_PROBE_INTERVAL"`
	// Seed controls whether an empty store gets the sample welcome post.
	Seed bool `mapstructure:"INK_STORE_SEED"`
}

type AdminConfig struct {
	Username string `mapstructure:"INK_ADMIN_USERNAME"`
	// Password is compared in constant time. When PasswordHash is set it
	// takes precedence and Password is ignored.
	Password     string        `mapstructure:"INK_ADMIN_PASSWORD"`
	PasswordHash string        `mapstructure:"INK_ADMIN_PASSWORD_HASH"`
	SessionTTL   time.Duration `mapstructure:"INK_ADMIN_SESSION_TTL"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"INK_UPLOAD_MAX_BYTES"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"INK_RATE_LIMIT_RPM"`
	LoginRateLimitRPM  int      `mapstructure:"INK_LOGIN_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"INK_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("backend", ".env"),
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if !filepath.IsAbs(path) {
			if resolved, err := filepath.Abs(path); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("INK_ENV", "dev")
	viper.SetDefault("INK_HTTP_ADDR", ":8080")
	viper.SetDefault("INK_PUBLIC_ORIGIN", "http://localhost:3000")
	viper.SetDefault("INK_STORE_BACKEND", "memory")
	viper.SetDefault("INK_REDIS_URL", "redis://127.0.0.1:6379/0")
	viper.SetDefault("INK_STORE_FAILOVER", true)
	viper.SetDefault("INK_STORE_PROBE_INTERVAL", "5s")
	viper.SetDefault("INK_STORE_SEED", true)
	viper.SetDefault("INK_ADMIN_USERNAME", "admin")
	viper.SetDefault("INK_ADMIN_SESSION_TTL", "168h") // 7 days
	viper.SetDefault("INK_UPLOAD_MAX_BYTES", 10<<20)  // 10MB
	viper.SetDefault("INK_RATE_LIMIT_RPM", 300)
	viper.SetDefault("INK_LOGIN_RATE_LIMIT_RPM", 10)
	viper.SetDefault("INK_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Handle array parsing for comma-separated values
	if origins := viper.GetString("INK_CORS_ALLOWED_ORIGINS"); origins != "" {
		viper.Set("INK_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid INK_STORE_BACKEND %q (must be memory or redis)", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("INK_REDIS_URL is required when INK_STORE_BACKEND is redis")
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("INK_ADMIN_USERNAME is required")
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("one of INK_ADMIN_PASSWORD or INK_ADMIN_PASSWORD_HASH is required")
	}
	if c.Admin.SessionTTL <= 0 {
		return fmt.Errorf("INK_ADMIN_SESSION_TTL must be positive")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("INK_UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
