package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type Config struct {
	AppPort         string `mapstructure:"app_port"`
	AppBaseURL      string `mapstructure:"app_base_url"`
	FrontendBaseURL string `mapstructure:"frontend_base_url"`
	LogLevel        string `mapstructure:"log_level"`

	DBDriver string `mapstructure:"db_driver"` // postgres | sqlite
	DBDSN    string `mapstructure:"db_dsn"`

	JWTSecret     string `mapstructure:"jwt_secret"`
	JWTExpiresMin int    `mapstructure:"jwt_expires_min"`
	SecureCookies bool   `mapstructure:"secure_cookies"`

	GoogleClientID string `mapstructure:"google_client_id"`
	GoogleSecret   string `mapstructure:"google_client_secret"`
	GoogleRedirect string `mapstructure:"google_redirect_url"`

	UploadDir     string        `mapstructure:"upload_dir"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	CacheType CacheType     `mapstructure:"cache_type"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`

	SMTP     SMTPConfig     `mapstructure:",squash"`
	Gravatar GravatarConfig `mapstructure:",squash"`
}

type SMTPConfig struct {
	Enabled   bool   `mapstructure:"smtp_enabled"`
	Host      string `mapstructure:"smtp_host"`
	Port      int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"smtp_username"`
	Password  string `mapstructure:"smtp_password"`
	UseTLS    bool   `mapstructure:"smtp_use_tls"`
	FromEmail string `mapstructure:"smtp_from_email"`
	FromName  string `mapstructure:"smtp_from_name"`
}

type GravatarConfig struct {
	Enabled      bool   `mapstructure:"gravatar_enabled"`
	DefaultImage string `mapstructure:"gravatar_default_image"`
	Size         int    `mapstructure:"gravatar_size"`
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != "" && c.GoogleRedirect != ""
}

// Load reads .env (if present), an optional config file and the environment.
// Environment variables use the same names as the keys, upper-cased.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/freelancehub")
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

	sanitize(&c)

	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "8080")
	v.SetDefault("app_base_url", "")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_dsn", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expires_min", 10080)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("google_redirect_url", "")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("sweep_interval", "6h")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("cache_type", string(CacheTypeMemory))
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("smtp_enabled", false)
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_use_tls", true)
	v.SetDefault("smtp_from_email", "")
	v.SetDefault("smtp_from_name", "Freelancehub")
	v.SetDefault("gravatar_enabled", true)
	v.SetDefault("gravatar_default_image", "identicon")
	v.SetDefault("gravatar_size", 160)
}

func sanitize(c *Config) {
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")
	c.FrontendBaseURL = strings.TrimRight(c.FrontendBaseURL, "/")
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.CacheType = CacheType(strings.ToLower(string(c.CacheType)))
	if c.JWTExpiresMin <= 0 {
		c.JWTExpiresMin = 10080
	}
	if c.CacheType == CacheTypeRedis && c.RedisAddr == "" {
		log.Warn("cache_type is redis but redis_addr is empty, falling back to memory cache")
		c.CacheType = CacheTypeMemory
	}
}

func validate(c *Config) error {
	if c.DBDSN == "" {
		return errors.New("missing config: DB_DSN")
	}
	if c.JWTSecret == "" {
		return errors.New("missing config: JWT_SECRET")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db_driver %q (postgres, sqlite)", c.DBDriver)
	}
	switch c.CacheType {
	case CacheTypeMemory, CacheTypeRedis:
	default:
		return fmt.Errorf("unsupported cache_type %q (memory, redis)", c.CacheType)
	}
	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.FromEmail == "") {
		return errors.New("smtp is enabled but smtp_host or smtp_from_email is missing")
	}
	return nil
}
