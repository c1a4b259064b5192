package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address        string   `yaml:"address"`
		PublicURL      string   `yaml:"public_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Driver      string `yaml:"driver"`
		URL         string `yaml:"url"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"database"`
	Realtime struct {
		DatabaseURL string        `yaml:"database_url"`
		Channel     string        `yaml:"channel"`
		JWTSecret   string        `yaml:"jwt_secret"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
	} `yaml:"realtime"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret  string        `yaml:"jwt_secret"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"auth"`
	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
	} `yaml:"google"`
	Gmail struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RefreshToken string `yaml:"refresh_token"`
		Sender       string `yaml:"sender"`
		AdminEmail   string `yaml:"admin_email"`
		Workers      int    `yaml:"workers"`
	} `yaml:"gmail"`
	S3 struct {
		Endpoint  string `yaml:"endpoint"`
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"s3"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
	RateLimit struct {
		AuthPerMinute   int `yaml:"auth_per_minute"`
		ReportPerMinute int `yaml:"report_per_minute"`
	} `yaml:"rate_limit"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed when the
// environment provides everything), applies environment overrides and
// defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to unmarshal config data: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Realtime.DatabaseURL, "REALTIME_DATABASE_URL")
	setString(&cfg.Realtime.JWTSecret, "REALTIME_JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Gmail.ClientID, "GMAIL_CLIENT_ID")
	setString(&cfg.Gmail.ClientSecret, "GMAIL_CLIENT_SECRET")
	setString(&cfg.Gmail.RefreshToken, "GMAIL_REFRESH_TOKEN")
	setString(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setString(&cfg.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		cfg.Server.Address = ":" + port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":4001"
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:3000"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Realtime.Channel == "" {
		cfg.Realtime.Channel = "doulitsa_changes"
	}
	if cfg.Realtime.TokenTTL <= 0 {
		cfg.Realtime.TokenTTL = time.Hour
	}
	if cfg.Realtime.JWTSecret == "" {
		cfg.Realtime.JWTSecret = cfg.Auth.JWTSecret
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "doulitsa"
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = 2 * time.Hour
	}
	if cfg.Auth.RefreshTTL <= 0 {
		cfg.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Gmail.Workers <= 0 {
		cfg.Gmail.Workers = 2
	}
	if cfg.RateLimit.AuthPerMinute <= 0 {
		cfg.RateLimit.AuthPerMinute = 10
	}
	if cfg.RateLimit.ReportPerMinute <= 0 {
		cfg.RateLimit.ReportPerMinute = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.Database.Driver != "mysql" {
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// GmailEnabled reports whether outgoing mail can be delivered.
func (c Config) GmailEnabled() bool {
	return c.Gmail.ClientID != "" && c.Gmail.ClientSecret != "" && c.Gmail.RefreshToken != "" && c.Gmail.Sender != ""
}

// GoogleLoginEnabled reports whether the OAuth login flow is configured.
func (c Config) GoogleLoginEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RedirectURL != ""
}

// S3Enabled reports whether media uploads are configured.
func (c Config) S3Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}
