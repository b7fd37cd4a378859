package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultFormName is the stored form looked up when FORM_NAME is unset.
const DefaultFormName = "patient-record"

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	FormConfigPath string   `mapstructure:"FORM_CONFIG_PATH"`
	FormName       string   `mapstructure:"FORM_NAME"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"FORM_CONFIG_PATH", "FORM_NAME", "CORS_ORIGINS", "BODY_LIMIT",
}

// Load reads .env (if present) and the environment. DATABASE_URL is
// optional; without it the server runs without stored form versions.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("FORM_NAME", DefaultFormName)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether form versions can be stored.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("PORT must be a TCP port number, got %q", c.Port)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
		}
	}
	if c.HasDatabase() {
		if c.DBMaxConns <= 0 {
			return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
		}
	}
	if strings.TrimSpace(c.FormName) == "" {
		return fmt.Errorf("FORM_NAME must not be empty")
	}
	if c.IsProduction() {
		for _, o := range c.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not be \"*\" in production")
			}
		}
	}
	return nil
}
