package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by Load.
const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvAccessExpiry  = "JWT_ACCESS_EXPIRY"
	EnvRefreshExpiry = "JWT_REFRESH_EXPIRY"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvSMTPHost      = "SMTP_HOST"
	EnvSMTPPort      = "SMTP_PORT"
	EnvSMTPUsername  = "EMAIL_HOST_USER"
	EnvSMTPPassword  = "EMAIL_HOST_PASSWORD"
)

// Defaults applied when the config file and environment omit a value.
const (
	defaultAccessExpiry  = 30 * time.Minute
	defaultRefreshExpiry = 30 * 24 * time.Hour
	defaultSMTPHost      = "smtp.gmail.com"
	defaultSMTPPort      = 465
)

// JWTConfig holds JWT secret and token lifetimes.
type JWTConfig struct {
	Secret        string        `yaml:"secret"`
	AccessExpiry  time.Duration `yaml:"access-expiry"`
	RefreshExpiry time.Duration `yaml:"refresh-expiry"`
}

// RedisConfig holds cache store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig holds outbound mail relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	FromName string `yaml:"from-name"`
}

// Config is the full application configuration.
type Config struct {
	DatabaseDSN string      `yaml:"database-dsn"`
	JWT         JWTConfig   `yaml:"jwt"`
	Redis       RedisConfig `yaml:"redis"`
	SMTP        SMTPConfig  `yaml:"smtp"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, then applies environment overrides and
// defaults. A missing file is not an error as long as the environment
// supplies a database DSN.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return Config{}, fmt.Errorf("config: missing database dsn (set `database-dsn` in %s or env %s)", configPath, EnvDBConnection)
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables take precedence over the file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDBConnection)); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAccessExpiry)); v != "" {
		if d, errParse := time.ParseDuration(v); errParse == nil && d > 0 {
			cfg.JWT.AccessExpiry = d
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRefreshExpiry)); v != "" {
		if d, errParse := time.ParseDuration(v); errParse == nil && d > 0 {
			cfg.JWT.RefreshExpiry = d
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisPassword)); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPHost)); v != "" {
		cfg.SMTP.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPPort)); v != "" {
		if port, errParse := strconv.Atoi(v); errParse == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPUsername)); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		cfg.SMTP.Password = v
	}
}

// applyDefaults fills unset values.
func applyDefaults(cfg *Config) {
	if cfg.JWT.AccessExpiry <= 0 {
		cfg.JWT.AccessExpiry = defaultAccessExpiry
	}
	if cfg.JWT.RefreshExpiry <= 0 {
		cfg.JWT.RefreshExpiry = defaultRefreshExpiry
	}
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		cfg.SMTP.Host = defaultSMTPHost
	}
	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = defaultSMTPPort
	}
}
