// Package config loads engine defaults the way the teacher's
// internal/config package and cmd/root.go do: spf13/viper bound to
// environment variables first, an optional YAML file second, and
// spf13/viper's own defaults last. Per SPEC_FULL.md §2.2, call-site
// options passed to Enrich still override everything this package
// produces — Load only establishes the Engine-level baseline.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config mirrors the recognized keys in §6.3 exactly.
type Config struct {
	CacheTTL      time.Duration     `mapstructure:"cache_ttl"`
	NoCache       bool              `mapstructure:"no_cache"`
	RefreshCache  bool              `mapstructure:"refresh_cache"`
	MaxWorkers    int               `mapstructure:"max_workers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	RetryAttempts int               `mapstructure:"retry_attempts"`
	Credentials   map[string]string `mapstructure:"-"`
	CacheBackend  string            `mapstructure:"cache_backend"`
	CacheDir      string            `mapstructure:"cache_dir"`
	RedisAddr     string            `mapstructure:"redis_addr"`
	LogLevel      string            `mapstructure:"log_level"`
	LogFormat     string            `mapstructure:"log_format"`
}

// providerCredentialEnvs is the closed set of providers whose
// <PROVIDER>_API_KEY environment variable Load binds, per §6.3.
var providerCredentialEnvs = []string{"threatintel", "portscan", "geoip"}

func defaults() Config {
	return Config{
		CacheTTL:      24 * time.Hour,
		NoCache:       false,
		RefreshCache:  false,
		MaxWorkers:    50,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		CacheBackend:  "memory",
		CacheDir:      "",
		RedisAddr:     "",
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load builds a Config from environment variables and an optional file
// at configPath (skipped if empty or missing — a missing config
// file is not an error, since env vars and defaults are always
// sufficient to run).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	d := defaults()

	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("no_cache", d.NoCache)
	v.SetDefault("refresh_cache", d.RefreshCache)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("retry_attempts", d.RetryAttempts)
	v.SetDefault("cache_backend", d.CacheBackend)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	bindings := map[string]string{
		"cache_ttl":      "CACHE_TTL",
		"no_cache":       "NO_CACHE",
		"refresh_cache":  "REFRESH_CACHE",
		"max_workers":    "MAX_WORKERS",
		"timeout":        "TIMEOUT",
		"retry_attempts": "RETRY_ATTEMPTS",
		"cache_backend":  "CACHE_BACKEND",
		"cache_dir":      "CACHE_DIR",
		"redis_addr":     "REDIS_ADDR",
		"log_level":      "LOG_LEVEL",
		"log_format":     "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Credentials = make(map[string]string)
	for _, providerName := range providerCredentialEnvs {
		envName := strings.ToUpper(providerName) + "_API_KEY"
		if key := v.GetString(strings.ToLower(envName)); key != "" {
			cfg.Credentials[providerName] = key
			continue
		}
		if err := v.BindEnv(strings.ToLower(envName), envName); err == nil {
			if key := v.GetString(strings.ToLower(envName)); key != "" {
				cfg.Credentials[providerName] = key
			}
		}
	}

	return &cfg, nil
}
