package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/adonese/adminutils/forms"
	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath  = "/app/config.yaml"
	defaultSecretsPath = "/app/secrets.yaml"
	envPrefix          = "ADMINUTILS_"
)

// Config is the "adminutils" section of config.yaml. Every key can be
// overridden by an ADMINUTILS_ prefixed environment variable.
type Config struct {
	Port         string `json:"port" env:"PORT"`
	DatabasePath string `json:"db_path" env:"DB_PATH"`
	RedisAddr    string `json:"redis_addr" env:"REDIS_ADDR"`
	RedisDB      int    `json:"redis_db" env:"REDIS_DB" binding:"gte=0,lte=15"`
	IsDebug      bool   `json:"is_debug" env:"IS_DEBUG"`

	AdminPrefix      string `json:"admin_prefix" env:"ADMIN_PREFIX" binding:"startswith=/"`
	DashboardTitle   string `json:"dashboard_title" env:"DASHBOARD_TITLE"`
	DashboardColumns int    `json:"dashboard_columns" env:"DASHBOARD_COLUMNS" binding:"gte=1,lte=4"`
	LinkcheckURL     string `json:"linkcheck_url" env:"LINKCHECK_URL"`

	JWTSecret       string `json:"jwt_secret" env:"JWT_SECRET"`
	TokenTTLMinutes int    `json:"token_ttl_minutes" env:"TOKEN_TTL_MINUTES" binding:"gte=1"`
	PermCacheTTLSec int    `json:"perm_cache_ttl_seconds" env:"PERM_CACHE_TTL_SECONDS" binding:"gte=0"`

	BootstrapUser     string `json:"bootstrap_user" env:"BOOTSTRAP_USER"`
	BootstrapPassword string `json:"bootstrap_password" env:"BOOTSTRAP_PASSWORD" binding:"required_with=BootstrapUser"`

	LogSamplingTickMs  int `json:"log_sampling_tick_ms" env:"LOG_SAMPLING_TICK_MS" binding:"gte=0"`
	LogSamplingAfterMs int `json:"log_sampling_after_ms" env:"LOG_SAMPLING_AFTER_MS" binding:"gte=0"`
}

// Defaults fills in everything left unset.
func (c *Config) Defaults() {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "adminutils.db"
	}
	if c.AdminPrefix == "" {
		c.AdminPrefix = "/admin"
	}
	if c.DashboardTitle == "" {
		c.DashboardTitle = "Site administration"
	}
	if c.DashboardColumns == 0 {
		c.DashboardColumns = 2
	}
	if c.LinkcheckURL == "" {
		c.LinkcheckURL = "/linkcheck/"
	}
	if c.TokenTTLMinutes == 0 {
		c.TokenTTLMinutes = 180
	}
	if c.PermCacheTTLSec == 0 {
		c.PermCacheTTLSec = 300
	}
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c Config) PermCacheTTL() time.Duration {
	return time.Duration(c.PermCacheTTLSec) * time.Second
}

// loadConfig reads config.yaml, merges secrets.yaml over it, applies the
// environment and defaults, then validates. A missing config file is not an
// error: the environment alone can configure the service.
func loadConfig(paths ...string) (Config, error) {
	var cfg Config
	if len(paths) == 0 {
		paths = []string{defaultConfigPath, "./config.yaml"}
	}

	section := map[string]interface{}{}
	if configPath := firstExistingPath(paths...); configPath != "" {
		merged, err := readYAML(configPath)
		if err != nil {
			return cfg, err
		}
		if secretsPath := firstExistingPath(defaultSecretsPath, "./secrets.yaml"); secretsPath != "" {
			secrets, err := readYAML(secretsPath)
			if err != nil {
				return cfg, err
			}
			merged, _ = mergeConfig(merged, secrets).(map[string]interface{})
		}
		if s := getMap(merged, "adminutils"); s != nil {
			section = s
		}
		logrusLogger.Printf("Loaded config from %s", configPath)
	}

	payload, err := json.Marshal(section)
	if err != nil {
		return cfg, fmt.Errorf("encode adminutils config: %w", err)
	}
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return cfg, fmt.Errorf("decode adminutils config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Defaults()
	if err := forms.ValidateStruct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func firstExistingPath(paths ...string) string {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// mergeConfig overlays override on base. Empty strings and lists in override
// keep the base value.
func mergeConfig(base, override interface{}) interface{} {
	if override == nil {
		return base
	}

	switch overrideTyped := override.(type) {
	case map[string]interface{}:
		baseMap, ok := base.(map[string]interface{})
		if !ok {
			baseMap = map[string]interface{}{}
		}
		result := map[string]interface{}{}
		for key, value := range baseMap {
			result[key] = value
		}
		for key, value := range overrideTyped {
			result[key] = mergeConfig(result[key], value)
		}
		return result
	case []interface{}:
		if len(overrideTyped) == 0 {
			return base
		}
		return overrideTyped
	case string:
		if overrideTyped == "" {
			return base
		}
		return overrideTyped
	default:
		return override
	}
}

func getMap(source map[string]interface{}, key string) map[string]interface{} {
	if source == nil {
		return nil
	}
	if typed, ok := source[key].(map[string]interface{}); ok {
		return typed
	}
	return nil
}

var errNoJWTSecret = errors.New("jwt_secret is not set, tokens will not survive a restart")
