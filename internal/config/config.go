package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file configuration.
const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvUpstreamAPIKey = "UPSTREAM_API_KEY"
)

// Defaults applied when the config file omits values.
const (
	DefaultPort            = 8318
	DefaultWindowSeconds   = 60
	DefaultMaxAttempts     = 3
	DefaultConflictRetries = 3
	DefaultStoreRetries    = 2
	DefaultRedisPrefix     = "quota"
	DefaultJWTExpiry       = 30 * 24 * time.Hour
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultMaxTokens       = 3000
)

// Duration decodes YAML duration strings like "30s" or bare second counts.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errStr := value.Decode(&raw); errStr == nil {
		parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
		if errParse != nil {
			return fmt.Errorf("config: invalid duration %q: %w", raw, errParse)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds int64
	if errInt := value.Decode(&seconds); errInt == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	return fmt.Errorf("config: invalid duration")
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EndpointConfig declares one backend region and its per-window quota.
type EndpointConfig struct {
	Region     string `yaml:"region"`
	TotalQuota int64  `yaml:"total-quota"`
}

// RedisConfig selects the Redis-backed quota store.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// QuotaConfig bounds the selection and retry behavior.
type QuotaConfig struct {
	WindowSeconds   int `yaml:"window-seconds"`
	MaxAttempts     int `yaml:"max-attempts"`
	ConflictRetries int `yaml:"conflict-retries"`
	StoreRetries    int `yaml:"store-retries"`
}

// UpstreamConfig drives the generation backend client.
type UpstreamConfig struct {
	URLTemplate string        `yaml:"url-template"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api-key"`
	MaxTokens   int           `yaml:"max-tokens"`
	Timeout     Duration      `yaml:"timeout"`
}

// AdminConfig guards the admin API. An empty password hash disables it.
type AdminConfig struct {
	PasswordBcrypt string        `yaml:"password-bcrypt"`
	JWTSecret      string        `yaml:"jwt-secret"`
	JWTExpiry      Duration      `yaml:"jwt-expiry"`
}

// Config is the full application configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	DatabaseDSN string           `yaml:"database-dsn"`
	Redis       RedisConfig      `yaml:"redis"`
	Quota       QuotaConfig      `yaml:"quota"`
	Endpoints   []EndpointConfig `yaml:"endpoints"`
	Upstream    UpstreamConfig   `yaml:"upstream"`
	Admin       AdminConfig      `yaml:"admin"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, applies defaults, and folds in environment
// overrides.
func Load(configPath string) (*Config, error) {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return nil, fmt.Errorf("read config file: %w", errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if errValidate := validate(&cfg); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Quota.WindowSeconds <= 0 {
		cfg.Quota.WindowSeconds = DefaultWindowSeconds
	}
	if cfg.Quota.MaxAttempts <= 0 {
		cfg.Quota.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Quota.ConflictRetries < 0 {
		cfg.Quota.ConflictRetries = DefaultConflictRetries
	}
	if cfg.Quota.StoreRetries < 0 {
		cfg.Quota.StoreRetries = DefaultStoreRetries
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}
	if cfg.Redis.DB < 0 {
		cfg.Redis.DB = 0
	}
	if cfg.Upstream.MaxTokens <= 0 {
		cfg.Upstream.MaxTokens = DefaultMaxTokens
	}
	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = Duration(DefaultUpstreamTimeout)
	}
	if cfg.Admin.JWTExpiry <= 0 {
		cfg.Admin.JWTExpiry = Duration(DefaultJWTExpiry)
	}
}

func applyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.Admin.JWTSecret = secret
	}
	if key := strings.TrimSpace(os.Getenv(EnvUpstreamAPIKey)); key != "" {
		cfg.Upstream.APIKey = key
	}
}

func validate(cfg *Config) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("config: at least one endpoint is required")
	}
	seen := make(map[string]struct{}, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		region := strings.TrimSpace(ep.Region)
		if region == "" {
			return fmt.Errorf("config: endpoint region must not be empty")
		}
		if ep.TotalQuota <= 0 {
			return fmt.Errorf("config: endpoint %s: total-quota must be positive", region)
		}
		if _, dup := seen[region]; dup {
			return fmt.Errorf("config: duplicate endpoint region %s", region)
		}
		seen[region] = struct{}{}
	}
	if strings.TrimSpace(cfg.Upstream.URLTemplate) == "" {
		return fmt.Errorf("config: upstream url-template is required")
	}
	if strings.TrimSpace(cfg.Upstream.Model) == "" {
		return fmt.Errorf("config: upstream model is required")
	}
	if !cfg.Redis.Enabled && strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return fmt.Errorf("config: database-dsn is required unless redis is enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("config: redis addr is required when redis is enabled")
	}
	if strings.TrimSpace(cfg.Admin.PasswordBcrypt) != "" && strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
		return fmt.Errorf("config: admin jwt secret is required when admin password is set (set `admin.jwt-secret` or env %s)", EnvJWTSecret)
	}
	return nil
}

// Window returns the quota window as a duration.
func (q QuotaConfig) Window() time.Duration {
	return time.Duration(q.WindowSeconds) * time.Second
}
