package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/yungbote/mindtrail-backend/internal/data/db"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

const maxConfigFileSize = 1024 * 1024

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Auth    AuthConfig    `koanf:"auth"`
	DB      DBConfig      `koanf:"db"`
	OpenAI  OpenAIConfig  `koanf:"openai"`
	Reflect ReflectConfig `koanf:"reflect"`
	Redis   RedisConfig   `koanf:"redis"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	Heartbeat       time.Duration `koanf:"heartbeat"`
}

type LogConfig struct {
	Mode string `koanf:"mode"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	Issuer    string        `koanf:"issuer"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type DBConfig struct {
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	LogLevel     string `koanf:"log_level"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type OpenAIConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

type ReflectConfig struct {
	OutputMode      string        `koanf:"output_mode"`
	GenerateTimeout time.Duration `koanf:"generate_timeout"`
	StoreTimeout    time.Duration `koanf:"store_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// RedisConfig enables cross-instance fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

var configSections = map[string]bool{
	"server": true, "log": true, "auth": true, "db": true,
	"openai": true, "reflect": true, "redis": true, "metrics": true,
}

// LoadConfig reads an optional YAML file, then environment overrides
// (SECTION_FIELD -> section.field, e.g. REFLECT_OUTPUT_MODE), then defaults.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path = strings.TrimSpace(path); path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey splits on the first underscore only; unknown sections are ignored.
func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !configSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.Heartbeat <= 0 {
		cfg.Server.Heartbeat = 15 * time.Second
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = db.DriverPostgres
	}
	if cfg.DB.LogLevel == "" {
		cfg.DB.LogLevel = "warn"
	}
	if cfg.OpenAI.Timeout <= 0 {
		cfg.OpenAI.Timeout = 60 * time.Second
	}
	if cfg.Reflect.OutputMode == "" {
		cfg.Reflect.OutputMode = string(services.OutputModeText)
	}
	if cfg.Reflect.GenerateTimeout <= 0 {
		cfg.Reflect.GenerateTimeout = 30 * time.Second
	}
	if cfg.Reflect.StoreTimeout <= 0 {
		cfg.Reflect.StoreTimeout = 5 * time.Second
	}
	if cfg.Reflect.MaxBodyBytes <= 0 {
		cfg.Reflect.MaxBodyBytes = 64 * 1024
	}
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := services.ParseOutputMode(c.Reflect.OutputMode); err != nil {
		errs = append(errs, err)
	}
	switch c.DB.Driver {
	case db.DriverPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			errs = append(errs, errors.New("db.dsn is required for postgres"))
		}
	case db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported db.driver %q", c.DB.Driver))
	}
	return errors.Join(errs...)
}

// RequireServe checks the settings only the server needs.
func (c *Config) RequireServe() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		errs = append(errs, errors.New("openai.api_key is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) DBConfig() db.Config {
	return db.Config{
		Driver:       c.DB.Driver,
		DSN:          c.DB.DSN,
		MaxOpenConns: c.DB.MaxOpenConns,
		MaxIdleConns: c.DB.MaxIdleConns,
		LogLevel:     c.DB.LogLevel,
	}
}
