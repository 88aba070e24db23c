package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds the service configuration.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`

	Redis    RedisConfig    `yaml:"redis"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Sensors  SensorConfig   `yaml:"sensors"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Log      LogConfig      `yaml:"log"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AnalysisConfig points at the external satellite analysis API.
type AnalysisConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	RatePerMin int           `yaml:"rate_per_min"`

	// DrawTolerance is the loop-closure distance of the draw tool in degrees.
	DrawTolerance float64 `yaml:"draw_tolerance"`
}

type StorageConfig struct {
	Dir       string `yaml:"dir"`
	PublicURL string `yaml:"public_url"`
	MaxBytes  int64  `yaml:"max_bytes"`
}

type SessionConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Secure bool          `yaml:"secure"`
}

// SensorConfig throttles the device ingest endpoint for the whole process.
type SensorConfig struct {
	IngestPerSecond float64 `yaml:"ingest_per_second"`
	IngestBurst     int     `yaml:"ingest_burst"`
}

// WebhookConfig holds shared secrets of inbound webhooks.
type WebhookConfig struct {
	GatewaySecret string `yaml:"gateway_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultAnalysisURL is used when ANALYSIS_API_URL is not set.
const DefaultAnalysisURL = "http://localhost:8000"

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Port: "5050",
		Analysis: AnalysisConfig{
			BaseURL:       DefaultAnalysisURL,
			Timeout:       120 * time.Second,
			CacheTTL:      6 * time.Hour,
			RatePerMin:    30,
			DrawTolerance: 0.01,
		},
		Storage: StorageConfig{
			Dir:       "uploads",
			PublicURL: "/files",
			MaxBytes:  10 << 20,
		},
		Session: SessionConfig{
			TTL: 6 * time.Hour,
		},
		Sensors: SensorConfig{
			IngestPerSecond: 20,
			IngestBurst:     50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
//
// The file is read from CUENCA_CONFIG (default: config.yaml) and is optional.
// Environment variables always win over file values:
//   - PORT, DATABASE_URL
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//   - ANALYSIS_API_URL, ANALYSIS_API_KEY, ANALYSIS_TIMEOUT, ANALYSIS_CACHE_TTL, ANALYSIS_RATE_PER_MIN
//   - STORAGE_DIR, STORAGE_PUBLIC_URL, STORAGE_MAX_BYTES
//   - SESSION_TTL, SESSION_SECURE
//   - SENSOR_INGEST_RATE, SENSOR_INGEST_BURST
//   - GATEWAY_WEBHOOK_SECRET
//   - ALLOWED_ORIGINS (comma separated)
//   - LOG_LEVEL, LOG_FORMAT
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv("CUENCA_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if err := cfg.mergeFile(path); err != nil {
		return cfg, err
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("ANALYSIS_API_URL", &c.Analysis.BaseURL)
	str("ANALYSIS_API_KEY", &c.Analysis.APIKey)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("STORAGE_PUBLIC_URL", &c.Storage.PublicURL)
	str("GATEWAY_WEBHOOK_SECRET", &c.Webhooks.GatewaySecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	var errs []string
	num := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a duration like 6h, got %q", key, v))
			return
		}
		*dst = d
	}

	num("REDIS_DB", &c.Redis.DB)
	num("ANALYSIS_RATE_PER_MIN", &c.Analysis.RatePerMin)
	num("SENSOR_INGEST_BURST", &c.Sensors.IngestBurst)
	dur("ANALYSIS_TIMEOUT", &c.Analysis.Timeout)
	dur("ANALYSIS_CACHE_TTL", &c.Analysis.CacheTTL)
	dur("SESSION_TTL", &c.Session.TTL)

	if v := strings.TrimSpace(getenv("STORAGE_MAX_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("STORAGE_MAX_BYTES must be an integer, got %q", v))
		} else {
			c.Storage.MaxBytes = n
		}
	}
	if v := strings.TrimSpace(getenv("SENSOR_INGEST_RATE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SENSOR_INGEST_RATE must be a number, got %q", v))
		} else {
			c.Sensors.IngestPerSecond = f
		}
	}
	if v := strings.TrimSpace(getenv("SESSION_SECURE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SESSION_SECURE must be a boolean, got %q", v))
		} else {
			c.Session.Secure = b
		}
	}
	if v := strings.TrimSpace(getenv("ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Validate checks that required configuration fields are present and sane.
func (c Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Sprintf("port must be 1-65535, got %q", c.Port))
	}
	if c.Analysis.BaseURL == "" {
		errs = append(errs, "analysis base url is required")
	}
	if c.Analysis.Timeout <= 0 {
		errs = append(errs, "analysis timeout must be positive")
	}
	if c.Analysis.RatePerMin <= 0 {
		errs = append(errs, "analysis rate_per_min must be positive")
	}
	if c.Analysis.DrawTolerance <= 0 {
		errs = append(errs, "analysis draw_tolerance must be positive")
	}
	if c.Sensors.IngestPerSecond <= 0 || c.Sensors.IngestBurst <= 0 {
		errs = append(errs, "sensors ingest rate and burst must be positive")
	}
	if c.Storage.Dir == "" {
		errs = append(errs, "storage dir is required")
	}
	if !strings.HasPrefix(c.Storage.PublicURL, "/") {
		errs = append(errs, fmt.Sprintf("storage public_url must start with /, got %q", c.Storage.PublicURL))
	}
	if c.Storage.MaxBytes <= 0 {
		errs = append(errs, "storage max_bytes must be positive")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
