package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/wind-applet/internal/client"
	"github.com/kjstillabower/wind-applet/internal/observability"
)

// Config holds process configuration loaded from YAML, .env and the environment.
// User-editable settings (location, units) live in the settings file, not here.
type Config struct {
	StationURL   string        `validate:"required,url"`
	UserAgent    string        `validate:"required"`
	FetchTimeout time.Duration `validate:"gte=0s"`

	CircuitBreakerEnabled  bool
	CircuitBreakerFailures int           `validate:"gte=1"`
	CircuitBreakerTimeout  time.Duration `validate:"gte=1s"`

	SettingsPath string `validate:"required"`

	BridgeAddr     string `validate:"required,hostname_port"`
	RateLimitRPS   int    `validate:"gte=0"`
	RateLimitBurst int    `validate:"gte=0"`

	DegradedWindow   time.Duration `validate:"gte=1m"`
	DegradedErrorPct int           `validate:"gte=0,lte=100"`

	EventQueueSize  int           `validate:"gte=1,lte=4096"`
	ShutdownTimeout time.Duration `validate:"gte=1s"`
}

type fileConfig struct {
	Station struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`

		CircuitBreaker struct {
			Enabled  *bool  `yaml:"enabled"`
			Failures int    `yaml:"failures"`
			Timeout  string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"station"`

	Settings struct {
		Path string `yaml:"path"`
	} `yaml:"settings"`

	Bridge struct {
		Addr           string `yaml:"addr"`
		RateLimitRPS   *int   `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"bridge"`

	Applet struct {
		EventQueueSize int `yaml:"event_queue_size"`
	} `yaml:"applet"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct *int   `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

var validate = validator.New()

// Load reads .env (if present), then {CONFIG_DIR}/{ENV_NAME}.yaml (defaults:
// ./config and dev). A missing YAML file is not an error: the applet is started
// by the desktop shell and must run with defaults. STATION_URL, SETTINGS_PATH
// and BRIDGE_ADDR override the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: get working directory: %w", err)
		}
		dir = filepath.Join(cwd, "config")
	}

	var fc fileConfig
	configPath := filepath.Join(dir, env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := fromFile(fc)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) (*Config, error) {
	cfg := &Config{}

	cfg.StationURL = firstNonEmpty(os.Getenv("STATION_URL"), fc.Station.URL, client.DefaultStationURL)
	cfg.UserAgent = firstNonEmpty(fc.Station.UserAgent, observability.AppID)
	cfg.FetchTimeout = parseDurationOrZero(fc.Station.Timeout, 0)

	if fc.Station.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.Station.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailures = fc.Station.CircuitBreaker.Failures
	if cfg.CircuitBreakerFailures <= 0 {
		cfg.CircuitBreakerFailures = 5
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Station.CircuitBreaker.Timeout, 5*time.Minute)

	cfg.SettingsPath = firstNonEmpty(os.Getenv("SETTINGS_PATH"), fc.Settings.Path)
	if cfg.SettingsPath == "" {
		path, err := defaultSettingsPath()
		if err != nil {
			return nil, err
		}
		cfg.SettingsPath = path
	}

	cfg.BridgeAddr = firstNonEmpty(os.Getenv("BRIDGE_ADDR"), fc.Bridge.Addr, "127.0.0.1:7465")
	cfg.RateLimitRPS = 20
	if fc.Bridge.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Bridge.RateLimitRPS
	}
	cfg.RateLimitBurst = fc.Bridge.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.EventQueueSize = fc.Applet.EventQueueSize
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = 64
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 10*time.Minute)
	cfg.DegradedErrorPct = 50
	if fc.Health.DegradedErrorPct != nil {
		cfg.DegradedErrorPct = *fc.Health.DegradedErrorPct
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 5*time.Second)
	return cfg, nil
}

func defaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "wind-applet", "settings.yaml"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is; for station.timeout it means no timeout.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validateConfig runs struct validation and reports the first failing fields by name.
func validateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
	}
	return fmt.Errorf("invalid config: %w", err)
}
