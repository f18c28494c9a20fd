package goSession

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig builds a Config in three layers:
//  1. [DefaultConfig]
//  2. the YAML file at path, when path is not empty
//  3. GOSESSION_* environment variables, after loading a .env file if present
//
// The result is validated before it is returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = d
		return nil
	}
	setBool := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = b
		return nil
	}

	setString("GOSESSION_BASE_URL", &cfg.BaseURL)
	setString("GOSESSION_LOGIN_PATH", &cfg.Routes.LoginPath)
	setString("GOSESSION_LANDING_PATH", &cfg.Routes.LandingPath)
	setString("GOSESSION_LOG_LEVEL", &cfg.Logging.Level)
	setString("GOSESSION_LOG_FORMAT", &cfg.Logging.Format)

	if err := setDuration("GOSESSION_REFRESH_TIMEOUT", &cfg.Refresh.Timeout); err != nil {
		return err
	}
	if err := setDuration("GOSESSION_HTTP_TIMEOUT", &cfg.HTTP.Timeout); err != nil {
		return err
	}
	if err := setBool("GOSESSION_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	return setBool("GOSESSION_AUDIT_ENABLED", &cfg.Audit.Enabled)
}
