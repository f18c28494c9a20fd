package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/logging"
)

// Config holds client settings. Obtain one from [DefaultConfig] or
// [LoadConfig] and pass it to [Builder.WithConfig].
type Config struct {
	BaseURL   string          `yaml:"base_url"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Routes    RoutesConfig    `yaml:"routes"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	HTTP      HTTPConfig      `yaml:"http"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig holds service paths relative to BaseURL.
type EndpointsConfig struct {
	Login       string `yaml:"login"`
	Register    string `yaml:"register"`
	Refresh     string `yaml:"refresh"`
	Logout      string `yaml:"logout"`
	Me          string `yaml:"me"`
	GoogleStart string `yaml:"google_start"`
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig holds the navigation targets used by the route guard.
type RoutesConfig struct {
	LoginPath   string `yaml:"login_path"`
	LandingPath string `yaml:"landing_path"`
	ReturnParam string `yaml:"return_param"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds one refresh call. Zero leaves it unbounded, in which case a
	// hung refresh holds every queued request until the caller's own context ends.
	Timeout time.Duration `yaml:"timeout"`
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig tunes the outbound HTTP client.
type HTTPConfig struct {
	// Timeout applies to each client call as a whole, replay included. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous delivery of session events.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LoggingConfig selects log level, format, and output.
type LoggingConfig = logging.Config

// DefaultConfig returns the client defaults, pointed at a local reference service.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Endpoints: EndpointsConfig{
			Login:       "/auth/login",
			Register:    "/auth/register",
			Refresh:     "/auth/refresh",
			Logout:      "/auth/logout",
			Me:          "/auth/me",
			GoogleStart: "/auth/google/start",
		},
		Routes: RoutesConfig{
			LoginPath:   "/login",
			LandingPath: "/dashboard",
			ReturnParam: "from",
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first unusable setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("BaseURL must be an absolute http(s) URL")
	}

	endpoints := map[string]string{
		"login":    c.Endpoints.Login,
		"register": c.Endpoints.Register,
		"refresh":  c.Endpoints.Refresh,
		"logout":   c.Endpoints.Logout,
		"me":       c.Endpoints.Me,
	}
	for name, p := range endpoints {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("endpoint %s must start with /", name)
		}
	}

	if !strings.HasPrefix(c.Routes.LoginPath, "/") || !strings.HasPrefix(c.Routes.LandingPath, "/") {
		return errors.New("route paths must start with /")
	}
	if c.Routes.LoginPath == c.Routes.LandingPath {
		return errors.New("LoginPath and LandingPath must differ")
	}
	if strings.TrimSpace(c.Routes.ReturnParam) == "" {
		return errors.New("ReturnParam must not be blank")
	}

	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP Timeout must be >= 0")
	}
	if c.HTTP.Timeout > 0 && c.Refresh.Timeout > c.HTTP.Timeout {
		return errors.New("Refresh Timeout must not exceed HTTP Timeout")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}

	return nil
}
