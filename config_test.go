package goSession

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "relative base url invalid",
			mutate: func(c *Config) {
				c.BaseURL = "/api"
			},
			wantValid: false,
		},
		{
			name: "non http scheme invalid",
			mutate: func(c *Config) {
				c.BaseURL = "ftp://example.com"
			},
			wantValid: false,
		},
		{
			name: "endpoint without slash invalid",
			mutate: func(c *Config) {
				c.Endpoints.Refresh = "auth/refresh"
			},
			wantValid: false,
		},
		{
			name: "login equals landing invalid",
			mutate: func(c *Config) {
				c.Routes.LandingPath = c.Routes.LoginPath
			},
			wantValid: false,
		},
		{
			name: "blank return param invalid",
			mutate: func(c *Config) {
				c.Routes.ReturnParam = "  "
			},
			wantValid: false,
		},
		{
			name: "refresh timeout valid",
			mutate: func(c *Config) {
				c.Refresh.Timeout = 10 * time.Second
			},
			wantValid: true,
		},
		{
			name: "negative refresh timeout invalid",
			mutate: func(c *Config) {
				c.Refresh.Timeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "refresh timeout above http timeout invalid",
			mutate: func(c *Config) {
				c.HTTP.Timeout = time.Second
				c.Refresh.Timeout = 2 * time.Second
			},
			wantValid: false,
		},
		{
			name: "refresh timeout with no http timeout valid",
			mutate: func(c *Config) {
				c.HTTP.Timeout = 0
				c.Refresh.Timeout = time.Minute
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "unknown log format invalid",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfigLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "gosession.yaml")
	yaml := []byte(`
base_url: https://auth.example.com/api
routes:
  landing_path: /home
refresh:
  timeout: 5s
metrics:
  enabled: false
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GOSESSION_LOGIN_PATH", "/signin")
	t.Setenv("GOSESSION_HTTP_TIMEOUT", "20s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BaseURL != "https://auth.example.com/api" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Routes.LandingPath != "/home" || cfg.Routes.LoginPath != "/signin" {
		t.Fatalf("unexpected routes %+v", cfg.Routes)
	}
	if cfg.Refresh.Timeout != 5*time.Second || cfg.HTTP.Timeout != 20*time.Second {
		t.Fatalf("unexpected timeouts refresh=%s http=%s", cfg.Refresh.Timeout, cfg.HTTP.Timeout)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics disabled from file")
	}
	if cfg.Endpoints.Refresh != "/auth/refresh" {
		t.Fatalf("expected default endpoint kept, got %q", cfg.Endpoints.Refresh)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GOSESSION_LANDING_PATH=/welcome\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GOSESSION_LANDING_PATH") })

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Routes.LandingPath != "/welcome" {
		t.Fatalf("expected landing from .env, got %q", cfg.Routes.LandingPath)
	}
}

func TestLoadConfigRejectsBadEnvDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOSESSION_REFRESH_TIMEOUT", "soon")

	if _, err := LoadConfig(""); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
