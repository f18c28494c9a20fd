package authserver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/password"
)

// ErrInvalidConfig is returned by [Config.Validate] and [LoadConfig].
var ErrInvalidConfig = errors.New("authserver: invalid configuration")

/*
====================================
SERVICE CONFIG
====================================
*/

// Config holds the reference service settings.
type Config struct {
	Port string
	// RedisAddr is informational for the process that opens the connection;
	// [New] takes a ready client.
	RedisAddr string

	JWTAccessSecret string
	// JWTPreviousSecrets still verify access tokens after a secret rotation.
	JWTPreviousSecrets []string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration

	FrontendOrigin string
	CookieDomain   string
	CookieSecure   bool

	// AdminEmails get the "admin" role on registration.
	AdminEmails []string

	Google   GoogleConfig
	Limits   rate.Config
	Password password.Config
}

/*
====================================
GOOGLE CONFIG
====================================
*/

// GoogleConfig configures Google sign-in. The URL fields default to Google's
// endpoints and exist so tests can point them at a fake provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Enabled reports whether client credentials are configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// DefaultConfig returns settings for a local development service.
func DefaultConfig() Config {
	return Config{
		Port:           "8080",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		FrontendOrigin: "http://localhost:5173",
		CookieDomain:   "",
		Google: GoogleConfig{
			UserInfoURL: defaultUserInfoURL,
		},
		Limits:   rate.DefaultConfig(),
		Password: password.DefaultConfig(),
	}
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	if len(c.JWTAccessSecret) < 16 {
		return fmt.Errorf("%w: JWT_ACCESS_SECRET must be at least 16 bytes", ErrInvalidConfig)
	}
	for _, prev := range c.JWTPreviousSecrets {
		if len(prev) < 16 {
			return fmt.Errorf("%w: JWT_ACCESS_SECRET_PREVIOUS entries must be at least 16 bytes", ErrInvalidConfig)
		}
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("%w: access TTL must be positive", ErrInvalidConfig)
	}
	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("%w: refresh TTL must exceed access TTL", ErrInvalidConfig)
	}
	if c.FrontendOrigin != "" {
		u, err := url.Parse(c.FrontendOrigin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: FRONTEND_ORIGIN must be an absolute URL", ErrInvalidConfig)
		}
	}
	if c.Google.Enabled() && c.Google.RedirectURL == "" {
		return fmt.Errorf("%w: GOOGLE_REDIRECT_URL is required with google credentials", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig builds a Config from defaults, an optional .env file, and the
// process environment, then validates it.
func LoadConfig() (Config, error) {
	cfg, err := ReadEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadEnv is LoadConfig without validation, for callers that fill in missing
// values themselves.
func ReadEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Port = envString("PORT", cfg.Port)
	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.JWTAccessSecret = envString("JWT_ACCESS_SECRET", cfg.JWTAccessSecret)
	cfg.FrontendOrigin = strings.TrimRight(envString("FRONTEND_ORIGIN", cfg.FrontendOrigin), "/")
	cfg.CookieDomain = envString("COOKIE_DOMAIN", cfg.CookieDomain)

	var err error
	if cfg.AccessTTL, err = envMinutes("JWT_ACCESS_TTL_MINUTES", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envHours("REFRESH_TTL_HOURS", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = envBool("COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return Config{}, err
	}
	cfg.AdminEmails = append(cfg.AdminEmails, envList("ADMIN_EMAILS")...)
	cfg.JWTPreviousSecrets = append(cfg.JWTPreviousSecrets, envList("JWT_ACCESS_SECRET_PREVIOUS")...)

	cfg.Google.ClientID = envString("GOOGLE_CLIENT_ID", "")
	cfg.Google.ClientSecret = envString("GOOGLE_CLIENT_SECRET", "")
	cfg.Google.RedirectURL = envString("GOOGLE_REDIRECT_URL", "")
	cfg.Google.AuthURL = envString("GOOGLE_AUTH_URL", "")
	cfg.Google.TokenURL = envString("GOOGLE_TOKEN_URL", "")
	cfg.Google.UserInfoURL = envString("GOOGLE_USERINFO_URL", cfg.Google.UserInfoURL)

	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envMinutes(key string, def time.Duration) (time.Duration, error) {
	n, ok, err := envInt(key)
	if err != nil || !ok {
		return def, err
	}
	return time.Duration(n) * time.Minute, nil
}

func envHours(key string, def time.Duration) (time.Duration, error) {
	n, ok, err := envInt(key)
	if err != nil || !ok {
		return def, err
	}
	return time.Duration(n) * time.Hour, nil
}

func envInt(key string) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidConfig, key)
	}
	return n, true, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return b, nil
}
