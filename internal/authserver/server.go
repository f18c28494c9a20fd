package authserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/password"
)

// Options wires a [Server]. Redis is required; the rest have defaults.
type Options struct {
	Config Config
	Redis  redis.UniversalClient
	Logger *logrus.Logger

	// Now overrides the clock for tokens and records.
	Now func() time.Time
	// HTTPClient is used for the OAuth code exchange and userinfo fetch.
	HTTPClient *http.Client
}

// Server is the reference authentication service.
type Server struct {
	cfg    Config
	log    *logrus.Entry
	now    func() time.Time
	admins map[string]struct{}

	users   *stores.UserStore
	refresh *stores.RefreshStore
	limiter *rate.Limiter
	tokens  *jwt.Manager
	hasher  *password.Argon2

	oauth      *oauth2.Config
	httpClient *http.Client
}

// New validates opts and assembles a Server.
func New(opts Options) (*Server, error) {
	if opts.Redis == nil {
		return nil, errors.New("authserver: redis client is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	previous := make([]jwt.Key, 0, len(opts.Config.JWTPreviousSecrets))
	for _, secret := range opts.Config.JWTPreviousSecrets {
		previous = append(previous, jwt.Key{Secret: []byte(secret)})
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:  opts.Config.AccessTTL,
		SigningKey: jwt.Key{Secret: []byte(opts.Config.JWTAccessSecret)},
		VerifyKeys: previous,
		Issuer:     "gosession",
		RequireIAT: true,
		Now:        opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("access tokens: %w", err)
	}

	hasher, err := password.NewArgon2(opts.Config.Password)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	s := &Server{
		cfg:        opts.Config,
		log:        logging.Component(opts.Logger, "authserver"),
		now:        opts.Now,
		admins:     make(map[string]struct{}, len(opts.Config.AdminEmails)),
		users:      stores.NewUserStore(opts.Redis, "", opts.Now),
		refresh:    stores.NewRefreshStore(opts.Redis, ""),
		limiter:    rate.New(opts.Redis, opts.Config.Limits),
		tokens:     tokens,
		hasher:     hasher,
		httpClient: opts.HTTPClient,
	}
	for _, email := range opts.Config.AdminEmails {
		s.admins[normalizeEmail(email)] = struct{}{}
	}

	if g := opts.Config.Google; g.Enabled() {
		endpoint := endpoints.Google
		if g.AuthURL != "" {
			endpoint.AuthURL = g.AuthURL
		}
		if g.TokenURL != "" {
			endpoint.TokenURL = g.TokenURL
		}
		s.oauth = &oauth2.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		}
	}

	return s, nil
}

// Tokens exposes the access-token manager, for callers that verify tokens
// issued by this service.
func (s *Server) Tokens() *jwt.Manager {
	return s.tokens
}

// Handler returns the HTTP surface. Everything except /health is mounted
// under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	bearer := middleware.RequireBearer(s.tokens)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.With(bearer).Post("/logout", s.handleLogout)
			r.With(bearer).Post("/me", s.handleMe)
			r.Get("/google/start", s.handleGoogleStart)
			r.Get("/google/callback", s.handleGoogleCallback)
		})
		r.With(bearer).Get("/user/profile", s.handleProfile)
		r.With(bearer, middleware.RequireRole("admin")).Get("/admin/stats", s.handleAdminStats)
	})

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{}
	if s.cfg.FrontendOrigin != "" {
		origins = append(origins, s.cfg.FrontendOrigin)
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  chimw.GetReqID(r.Context()),
		}).Info("request")
	})
}
