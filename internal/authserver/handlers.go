package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/session"
)

const maxRequestBytes = 1 << 16

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionPayload struct {
	AccessToken string       `json:"access_token"`
	User        session.User `json:"user"`
	Roles       []string     `json:"roles"`
}

type profilePayload struct {
	User  session.User `json:"user"`
	Roles []string     `json:"roles"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil || !validEmail(req.Email) || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "invalid email and password")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email and password")
		return
	}

	rec, err := s.users.Create(r.Context(), req.Email, hash)
	if err != nil {
		if !errors.Is(err, stores.ErrUserExists) {
			s.log.WithError(err).Error("register: create user")
		}
		writeError(w, http.StatusBadRequest, "unable to register")
		return
	}

	if _, ok := s.admins[normalizeEmail(rec.Email)]; ok {
		if err := s.users.AddRole(r.Context(), rec.ID, "admin"); err != nil {
			s.log.WithError(err).WithField("user_id", rec.ID).Error("register: grant admin")
		} else {
			rec.Roles = append(rec.Roles, "admin")
		}
	}

	writeJSON(w, http.StatusCreated, profilePayload{User: userOf(rec), Roles: rec.Roles})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email or password is invalid")
		return
	}
	ctx := r.Context()
	ip := clientIP(r)

	if err := s.limiter.CheckLogin(ctx, req.Email, ip); err != nil {
		s.writeLimiterError(w, err)
		return
	}

	rec, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, stores.ErrUserNotFound) {
		s.log.WithError(err).Error("login: find user")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	ok := false
	if rec != nil && rec.PasswordHash != "" {
		ok, err = s.hasher.Verify(req.Password, rec.PasswordHash)
		if err != nil {
			s.log.WithError(err).WithField("user_id", rec.ID).Warn("login: unreadable password hash")
			ok = false
		}
	} else {
		s.hasher.Equalize(req.Password)
	}
	if !ok {
		if err := s.limiter.IncrementLogin(ctx, req.Email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			s.log.WithError(err).Warn("login: count failure")
		}
		writeError(w, http.StatusUnauthorized, "email or password is invalid")
		return
	}

	if err := s.limiter.ResetLogin(ctx, req.Email); err != nil {
		s.log.WithError(err).Warn("login: reset budget")
	}
	s.upgradeHash(ctx, rec, req.Password)

	payload, err := s.issueSession(ctx, w, rec)
	if err != nil {
		s.log.WithError(err).WithField("user_id", rec.ID).Error("login: issue session")
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	sid, secret, err := internal.DecodeRefreshToken(cookie.Value)
	if err != nil {
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	ctx := r.Context()

	if err := s.limiter.CheckRefresh(ctx, sid.String()); err != nil {
		s.writeLimiterError(w, err)
		return
	}

	next, err := internal.NewRefreshSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue refresh token")
		return
	}

	uid, err := s.refresh.Rotate(ctx, sid.String(), secret.Hash(), next.Hash(), s.cfg.RefreshTTL)
	switch {
	case errors.Is(err, stores.ErrRefreshReuse):
		s.log.WithFields(logrus.Fields{"user_id": uid, "session_id": sid.String()}).Warn("refresh token reuse, session revoked")
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "refresh token revoked or expired")
		return
	case errors.Is(err, stores.ErrRefreshNotFound):
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "refresh token revoked or expired")
		return
	case err != nil:
		s.log.WithError(err).Error("refresh: rotate")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	rec, err := s.users.FindByID(ctx, uid)
	if err != nil {
		_ = s.refresh.Revoke(ctx, sid.String())
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	access, err := s.tokens.CreateAccess(rec.ID, rec.Email, rec.Roles)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue access token")
		return
	}

	s.setRefreshCookie(w, internal.EncodeRefreshToken(sid, next))
	writeJSON(w, http.StatusOK, sessionPayload{
		AccessToken: access,
		User:        userOf(rec),
		Roles:       rec.Roles,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if sid, _, err := internal.DecodeRefreshToken(cookie.Value); err == nil {
			owner, err := s.refresh.Owner(r.Context(), sid.String())
			if err == nil && claims != nil && owner == claims.UID {
				if err := s.refresh.Revoke(r.Context(), sid.String()); err != nil {
					s.log.WithError(err).Warn("logout: revoke")
				}
			}
		}
	}

	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	rec, err := s.users.FindByID(r.Context(), claims.UID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, profilePayload{User: userOf(rec), Roles: rec.Roles})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "This is a protected user profile endpoint.",
		"user_id": claims.UID,
		"roles":   claims.Roles,
	})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.users.Count(r.Context())
	if err != nil {
		s.log.WithError(err).Error("admin stats: count users")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"users": n})
}

// issueSession creates a refresh session, sets its cookie, and returns the
// login payload.
// upgradeHash re-hashes password when the stored hash predates the current
// cost parameters. Failures only log; the login already succeeded.
func (s *Server) upgradeHash(ctx context.Context, rec *stores.UserRecord, password string) {
	stale, err := s.hasher.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !stale {
		return
	}
	log := s.log.WithField("user_id", rec.ID)
	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.WithError(err).Warn("login: rehash")
		return
	}
	if err := s.users.SetPasswordHash(ctx, rec.ID, hash); err != nil {
		log.WithError(err).Warn("login: store upgraded hash")
		return
	}
	rec.PasswordHash = hash
	log.Info("login: password hash upgraded")
}

func (s *Server) issueSession(ctx context.Context, w http.ResponseWriter, rec *stores.UserRecord) (sessionPayload, error) {
	access, err := s.tokens.CreateAccess(rec.ID, rec.Email, rec.Roles)
	if err != nil {
		return sessionPayload{}, err
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return sessionPayload{}, err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return sessionPayload{}, err
	}
	if err := s.refresh.Save(ctx, sid.String(), rec.ID, secret.Hash(), s.cfg.RefreshTTL); err != nil {
		return sessionPayload{}, err
	}

	s.setRefreshCookie(w, internal.EncodeRefreshToken(sid, secret))
	return sessionPayload{
		AccessToken: access,
		User:        userOf(rec),
		Roles:       rec.Roles,
	}, nil
}

func (s *Server) writeLimiterError(w http.ResponseWriter, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rate.RetryAfterSeconds(err, 60)))
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}
	s.log.WithError(err).Error("rate limiter")
	writeError(w, http.StatusServiceUnavailable, "service unavailable")
}

func userOf(rec *stores.UserRecord) session.User {
	return session.User{
		ID:        rec.ID,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt.UTC().Truncate(time.Second),
		UpdatedAt: rec.UpdatedAt.UTC().Truncate(time.Second),
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && len(email) <= 254
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
