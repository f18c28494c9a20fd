package authserver

import (
	"net/http"
	"time"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
	stateCookieName   = "oauth_state"
	stateCookiePath   = "/api/auth/google"
	stateCookieTTL    = 5 * time.Minute
)

func (s *Server) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		Domain:   s.cfg.CookieDomain,
		Expires:  s.now().Add(s.cfg.RefreshTTL),
		MaxAge:   int(s.cfg.RefreshTTL.Seconds()),
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	s.clearCookie(w, refreshCookieName, refreshCookiePath)
}

func (s *Server) setStateCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		Domain:   s.cfg.CookieDomain,
		MaxAge:   int(stateCookieTTL.Seconds()),
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   s.cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
