package authserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/stores"
)

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusInternalServerError, "google auth not configured")
		return
	}

	state, err := internal.NewState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}
	s.setStateCookie(w, state)

	url := s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	http.Redirect(w, r, url, http.StatusFound)
}

// handleGoogleCallback finishes sign-in by setting the refresh cookie and
// sending the browser to the frontend, which then refreshes to obtain its
// first access token. No token travels in the URL.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusInternalServerError, "google auth not configured")
		return
	}

	stateParam := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || stateParam == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(stateParam)) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	s.clearCookie(w, stateCookieName, stateCookiePath)

	ctx := r.Context()
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.WithError(err).Warn("google: code exchange")
		writeError(w, http.StatusBadRequest, "oauth exchange failed")
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		s.log.WithError(err).Warn("google: userinfo")
		writeError(w, http.StatusBadGateway, "failed to fetch user info")
		return
	}
	if info.Email == "" {
		writeError(w, http.StatusBadRequest, "email not provided by provider")
		return
	}

	rec, err := s.findOrCreateOAuthUser(ctx, info)
	if err != nil {
		s.log.WithError(err).Error("google: find or create user")
		writeError(w, http.StatusInternalServerError, "failed to process user")
		return
	}

	if _, err := s.issueSession(ctx, w, rec); err != nil {
		s.log.WithError(err).WithField("user_id", rec.ID).Error("google: issue session")
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	http.Redirect(w, r, s.cfg.FrontendOrigin+"/oauth/callback", http.StatusFound)
}

func (s *Server) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	resp, err := s.oauth.Client(ctx, token).Get(s.cfg.Google.UserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("userinfo: " + resp.Status)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBytes)).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Server) findOrCreateOAuthUser(ctx context.Context, info *googleUserInfo) (*stores.UserRecord, error) {
	rec, err := s.users.FindByEmail(ctx, info.Email)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, stores.ErrUserNotFound) {
		return nil, err
	}

	rec, err = s.users.CreateOAuth(ctx, info.Email, "google", info.Sub)
	if errors.Is(err, stores.ErrUserExists) {
		return s.users.FindByEmail(ctx, info.Email)
	}
	return rec, err
}
