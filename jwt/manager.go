package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretBytes = 16

var (
	// ErrInvalidConfig is returned by NewManager for unusable settings.
	ErrInvalidConfig = errors.New("jwt: invalid configuration")
	// ErrMissingSubject is returned by CreateAccess without a user id.
	ErrMissingSubject = errors.New("jwt: missing user id")
	// ErrUnknownKey is returned by ParseAccess for a kid outside the keyring.
	ErrUnknownKey = errors.New("jwt: unknown signing key")
	// ErrFutureIssued is returned by ParseAccess for an iat beyond MaxFutureIAT.
	ErrFutureIssued = errors.New("jwt: token issued in the future")
	// ErrExpired matches expired tokens with errors.Is.
	ErrExpired = jwt.ErrTokenExpired
)

// Key is one HS256 secret. An empty ID is derived from the secret.
type Key struct {
	ID     string
	Secret []byte
}

// Config holds access-token settings.
type Config struct {
	AccessTTL time.Duration

	// SigningKey signs new tokens and verifies them.
	SigningKey Key
	// VerifyKeys are retired secrets still accepted until their tokens expire.
	VerifyKeys []Key

	Issuer       string
	Audience     string
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration

	// Now overrides the clock used for issuing and validating tokens.
	Now func() time.Time
}

// Manager issues and verifies access tokens. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	signing Key
	keyring map[string][]byte
	parser  *jwt.Parser
}

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UID   string   `json:"uid"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// KeyID returns the identifier put in the kid header for secret.
func KeyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return "hs" + hex.EncodeToString(sum[:4])
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access TTL must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway out of range", ErrInvalidConfig)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: MaxFutureIAT out of range", ErrInvalidConfig)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{cfg: cfg, keyring: make(map[string][]byte, 1+len(cfg.VerifyKeys))}
	for i, k := range append([]Key{cfg.SigningKey}, cfg.VerifyKeys...) {
		k, err := normalizeKey(k)
		if err != nil {
			return nil, err
		}
		if _, dup := m.keyring[k.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate key id %q", ErrInvalidConfig, k.ID)
		}
		m.keyring[k.ID] = k.Secret
		if i == 0 {
			m.signing = k
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)

	return m, nil
}

func normalizeKey(k Key) (Key, error) {
	if len(k.Secret) < minSecretBytes {
		return k, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrInvalidConfig, minSecretBytes)
	}
	k.ID = strings.TrimSpace(k.ID)
	if k.ID == "" {
		k.ID = KeyID(k.Secret)
	}
	return k, nil
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.AccessTTL
}

// SigningKeyID returns the kid stamped on new tokens.
func (m *Manager) SigningKeyID() string {
	return m.signing.ID
}

// CreateAccess signs an access token for uid carrying roles.
func (m *Manager) CreateAccess(uid, email string, roles []string) (string, error) {
	if uid == "" {
		return "", ErrMissingSubject
	}
	if roles == nil {
		roles = []string{}
	}

	now := m.cfg.Now()
	claims := AccessClaims{
		UID:   uid,
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.cfg.Issuer,
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.signing.ID
	return token.SignedString(m.signing.Secret)
}

// ParseAccess verifies raw against the keyring and returns its claims.
func (m *Manager) ParseAccess(raw string) (*AccessClaims, error) {
	token, err := m.parser.ParseWithClaims(raw, &AccessClaims{}, m.lookupKey)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.cfg.Now().Add(m.cfg.MaxFutureIAT)) {
		return nil, ErrFutureIssued
	}
	return claims, nil
}

func (m *Manager) lookupKey(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	secret, ok := m.keyring[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return secret, nil
}
