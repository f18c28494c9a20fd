package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const (
	activeSecret  = "active-secret-0123456789abcdef"
	retiredSecret = "retired-secret-0123456789abcdef"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Unix(1700000000, 0)}
	cfg := Config{
		AccessTTL:  15 * time.Minute,
		SigningKey: Key{Secret: []byte(activeSecret)},
		Issuer:     "gosession",
		RequireIAT: true,
		Now:        clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, clock
}

// sign builds a token by hand so tests can forge headers and claims.
func sign(t *testing.T, method gjwt.SigningMethod, kid string, key any, claims AccessClaims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsAt(now time.Time, ttl time.Duration) AccessClaims {
	return AccessClaims{UID: "u1", Roles: []string{"user"}, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "gosession",
		IssuedAt:  gjwt.NewNumericDate(now),
		ExpiresAt: gjwt.NewNumericDate(now.Add(ttl)),
	}}
}

func TestCreateAccessRoundTrip(t *testing.T) {
	m, clock := newTestManager(t, nil)

	tok, err := m.CreateAccess("u1", "a@example.com", []string{"user", "admin"})
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.UID != "u1" || claims.Subject != "u1" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected identity %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
	if !claims.ExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}

	clock.now = clock.now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCreateAccessStampsSigningKeyID(t *testing.T) {
	m, _ := newTestManager(t, nil)
	tok, err := m.CreateAccess("u1", "", nil)
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	parsed, _, err := gjwt.NewParser().ParseUnverified(tok, &AccessClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if got := parsed.Header["kid"]; got != KeyID([]byte(activeSecret)) || got != m.SigningKeyID() {
		t.Fatalf("unexpected kid %v", got)
	}
	if !strings.HasPrefix(m.SigningKeyID(), "hs") {
		t.Fatalf("unexpected derived kid %q", m.SigningKeyID())
	}
	if roles := parsed.Claims.(*AccessClaims).Roles; roles == nil || len(roles) != 0 {
		t.Fatalf("expected empty non-nil roles, got %#v", roles)
	}
}

func TestParseAccessKeyring(t *testing.T) {
	m, clock := newTestManager(t, func(c *Config) {
		c.VerifyKeys = []Key{{Secret: []byte(retiredSecret)}}
	})
	claims := claimsAt(clock.now, time.Minute)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "retired key still verifies",
			token: sign(t, gjwt.SigningMethodHS256, KeyID([]byte(retiredSecret)), []byte(retiredSecret), claims),
		},
		{
			name:  "missing kid",
			token: sign(t, gjwt.SigningMethodHS256, "", []byte(activeSecret), claims),
			want:  ErrUnknownKey,
		},
		{
			name:  "unknown kid",
			token: sign(t, gjwt.SigningMethodHS256, "hs00000000", []byte(activeSecret), claims),
			want:  ErrUnknownKey,
		},
		{
			name:  "known kid with wrong secret",
			token: sign(t, gjwt.SigningMethodHS256, KeyID([]byte(activeSecret)), []byte("forged-secret-0123456789abcdef"), claims),
			want:  gjwt.ErrTokenSignatureInvalid,
		},
		{
			name:  "other algorithm",
			token: sign(t, gjwt.SigningMethodHS512, KeyID([]byte(activeSecret)), []byte(activeSecret), claims),
			want:  gjwt.ErrTokenSignatureInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAccess(tt.token)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseAccessRegisteredClaims(t *testing.T) {
	m, clock := newTestManager(t, func(c *Config) {
		c.Audience = "api"
		c.Leeway = 30 * time.Second
	})
	kid := KeyID([]byte(activeSecret))
	secret := []byte(activeSecret)
	base := func(mutate func(*AccessClaims)) string {
		c := claimsAt(clock.now, time.Minute)
		c.Audience = gjwt.ClaimStrings{"api"}
		mutate(&c)
		return sign(t, gjwt.SigningMethodHS256, kid, secret, c)
	}

	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{name: "valid", token: base(func(*AccessClaims) {}), ok: true},
		{name: "wrong issuer", token: base(func(c *AccessClaims) { c.Issuer = "other" })},
		{name: "wrong audience", token: base(func(c *AccessClaims) { c.Audience = gjwt.ClaimStrings{"other"} })},
		{name: "missing uid", token: base(func(c *AccessClaims) { c.UID = "" })},
		{name: "missing exp", token: base(func(c *AccessClaims) { c.ExpiresAt = nil })},
		{
			name: "expired within leeway",
			token: base(func(c *AccessClaims) {
				c.IssuedAt = gjwt.NewNumericDate(clock.now.Add(-time.Minute))
				c.ExpiresAt = gjwt.NewNumericDate(clock.now.Add(-15 * time.Second))
			}),
			ok: true,
		},
		{
			name: "expired past leeway",
			token: base(func(c *AccessClaims) {
				c.IssuedAt = gjwt.NewNumericDate(clock.now.Add(-3 * time.Minute))
				c.ExpiresAt = gjwt.NewNumericDate(clock.now.Add(-2 * time.Minute))
			}),
		},
		{name: "garbage", token: "not.a.jwt"},
		{name: "alg none", token: "eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAccess(tt.token)
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestNewManagerRejects(t *testing.T) {
	good := Key{Secret: []byte(activeSecret)}
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no ttl", cfg: Config{SigningKey: good}},
		{name: "short secret", cfg: Config{AccessTTL: time.Minute, SigningKey: Key{Secret: []byte("short")}}},
		{name: "short retired secret", cfg: Config{AccessTTL: time.Minute, SigningKey: good, VerifyKeys: []Key{{Secret: []byte("short")}}}},
		{name: "duplicate key", cfg: Config{AccessTTL: time.Minute, SigningKey: good, VerifyKeys: []Key{good}}},
		{name: "leeway", cfg: Config{AccessTTL: time.Minute, SigningKey: good, Leeway: time.Hour}},
		{name: "future iat window", cfg: Config{AccessTTL: time.Minute, SigningKey: good, MaxFutureIAT: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestCreateAccessRequiresUID(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, err := m.CreateAccess("", "", nil); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func FuzzParseAccess(f *testing.F) {
	m, err := NewManager(Config{
		AccessTTL:  5 * time.Minute,
		SigningKey: Key{Secret: []byte(activeSecret)},
		RequireIAT: true,
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := m.CreateAccess("uid1", "fuzz@example.com", []string{"user"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.ParseAccess(input)
		if err == nil && (claims == nil || claims.UID == "") {
			t.Fatalf("accepted token without identity: %+v", claims)
		}
	})
}
