package route

import (
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/session"
)

// State is the outcome class of a guard evaluation.
type State uint8

const (
	// StateBootstrapping means the session is not resolved yet; show a loading indicator.
	StateBootstrapping State = iota
	// StateUnauthenticated means nobody is signed in; go to the login page.
	StateUnauthenticated
	// StateInsufficientRole means the signed-in user lacks every required role.
	StateInsufficientRole
	// StateGuestOnly means a signed-in user requested a page meant for guests.
	StateGuestOnly
	// StateAuthorized means the protected content may be rendered.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateInsufficientRole:
		return "insufficient_role"
	case StateGuestOnly:
		return "guest_only"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Target describes the location being navigated to.
type Target struct {
	Path          string
	RequiredRoles []string
	GuestOnly     bool
}

// Decision is the result of [Guard.Evaluate].
type Decision struct {
	State State
	// Redirect is empty when no navigation is required.
	Redirect string
	// From is the originally requested path for a login redirect.
	From string
}

// Allowed reports whether the target content may be rendered.
func (d Decision) Allowed() bool {
	return d.State == StateAuthorized
}

// Guard decides access to route targets from a session snapshot.
type Guard struct {
	LoginPath   string
	LandingPath string
	ReturnParam string
}

// DefaultGuard returns the guard used when no paths are configured.
func DefaultGuard() Guard {
	return Guard{LoginPath: "/login", LandingPath: "/dashboard", ReturnParam: "from"}
}

// Evaluate is pure: it performs no I/O and never mutates sess.
func (g Guard) Evaluate(sess session.Session, target Target) Decision {
	g = g.withDefaults()

	if sess.Bootstrapping {
		return Decision{State: StateBootstrapping}
	}

	if target.GuestOnly {
		if sess.User != nil {
			return Decision{State: StateGuestOnly, Redirect: g.LandingPath}
		}
		return Decision{State: StateAuthorized}
	}

	if sess.User == nil {
		return Decision{
			State:    StateUnauthenticated,
			Redirect: g.loginURL(target.Path),
			From:     target.Path,
		}
	}

	if !sess.HasAnyRole(target.RequiredRoles) {
		return Decision{State: StateInsufficientRole, Redirect: g.LandingPath}
	}

	return Decision{State: StateAuthorized}
}

// ReturnTo resolves the post-login destination. Only local absolute paths are
// honored; anything else falls back to the landing path.
func (g Guard) ReturnTo(raw string) string {
	g = g.withDefaults()
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return g.LandingPath
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return g.LandingPath
	}
	if u.Path == g.LoginPath {
		return g.LandingPath
	}
	return raw
}

func (g Guard) loginURL(from string) string {
	if from == "" {
		return g.LoginPath
	}
	v := url.Values{}
	v.Set(g.ReturnParam, from)
	return g.LoginPath + "?" + v.Encode()
}

func (g Guard) withDefaults() Guard {
	def := DefaultGuard()
	if g.LoginPath == "" {
		g.LoginPath = def.LoginPath
	}
	if g.LandingPath == "" {
		g.LandingPath = def.LandingPath
	}
	if g.ReturnParam == "" {
		g.ReturnParam = def.ReturnParam
	}
	return g
}
