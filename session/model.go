package session

import "time"

// User is the authenticated identity as reported by the authentication service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the client-side view of who is signed in.
//
// User and AccessToken are either both present or both absent. Bootstrapping is
// true until the startup refresh attempt has resolved.
type Session struct {
	User          *User
	Roles         []string
	AccessToken   string
	Bootstrapping bool
}

// Authenticated reports whether the session holds an identity and a credential.
func (s Session) Authenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

// HasAnyRole reports whether the session carries at least one of required.
// An empty required set is always satisfied.
func (s Session) HasAnyRole(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range s.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := Session{
		AccessToken:   s.AccessToken,
		Bootstrapping: s.Bootstrapping,
		Roles:         cloneRoles(s.Roles),
	}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

func cloneRoles(roles []string) []string {
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// Patch is a partial update applied by [Store.Write].
type Patch func(*Session)

// Authenticated sets identity, roles, and credential together.
func Authenticated(user User, roles []string, token string) Patch {
	roles = cloneRoles(roles)
	return func(s *Session) {
		u := user
		s.User = &u
		s.Roles = roles
		s.AccessToken = token
	}
}

// Unauthenticated clears identity, roles, and credential together.
func Unauthenticated() Patch {
	return func(s *Session) {
		s.User = nil
		s.Roles = []string{}
		s.AccessToken = ""
	}
}

// Bootstrapped marks the startup refresh attempt as resolved.
func Bootstrapped() Patch {
	return func(s *Session) {
		s.Bootstrapping = false
	}
}
