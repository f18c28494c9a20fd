package goSession

import (
	"github.com/MrEthical07/goSession/internal/authapi"
	"github.com/MrEthical07/goSession/session"
)

// SessionData is an authenticated session as delivered by the service, used
// with [Client.ApplySession].
type SessionData struct {
	User        session.User
	Roles       []string
	AccessToken string
}

// Profile is the identity returned by Register and Me.
type Profile = authapi.Profile

func sessionDataFrom(p *authapi.Payload) SessionData {
	return SessionData{User: p.User, Roles: p.Roles, AccessToken: p.AccessToken}
}
