// Package jwt issues and verifies the short-lived HS256 access tokens handed
// to clients on login and refresh.
//
// Access tokens carry the user id, email and roles. Every token names its
// signing secret in the kid header; [KeyID] derives the id from the secret
// when none is configured. Retired secrets listed in Config.VerifyKeys keep
// verifying until the tokens they signed expire, so a secret can be rotated
// without logging anyone out.
//
// The clock is injectable so token expiry can be driven deterministically.
package jwt
