// Package authserver is the reference authentication service the session
// client talks to. It issues short-lived JWT access tokens in response bodies
// and keeps the long-lived refresh token in an HttpOnly cookie scoped to
// /api/auth.
//
// # Endpoints
//
//   - POST /api/auth/register, /login, /refresh
//   - POST /api/auth/logout and /me (bearer)
//   - GET /api/auth/google/start and /callback
//   - GET /api/user/profile (bearer), /api/admin/stats (bearer, admin)
//   - GET /health
//
// Refresh tokens rotate on every use. Presenting a token that was already
// rotated revokes the whole refresh session.
//
// # What this package must NOT do
//
//   - Put access or refresh tokens in redirect URLs.
//   - Store refresh secrets or passwords in plaintext.
package authserver
