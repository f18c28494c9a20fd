// Package authapi is the wire client for the authentication service's JSON
// endpoints (login, register, refresh, logout, me).
//
// Login, register, and refresh are sent with transport.WithoutRefresh so a 401
// from them is never treated as an expired credential. Non-2xx answers become
// [*Error] carrying the service's message verbatim.
//
// # What this package must NOT do
//
//   - Write to the session store; callers decide what a payload means.
//   - Retry requests.
package authapi
