// Package middleware exposes net/http adapters on both sides of the session
// boundary.
//
// # Navigation guards (client side)
//
//   - [Guard] evaluates a route.Guard against the client session and serves a
//     loading response, a redirect, or the protected handler.
//   - [GuestOnly] sends signed-in users away from login and register pages.
//
// # Token guards (service side)
//
//   - [RequireBearer] verifies the access token and injects its claims.
//   - [RequireRole] checks the injected claims for a role.
//
// # What this package must NOT do
//
//   - Refresh credentials or write to the session store.
//   - Parse or sign JWTs directly (delegates to a [TokenVerifier]).
//   - Make authorization decisions beyond the route guard and role checks.
package middleware
