// Package goSession keeps a client-side authenticated session consistent under
// concurrent HTTP traffic.
//
// A [Client] owns one session. Every request sent through [Client.HTTPClient]
// carries the current access token. When the service answers 401 the client
// refreshes the token once, however many requests observed the 401, and
// replays each of them a single time in the order they arrived. A failed
// refresh signs the session out before any waiting request is released.
//
// # Lifecycle
//
//	c, err := goSession.New().WithConfig(cfg).Build()
//	...
//	_ = c.Bootstrap(ctx) // silent restore from the refresh cookie
//	err = c.Login(ctx, email, password)
//	resp, err := c.HTTPClient().Get(c.URL("/user/profile"))
//	c.Logout(ctx)
//
// Navigation decisions come from [Client.Authorize], backed by package route.
//
// # What this package must NOT do
//
//   - Persist the access token anywhere but memory.
//   - Let a refresh that started before Logout revive the session.
//   - Replay a request more than once.
package goSession
