// Package transport provides the credential-attaching http.RoundTripper used
// by every authenticated call a client makes.
//
// # Request phase
//
// The [Interceptor] reads the current access token synchronously and sets
// "Authorization: Bearer <token>" when one is present. It never waits.
//
// # Response phase
//
// A 401 response is recovered at most once: the interceptor joins the shared
// refresh, re-reads the credential, and replays the request with a retried
// marker. A second 401 is returned to the caller as-is.
//
// # What this package must NOT do
//
//   - Run refreshes of its own; refreshes go through a [Refresher].
//   - Mutate the caller's *http.Request.
//   - Mask the original 401 with a refresh error.
package transport
