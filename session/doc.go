// Package session holds the client-side authentication state: who is signed in,
// with which roles, and the access token attached to outgoing requests.
//
// # Dual view
//
// [Store.Read] is the synchronous view used by request-time code such as the
// credential interceptor. [Store.Subscribe] is the reactive view used by
// anything that re-renders or re-evaluates on change. Both are backed by the
// same value and every write updates them in one step.
//
// # Architecture boundaries
//
// This package owns the [Session] model and the [Store]. Writes happen only
// through [Patch] values built by [Authenticated], [Unauthenticated], and
// [Bootstrapped], so the identity and the credential always change together.
//
// # What this package must NOT do
//
//   - Perform network I/O or talk to the authentication service.
//   - Persist tokens anywhere outside process memory.
//   - Import goSession, refresh, or transport (no upward imports).
package session
