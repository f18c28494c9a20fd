// Package refresh serializes credential refreshes for a client session.
//
// # Single flight
//
// A [Coordinator] runs at most one refresh at a time. The first caller to need
// a refresh runs it; every caller that arrives while it is running is queued.
// When the refresh settles, the queue is swapped out and drained in arrival
// order with the shared outcome. The refresh function publishes its outcome to
// the session before any queued caller is released, so a released caller that
// re-reads the credential sees the new one, or sees none after a failure.
//
// # Architecture boundaries
//
// This package owns the in-flight flag and the pending queue. What a refresh
// does, and what happens to the session on failure, is supplied by the caller
// as a [Func].
//
// # What this package must NOT do
//
//   - Perform network I/O itself.
//   - Retry a failed refresh.
//   - Import goSession, session, or transport.
package refresh
