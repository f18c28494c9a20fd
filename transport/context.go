package transport

import "context"

type retriedContextKey struct{}
type noRefreshContextKey struct{}

// MarkRetried flags ctx as belonging to a request that has already been
// replayed once after a refresh. A 401 on such a request is terminal.
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedContextKey{}, true)
}

// Retried reports whether ctx was flagged by [MarkRetried].
func Retried(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(retriedContextKey{}).(bool)
	return v
}

// WithoutRefresh flags ctx so that a 401 response is returned as-is instead of
// triggering a refresh. Used for the login, register, and refresh calls.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRefreshContextKey{}, true)
}

// RefreshDisabled reports whether ctx was flagged by [WithoutRefresh].
func RefreshDisabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(noRefreshContextKey{}).(bool)
	return v
}
