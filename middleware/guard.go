package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/route"
	"github.com/MrEthical07/goSession/session"
)

// SessionSource yields the session snapshot a navigation is evaluated against.
// *goSession.Client satisfies it.
type SessionSource interface {
	Session() session.Session
}

// DecisionRecorder is implemented by sources that count guard outcomes.
// *goSession.Client satisfies it.
type DecisionRecorder interface {
	RecordDecision(route.Decision)
}

type decisionContextKey struct{}

// DecisionFromContext returns the guard decision that admitted the request.
func DecisionFromContext(ctx context.Context) (route.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(route.Decision)
	return d, ok
}

// GuardOption configures [Guard].
type GuardOption func(*guardOptions)

type guardOptions struct {
	loading http.Handler
}

// WithLoadingHandler replaces the response served while the session is bootstrapping.
func WithLoadingHandler(h http.Handler) GuardOption {
	return func(o *guardOptions) {
		if h != nil {
			o.loading = h
		}
	}
}

// Guard protects server-rendered pages with a route guard. An empty
// target.Path means the request URI. Bootstrapping sessions get the loading
// response; redirects are sent as 302 Found.
func Guard(src SessionSource, g route.Guard, target route.Target, opts ...GuardOption) func(http.Handler) http.Handler {
	o := guardOptions{loading: http.HandlerFunc(loadingHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			t := target
			if t.Path == "" {
				t.Path = r.URL.RequestURI()
			}

			d := g.Evaluate(src.Session(), t)
			if rec, ok := src.(DecisionRecorder); ok {
				rec.RecordDecision(d)
			}
			switch {
			case d.State == route.StateBootstrapping:
				o.loading.ServeHTTP(w, r)
				return
			case d.Redirect != "":
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			case !d.Allowed():
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuestOnly keeps signed-in users away from pages such as login and register.
func GuestOnly(src SessionSource, g route.Guard, opts ...GuardOption) func(http.Handler) http.Handler {
	return Guard(src, g, route.Target{GuestOnly: true}, opts...)
}

func loadingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("loading session\n"))
}
