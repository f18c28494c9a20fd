package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"

	"github.com/sirupsen/logrus"
)

// CredentialSource returns the access token to attach, or "" when signed out.
type CredentialSource interface {
	AccessToken() string
}

// Refresher joins or starts a credential refresh. See refresh.Coordinator.
type Refresher interface {
	Await(ctx context.Context) (func(), error)
}

// Option configures an [Interceptor].
type Option func(*Interceptor)

// WithLogger sets the logger used for refresh and replay diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(i *Interceptor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithRetryHook is called each time a request is replayed after a refresh.
func WithRetryHook(fn func()) Option {
	return func(i *Interceptor) { i.onRetry = fn }
}

// WithRejectHook is called each time a replayed request is rejected again.
func WithRejectHook(fn func()) Option {
	return func(i *Interceptor) { i.onReject = fn }
}

const maxDrainBytes = 4 << 10

// Interceptor is an http.RoundTripper that attaches the current credential to
// every request and recovers from an expired credential by refreshing once and
// replaying the request.
type Interceptor struct {
	base      http.RoundTripper
	creds     CredentialSource
	refresher Refresher
	log       *logrus.Entry
	onRetry   func()
	onReject  func()
}

// New wraps base. A nil base uses http.DefaultTransport.
func New(base http.RoundTripper, creds CredentialSource, refresher Refresher, opts ...Option) *Interceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	i := &Interceptor{
		base:      base,
		creds:     creds,
		refresher: refresher,
		log:       logrus.NewEntry(logrus.StandardLogger()).WithField("component", "transport"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// RoundTrip implements http.RoundTripper.
//
// A 401 response triggers a refresh unless the request was already replayed,
// opted out with [WithoutRefresh], or carries a body that cannot be replayed.
// When the refresh fails the original 401 response is returned unchanged,
// unless a newer credential was published while it ran.
//
// A queued replay holds back the next queued request until it has been
// written to the base transport, so replays start in arrival order.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	sent := i.token()
	resp, err := i.base.RoundTrip(i.authorize(ctx, req, sent))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if Retried(ctx) {
		i.reject(req)
		return resp, nil
	}
	if RefreshDisabled(ctx) || i.refresher == nil {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		i.log.WithField("path", req.URL.Path).Debug("401 on request with non-replayable body, not refreshing")
		return resp, nil
	}

	done, rerr := i.refresher.Await(ctx)
	token := i.token()
	log := i.log.WithField("path", req.URL.Path)
	switch {
	case ctx.Err() != nil:
		done()
		log.WithError(ctx.Err()).Debug("request ended while waiting for refresh")
		return resp, nil
	case rerr != nil && (token == "" || token == sent):
		done()
		log.WithError(rerr).Debug("refresh failed, returning original 401")
		return resp, nil
	case rerr != nil:
		log.WithError(rerr).Debug("refresh superseded by a newer session, replaying with it")
	case token == "":
		done()
		log.Debug("refresh left no credential, returning original 401")
		return resp, nil
	}

	replay := i.authorize(i.replayContext(ctx, done), req, token)
	if req.Body != nil && req.Body != http.NoBody {
		body, berr := req.GetBody()
		if berr != nil {
			done()
			log.WithError(berr).Warn("unable to rewind request body for replay")
			return resp, nil
		}
		replay.Body = body
	}

	drainAndClose(resp.Body)
	if i.onRetry != nil {
		i.onRetry()
	}
	resp, err = i.base.RoundTrip(replay)
	// Transports that never report WroteRequest release here.
	done()
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		i.reject(req)
	}
	return resp, err
}

// replayContext marks ctx as a replay and calls handoff once the request has
// been written, composing with any trace already on ctx.
func (i *Interceptor) replayContext(ctx context.Context, handoff func()) context.Context {
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { handoff() },
	}
	return httptrace.WithClientTrace(MarkRetried(ctx), trace)
}

func (i *Interceptor) token() string {
	if i.creds == nil {
		return ""
	}
	return i.creds.AccessToken()
}

func (i *Interceptor) authorize(ctx context.Context, req *http.Request, token string) *http.Request {
	out := req.Clone(ctx)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

func (i *Interceptor) reject(req *http.Request) {
	if i.onReject != nil {
		i.onReject()
	}
	i.log.WithField("path", req.URL.Path).Debug("replayed request rejected again")
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
