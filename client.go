package goSession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goSession/internal/authapi"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/route"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/transport"
)

// Client owns one client-side session and the HTTP plumbing that keeps it
// fresh. All methods are safe for concurrent use.
type Client struct {
	cfg     Config
	log     *logrus.Entry
	store   *session.Store
	coord   *refresh.Coordinator
	api     *authapi.Client
	http    *http.Client
	guard   route.Guard
	metrics *Metrics
	audit   *auditDispatcher

	// lifeMu serializes session replacement against refresh publication.
	// epoch advances whenever the session is replaced; a refresh that started
	// under an older epoch must not publish.
	lifeMu sync.Mutex
	epoch  uint64

	bootOnce sync.Once
	bootErr  error

	closed atomic.Bool
}

func newClient(cfg Config, base http.RoundTripper, sink AuditSink, log *logrus.Logger) (*Client, error) {
	if log == nil {
		log = logging.New(cfg.Logging)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		cfg:   cfg,
		log:   logging.Component(log, "client"),
		store: session.NewStore(),
		guard: route.Guard{
			LoginPath:   cfg.Routes.LoginPath,
			LandingPath: cfg.Routes.LandingPath,
			ReturnParam: cfg.Routes.ReturnParam,
		},
		metrics: NewMetrics(cfg.Metrics),
	}
	if cfg.Audit.Enabled {
		if sink == nil {
			sink = NewLogrusSink(logging.Component(log, "audit"))
		}
		c.audit = newAuditDispatcher(cfg.Audit, sink, logging.Component(log, "audit"))
	}

	c.coord = refresh.New(c.refresh,
		refresh.WithTimeout(cfg.Refresh.Timeout),
		refresh.WithQueueHook(func(int) { c.metrics.Inc(MetricRefreshQueued) }),
		refresh.WithSettleHook(c.onRefreshSettled),
	)

	rt := transport.New(base, c.store, c.coord,
		transport.WithLogger(logging.Component(log, "transport")),
		transport.WithRetryHook(func() { c.metrics.Inc(MetricRequestRetried) }),
		transport.WithRejectHook(c.onRetryRejected),
	)
	c.http = &http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   cfg.HTTP.Timeout,
	}

	c.api = authapi.New(cfg.BaseURL, c.http, authapi.Paths{
		Login:    cfg.Endpoints.Login,
		Register: cfg.Endpoints.Register,
		Refresh:  cfg.Endpoints.Refresh,
		Logout:   cfg.Endpoints.Logout,
		Me:       cfg.Endpoints.Me,
	})

	return c, nil
}

/*
====================================
LIFECYCLE
====================================
*/

// Bootstrap attempts a silent restore from the refresh cookie and then marks
// the session resolved. It runs once; later calls return the first result.
// The returned error is informational: the session is consistent either way.
func (c *Client) Bootstrap(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.bootOnce.Do(func() {
		done, err := c.coord.Await(ctx)
		done()

		if _, werr := c.store.Write(session.Bootstrapped()); werr != nil {
			c.log.WithError(werr).Error("unable to mark session bootstrapped")
		}

		sess := c.store.Read()
		if sess.Authenticated() {
			c.metrics.Inc(MetricBootstrapSuccess)
			c.emit(ctx, EventBootstrap, sess.User, nil)
			c.log.WithField("user_id", sess.User.ID).Info("session restored")
		} else {
			c.metrics.Inc(MetricBootstrapFailure)
			c.emit(ctx, EventBootstrap, nil, err)
			c.log.WithError(err).Debug("no session to restore")
		}
		c.bootErr = err
	})
	return c.bootErr
}

// AwaitReady blocks until the session has left the bootstrapping state.
func (c *Client) AwaitReady(ctx context.Context) error {
	updates, cancel := c.store.Subscribe(1)
	defer cancel()
	for {
		select {
		case sess, ok := <-updates:
			if !ok {
				return ErrClientClosed
			}
			if !sess.Bootstrapping {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotBootstrapped, ctx.Err())
		}
	}
}

// Login authenticates with email and password. On success the identity, roles,
// and access token are published in a single write. On failure the session is
// left untouched and the error is an [*APIError] or a transport error.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	payload, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, EventLogin, nil, err)
		return err
	}

	if err := c.replace(sessionDataFrom(payload)); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return err
	}
	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, EventLogin, &payload.User, nil)
	c.log.WithField("user_id", payload.User.ID).Info("login succeeded")
	return nil
}

// Register creates an account. It never changes the session; the caller is
// expected to Login afterwards.
func (c *Client) Register(ctx context.Context, email, password string) (*Profile, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	profile, err := c.api.Register(ctx, email, password)
	if err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.emit(ctx, EventRegister, nil, err)
		return nil, err
	}
	c.metrics.Inc(MetricRegisterSuccess)
	c.emit(ctx, EventRegister, &profile.User, nil)
	return profile, nil
}

// Logout revokes the server-side session and clears the local one. A failed
// service call is logged and otherwise ignored; the local session always ends.
func (c *Client) Logout(ctx context.Context) {
	prev := c.store.Read()
	if err := c.api.Logout(ctx); err != nil {
		c.metrics.Inc(MetricLogoutServerError)
		c.log.WithError(err).Warn("logout request failed, clearing local session anyway")
	}

	c.lifeMu.Lock()
	c.epoch++
	_, err := c.store.Write(session.Unauthenticated(), session.Bootstrapped())
	c.lifeMu.Unlock()
	if err != nil {
		c.log.WithError(err).Error("unable to clear session")
	}

	c.metrics.Inc(MetricLogout)
	c.emit(ctx, EventLogout, prev.User, nil)
}

// ApplySession installs an already-established session without any network
// call. Used after an external sign-in flow has produced the session payload.
func (c *Client) ApplySession(data SessionData) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.replace(data); err != nil {
		return err
	}
	c.emit(context.Background(), EventApplySession, &data.User, nil)
	return nil
}

// CompleteOAuth finishes a redirect-based sign-in. The service has already set
// the refresh cookie; one refresh turns it into a session. The refresh goes
// through the coordinator, so it joins a refresh already in flight instead of
// racing it.
func (c *Client) CompleteOAuth(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	done, err := c.coord.Await(ctx)
	done()

	if _, werr := c.store.Write(session.Bootstrapped()); werr != nil {
		c.log.WithError(werr).Error("unable to mark session bootstrapped")
	}
	if err != nil {
		c.emit(ctx, EventLogin, nil, err)
		return err
	}

	sess := c.store.Read()
	if !sess.Authenticated() {
		c.emit(ctx, EventLogin, nil, ErrSessionEnded)
		return ErrSessionEnded
	}
	c.emit(ctx, EventApplySession, sess.User, nil)
	c.log.WithField("user_id", sess.User.ID).Info("oauth sign-in completed")
	return nil
}

// GoogleStartURL is the full-page navigation target that begins Google sign-in.
func (c *Client) GoogleStartURL() string {
	return c.api.URL(c.cfg.Endpoints.GoogleStart)
}

// Me returns the identity behind the current access token. It is an ordinary
// authenticated call and refreshes transparently on 401.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.api.Me(ctx)
}

// replace publishes data as the new session and invalidates any refresh still
// in flight for the previous one.
func (c *Client) replace(data SessionData) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.epoch++
	_, err := c.store.Write(
		session.Authenticated(data.User, data.Roles, data.AccessToken),
		session.Bootstrapped(),
	)
	return err
}

/*
====================================
REFRESH
====================================
*/

// refresh runs inside the coordinator. Its outcome is published to the store
// before the coordinator releases any queued request.
func (c *Client) refresh(ctx context.Context) error {
	c.lifeMu.Lock()
	epoch := c.epoch
	c.lifeMu.Unlock()

	c.metrics.Inc(MetricRefreshStarted)
	payload, err := c.api.Refresh(ctx)

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.epoch != epoch {
		c.log.Debug("discarding refresh result for a replaced session")
		return ErrSessionEnded
	}

	if err != nil {
		prev := c.store.Read()
		if _, werr := c.store.Write(session.Unauthenticated()); werr != nil {
			c.log.WithError(werr).Error("unable to clear session")
		}
		if prev.Authenticated() {
			c.metrics.Inc(MetricForcedLogout)
			c.emit(ctx, EventForcedLogout, prev.User, err)
			c.log.WithError(err).Warn("refresh failed, session ended")
		}
		return err
	}

	_, err = c.store.Write(session.Authenticated(payload.User, payload.Roles, payload.AccessToken))
	return err
}

func (c *Client) onRefreshSettled(err error, elapsed time.Duration, waiters int) {
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
	} else {
		c.metrics.Inc(MetricRefreshSuccess)
	}
	c.metrics.Observe(MetricRefreshLatency, elapsed)

	entry := c.log.WithFields(logrus.Fields{
		"elapsed": elapsed,
		"waiters": waiters,
	})
	if err != nil && !errors.Is(err, ErrSessionEnded) {
		entry.WithError(err).Debug("refresh settled with error")
	} else {
		entry.Debug("refresh settled")
	}

	var user *session.User
	if sess := c.store.Read(); sess.User != nil {
		user = sess.User
	}
	c.emitMeta(context.Background(), EventRefresh, user, err, map[string]string{
		"waiters": fmt.Sprint(waiters),
	})
}

func (c *Client) onRetryRejected() {
	c.metrics.Inc(MetricRetryRejected)
	c.emit(context.Background(), EventRetryRejected, c.store.Read().User, ErrUnauthorized)
}

/*
====================================
ACCESSORS
====================================
*/

// Session returns a snapshot of the current session.
func (c *Client) Session() session.Session {
	return c.store.Read()
}

// Subscribe delivers the current session and every later change. See
// [session.Store.Subscribe].
func (c *Client) Subscribe(buffer int) (<-chan session.Session, func()) {
	return c.store.Subscribe(buffer)
}

// HTTPClient returns the client that attaches credentials and recovers from
// expired ones. Use it for every call to the protected API.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// URL resolves path against the configured base URL.
func (c *Client) URL(path string) string {
	return c.api.URL(path)
}

// Authorize evaluates target against the current session.
func (c *Client) Authorize(target route.Target) route.Decision {
	d := c.guard.Evaluate(c.store.Read(), target)
	c.RecordDecision(d)
	return d
}

// RecordDecision counts the redirect a guard decision leads to. Guards that
// evaluate outside Authorize, such as middleware.Guard, report through it.
func (c *Client) RecordDecision(d route.Decision) {
	switch d.State {
	case route.StateUnauthenticated:
		c.metrics.Inc(MetricGuardRedirectLogin)
	case route.StateInsufficientRole, route.StateGuestOnly:
		c.metrics.Inc(MetricGuardRedirectLanding)
	}
}

// Guard returns the route guard built from the configuration.
func (c *Client) Guard() route.Guard {
	return c.guard
}

// RefreshStats returns the refresh coordinator counters.
func (c *Client) RefreshStats() refresh.Stats {
	return c.coord.Stats()
}

// Gauges returns the live session and refresh state.
func (c *Client) Gauges() Gauges {
	s := c.store.Read()
	return Gauges{
		Authenticated:   s.Authenticated(),
		Bootstrapping:   s.Bootstrapping,
		RefreshInFlight: c.coord.InFlight(),
		RefreshPending:  c.coord.Pending(),
	}
}

// MetricsSnapshot returns the in-process counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes pending audit events. Lifecycle calls made afterwards return
// [ErrClientClosed]; HTTPClient keeps working.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.audit.Close()
	c.http.CloseIdleConnections()
}

func (c *Client) emit(ctx context.Context, eventType string, user *session.User, err error) {
	c.emitMeta(ctx, eventType, user, err, nil)
}

func (c *Client) emitMeta(ctx context.Context, eventType string, user *session.User, err error, meta map[string]string) {
	if c.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Success:   err == nil,
		Metadata:  meta,
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.audit.Emit(ctx, event)
}
