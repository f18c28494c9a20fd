package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that produced a session."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected or failed logins."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Accepted registrations."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Rejected or failed registrations."},
	{ID: goSession.MetricRefreshStarted, Name: "gosession_refresh_started_total", Help: "Refresh calls issued to the service."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Refreshes that renewed the access token."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refreshes that did not renew the access token."},
	{ID: goSession.MetricRefreshQueued, Name: "gosession_refresh_queued_total", Help: "Requests that waited behind an in-flight refresh."},
	{ID: goSession.MetricRequestRetried, Name: "gosession_request_retried_total", Help: "Requests replayed after a refresh."},
	{ID: goSession.MetricRetryRejected, Name: "gosession_retry_rejected_total", Help: "Replayed requests rejected again."},
	{ID: goSession.MetricForcedLogout, Name: "gosession_forced_logout_total", Help: "Sessions ended by a failed refresh."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Explicit logouts."},
	{ID: goSession.MetricLogoutServerError, Name: "gosession_logout_server_error_total", Help: "Logouts whose service call failed."},
	{ID: goSession.MetricBootstrapSuccess, Name: "gosession_bootstrap_success_total", Help: "Startups that restored a session."},
	{ID: goSession.MetricBootstrapFailure, Name: "gosession_bootstrap_failure_total", Help: "Startups that ended signed out."},
	{ID: goSession.MetricGuardRedirectLogin, Name: "gosession_guard_redirect_login_total", Help: "Navigations redirected to login."},
	{ID: goSession.MetricGuardRedirectLanding, Name: "gosession_guard_redirect_landing_total", Help: "Navigations redirected to the landing page."},
}

// GaugeDef names one exported gauge read from the live client state.
type GaugeDef struct {
	Name  string
	Help  string
	Value func(goSession.Gauges) int64
}

// GaugeDefs lists every gauge in export order.
var GaugeDefs = []GaugeDef{
	{Name: "gosession_authenticated", Help: "1 while the client holds an authenticated session.", Value: func(g goSession.Gauges) int64 { return boolGauge(g.Authenticated) }},
	{Name: "gosession_bootstrapping", Help: "1 until the startup refresh settles.", Value: func(g goSession.Gauges) int64 { return boolGauge(g.Bootstrapping) }},
	{Name: "gosession_refresh_in_flight", Help: "1 while a refresh call is outstanding.", Value: func(g goSession.Gauges) int64 { return boolGauge(g.RefreshInFlight) }},
	{Name: "gosession_refresh_pending", Help: "Requests queued behind the outstanding refresh.", Value: func(g goSession.Gauges) int64 { return int64(g.RefreshPending) }},
}

func boolGauge(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramBounds are the upper bounds of the histogram buckets, in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds rendered as metric-name suffixes.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
