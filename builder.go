package goSession

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Builder assembles a [Client]. A Builder can be used for one Build only.
type Builder struct {
	config    Config
	transport http.RoundTripper
	auditSink AuditSink
	logger    *logrus.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithHTTPTransport sets the RoundTripper under the credential interceptor.
// Defaults to http.DefaultTransport.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithAuditSink sets the destination for audit events. It only takes effect
// when audit is enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Without one, a logger is built from the
// Logging section of the configuration.
func (b *Builder) WithLogger(log *logrus.Logger) *Builder {
	b.logger = log
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client whose session
// is still bootstrapping. Call [Client.Bootstrap] next.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := newClient(cfg, b.transport, b.auditSink, b.logger)
	if err != nil {
		return nil, err
	}

	b.built = true
	return c, nil
}
