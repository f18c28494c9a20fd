package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *goSession.Client
// implements it.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	Gauges() goSession.Gauges
	AuditDropped() uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source Source
}

// NewPrometheusExporter creates an exporter reading from client.
func NewPrometheusExporter(client *goSession.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource creates an exporter from any Source.
func NewPrometheusExporterFromSource(source Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP. It answers 204 while metrics are disabled.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := p.Render()
		w.Header().Set("Cache-Control", "no-store")
		if body == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
}

// Render returns the current metrics. It returns "" while metrics are disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}
	gauges := p.source.Gauges()

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		header(&b, def.Name, def.Help, "counter")
		sample(&b, def.Name, "", strconv.FormatUint(snap.Counters[def.ID], 10))
	}
	header(&b, "gosession_audit_dropped_total", "Audit events dropped on a full dispatcher queue.", "counter")
	sample(&b, "gosession_audit_dropped_total", "", strconv.FormatUint(dropped, 10))

	for _, def := range internaldefs.GaugeDefs {
		header(&b, def.Name, def.Help, "gauge")
		sample(&b, def.Name, "", strconv.FormatInt(def.Value(gauges), 10))
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		header(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			sample(&b, def.Name+"_bucket", `le="`+le+`"`, strconv.FormatUint(buckets[i], 10))
		}
		sample(&b, def.Name+"_count", "", strconv.FormatUint(buckets[len(buckets)-1], 10))
		// Bucketed counters keep no sum.
		sample(&b, def.Name+"_sum", "", "0")
	}

	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func sample(b *strings.Builder, name, labels, value string) {
	b.WriteString(name)
	if labels != "" {
		b.WriteString("{" + labels + "}")
	}
	b.WriteString(" " + value + "\n")
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
