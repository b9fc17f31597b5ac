package gate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/eventgate/token"
)

// Metrics holds the gate's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	decisions     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	buildInfo     *prometheus.GaugeVec
}

// NewMetrics creates the gate collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, version string) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventgate_decisions_total",
				Help: "Gate decisions by disposition and deciding rule",
			},
			[]string{"disposition", "source"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventgate_verify_total",
				Help: "Token verifications by candidate source and result",
			},
			[]string{"source", "result"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventgate_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.verifications, m.buildInfo} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering gate metrics: %w", err)
		}
	}

	for _, src := range []Source{SourceQuery, SourceCookie} {
		for _, r := range token.Reasons {
			m.verifications.WithLabelValues(string(src), string(r))
		}
	}
	m.buildInfo.WithLabelValues(version).Set(1)
	return m, nil
}

func (m *Metrics) observe(d Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(d.Disposition.String(), string(d.Source)).Inc()
	if d.QueryReason != "" {
		m.verifications.WithLabelValues(string(SourceQuery), string(d.QueryReason)).Inc()
	}
	if d.CookieReason != "" {
		m.verifications.WithLabelValues(string(SourceCookie), string(d.CookieReason)).Inc()
	}
}
