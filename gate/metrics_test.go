package gate

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/eventgate/internal/logging"
)

func TestMetricsCountDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "test")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Secret = testSecret
	e, err := New(cfg,
		WithClock(func() time.Time { return testNow }),
		WithLogger(logging.Discard()),
		WithMetrics(m),
	)
	require.NoError(t, err)
	raw := mint(t, time.Hour)

	serve(e, request("/?t="+raw, ""))
	serve(e, request("/", raw))
	serve(e, request("/", raw))
	serve(e, request("/?t=junk", ""))

	assert.InDelta(t, 1, testutil.ToFloat64(m.decisions.WithLabelValues("allow_issue_cookie", "query")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.decisions.WithLabelValues("allow", "cookie")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.decisions.WithLabelValues("deny", "none")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.verifications.WithLabelValues("query", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.verifications.WithLabelValues("query", "malformed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.verifications.WithLabelValues("cookie", "ok")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.verifications.WithLabelValues("cookie", "expired")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.buildInfo.WithLabelValues("test")), 0)
}

func TestMetricsDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "a")
	require.NoError(t, err)
	_, err = NewMetrics(reg, "b")
	assert.Error(t, err)
}

func TestNilMetricsObserve(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe(Decision{}) })
}
