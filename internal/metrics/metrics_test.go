package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservePosting(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObservePosting("사용", "ok")
	m.ObservePosting("사용", "ok")
	m.ObservePosting("사용", "insufficient_funds")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Postings.WithLabelValues("사용", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Postings.WithLabelValues("사용", "insufficient_funds")))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("GET", "GET /api/questions", "200", 0.01)
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "GET /api/questions", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePosting("적립", "ok")
	m.ObserveRequest("GET", "/", "200", 0)
}
