package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swathtrack/pkg/field"
	"swathtrack/pkg/filter"
	"swathtrack/pkg/model"
	"swathtrack/pkg/tracker"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.OnFixEvaluated(filter.Result{Accepted: true})
	c.OnFixEvaluated(filter.Result{Accepted: true, FailOpen: true})
	c.OnFixEvaluated(filter.Result{Accepted: false, Reason: filter.ReasonAccuracy})
	c.OnFixEvaluated(filter.Result{Accepted: false, Reason: filter.ReasonSpeed})
	c.OnFixEvaluated(filter.Result{Accepted: false, Reason: filter.ReasonSpeed})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FixesAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FilterFailOpens))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FixesRejected.WithLabelValues("accuracy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.FixesRejected.WithLabelValues("speed")))
}

func TestCollectorTracksSessionLifecycle(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.OnPathUpdated(tracker.Snapshot{TotalDistanceM: 1234})
	assert.Equal(t, 1234.0, testutil.ToFloat64(c.SessionDistanceM))

	c.OnCrossingDetected(field.PendingCrossing{})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CrossingsDetected))

	c.OnSessionClosed(&model.Session{})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsCompleted))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.SessionDistanceM))
}

func TestCollectorDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewCollector(reg)
	require.NoError(t, err)

	// Registering the same metric names again is tolerated.
	_, err = NewCollector(reg)
	assert.NoError(t, err)
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.OnFixEvaluated(filter.Result{Accepted: true})

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rr.Code)
	assert.Contains(t, rr.Body.String(), "swathtrack_fixes_accepted_total 1")
}
