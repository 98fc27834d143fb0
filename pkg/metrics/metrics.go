// Package metrics bundles Prometheus instrumentation for the tracking
// pipeline. The Collector implements tracker.Observer so it can be wired in
// as a plain subscriber.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swathtrack/pkg/field"
	"swathtrack/pkg/filter"
	"swathtrack/pkg/model"
	"swathtrack/pkg/tracker"
)

// Collector bundles the tracking metrics and exposes them over HTTP.
type Collector struct {
	gatherer prometheus.Gatherer

	FixesAccepted     prometheus.Counter
	FixesRejected     *prometheus.CounterVec
	FilterFailOpens   prometheus.Counter
	SessionsCompleted prometheus.Counter
	CrossingsDetected prometheus.Counter
	SessionDistanceM  prometheus.Gauge
}

// NewCollector registers the tracking metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		FixesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swathtrack_fixes_accepted_total",
			Help: "Total GPS fixes accepted by the outlier filter.",
		}),
		FixesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swathtrack_fixes_rejected_total",
			Help: "Total GPS fixes rejected by the outlier filter, labeled by reason.",
		}, []string{"reason"}),
		FilterFailOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swathtrack_filter_fail_opens_total",
			Help: "Times the outlier filter accepted after a bounded rejection run.",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swathtrack_sessions_completed_total",
			Help: "Total tracking sessions closed by stop or field crossing.",
		}),
		CrossingsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swathtrack_field_crossings_total",
			Help: "Total field-boundary crossings detected (before confirmation).",
		}),
		SessionDistanceM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swathtrack_session_distance_meters",
			Help: "Accumulated distance of the active session in meters.",
		}),
	}

	collectors := []prometheus.Collector{
		c.FixesAccepted, c.FixesRejected, c.FilterFailOpens,
		c.SessionsCompleted, c.CrossingsDetected, c.SessionDistanceM,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}

	return c, nil
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// OnFixEvaluated implements tracker.Observer.
func (c *Collector) OnFixEvaluated(res filter.Result) {
	if res.Accepted {
		c.FixesAccepted.Inc()
		if res.FailOpen {
			c.FilterFailOpens.Inc()
		}
		return
	}
	c.FixesRejected.WithLabelValues(string(res.Reason)).Inc()
}

// OnPathUpdated implements tracker.Observer.
func (c *Collector) OnPathUpdated(snap tracker.Snapshot) {
	c.SessionDistanceM.Set(snap.TotalDistanceM)
}

// OnCrossingDetected implements tracker.Observer.
func (c *Collector) OnCrossingDetected(field.PendingCrossing) {
	c.CrossingsDetected.Inc()
}

// OnSessionClosed implements tracker.Observer.
func (c *Collector) OnSessionClosed(*model.Session) {
	c.SessionsCompleted.Inc()
	c.SessionDistanceM.Set(0)
}
