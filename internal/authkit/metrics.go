package authkit

import (
	"maps"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Guard and login events recorded through MetricsRecorder.
const (
	MetricGuardAllowLocal          = "guard.allow.local"
	MetricGuardAllowUpstream       = "guard.allow.upstream"
	MetricGuardAllowRefreshed      = "guard.allow.refreshed"
	MetricGuardDenyMissing         = "guard.deny.missing_credential"
	MetricGuardDenyRole            = "guard.deny.unauthorized_role"
	MetricGuardDenyExhausted       = "guard.deny.exhausted"
	MetricGuardValidateFailed      = "guard.upstream_validate.failed"
	MetricGuardRefreshFailed       = "guard.upstream_refresh.failed"
	MetricLoginSuccess             = "login.success"
	MetricLoginForbidden           = "login.forbidden"
	MetricLoginUpstreamRejected    = "login.upstream_rejected"
	MetricLoginUpstreamUnavailable = "login.upstream_unavailable"
)

var knownMetricEvents = []string{
	MetricGuardAllowLocal, MetricGuardAllowUpstream, MetricGuardAllowRefreshed,
	MetricGuardDenyMissing, MetricGuardDenyRole, MetricGuardDenyExhausted,
	MetricGuardValidateFailed, MetricGuardRefreshFailed,
	MetricLoginSuccess, MetricLoginForbidden, MetricLoginUpstreamRejected, MetricLoginUpstreamUnavailable,
}

// MetricsRecorder counts guard and login events.
type MetricsRecorder interface {
	Increment(event string)
}

type noopMetrics struct{}

func (noopMetrics) Increment(string) {}

// CounterMetrics keeps counts in memory. Tests read them back through Count and Snapshot.
type CounterMetrics struct {
	mutex  sync.RWMutex
	counts map[string]int64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: map[string]int64{}}
}

func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	recorder.counts[event]++
	recorder.mutex.Unlock()
}

func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.RLock()
	defer recorder.mutex.RUnlock()
	return recorder.counts[event]
}

func (recorder *CounterMetrics) Snapshot() map[string]int64 {
	recorder.mutex.RLock()
	defer recorder.mutex.RUnlock()
	return maps.Clone(recorder.counts)
}

// PrometheusMetrics exports events as timebank_admin_auth_events_total{event}.
type PrometheusMetrics struct {
	events *prometheus.CounterVec
}

// NewPrometheusMetrics registers the counter and seeds every known event at zero.
func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timebank_admin",
			Name:      "auth_events_total",
			Help:      "Session guard and login outcomes.",
		},
		[]string{"event"},
	)
	if err := registerer.Register(events); err != nil {
		return nil, err
	}
	for _, event := range knownMetricEvents {
		events.WithLabelValues(event)
	}
	return &PrometheusMetrics{events: events}, nil
}

func (recorder *PrometheusMetrics) Increment(event string) {
	recorder.events.WithLabelValues(event).Inc()
}
