package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rryowa/blog_admin/internal/models"
)

const namespace = "blog_admin"

const (
	OperationVerify  = "verify"
	OperationRefresh = "refresh"

	AlertDelivered = "delivered"
	AlertFailed    = "failed"
	AlertSkipped   = "skipped"
)

// Metrics counts protocol outcomes and security alerts. A nil *Metrics is valid and records nothing.
type Metrics struct {
	outcomes    *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	rateLimited prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_outcomes_total",
			Help:      "Session verify/refresh results by operation and outcome type.",
		}, []string{"operation", "outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_alerts_total",
			Help:      "Ownership-anomaly alerts by delivery result.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Session requests rejected by the attempt limiter.",
		}),
	}
	reg.MustRegister(m.outcomes, m.alerts, m.rateLimited)
	return m
}

func (m *Metrics) ObserveOutcome(operation string, o models.Outcome) {
	if m == nil || o == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, o.Typename()).Inc()
}

func (m *Metrics) ObserveAlert(result string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
