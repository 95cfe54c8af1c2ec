package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide prometheus surface. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PredictionLatency *prometheus.HistogramVec
	Fallbacks         prometheus.Counter
	HealthVerdict     *prometheus.GaugeVec
	Deployments       *prometheus.CounterVec
	JobRuns           *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
}

// New registers every collector on reg. Tests pass a fresh registry so
// repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PredictionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agriloan_prediction_duration_seconds",
			Help:    "Duration of model scoring calls by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"outcome"}), // outcome: "ok", "error"

		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "agriloan_prediction_fallbacks_total",
			Help: "Submissions scored by the fallback policy",
		}),

		HealthVerdict: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agriloan_model_health",
			Help: "1 for the verdict of the latest health check, 0 otherwise",
		}, []string{"status"}),

		Deployments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agriloan_model_deployments_total",
			Help: "Deploy and rollback attempts by result",
		}, []string{"op", "result"}),

		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agriloan_scheduler_runs_total",
			Help: "Background job runs by job and result",
		}, []string{"job", "result"}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agriloan_application_transitions_total",
			Help: "Accepted loan application transitions by target status",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObservePrediction(d time.Duration, ok bool) {
	if m != nil {
		m.PredictionLatency.WithLabelValues(outcome(ok)).Observe(d.Seconds())
	}
}

func (m *Metrics) IncFallback() {
	if m != nil {
		m.Fallbacks.Inc()
	}
}

// SetHealth marks status as the current verdict and clears the others.
func (m *Metrics) SetHealth(status string) {
	if m == nil {
		return
	}
	for _, s := range []string{"healthy", "degraded", "unhealthy"} {
		v := 0.0
		if s == status {
			v = 1
		}
		m.HealthVerdict.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) IncDeployment(op string, ok bool) {
	if m != nil {
		m.Deployments.WithLabelValues(op, outcome(ok)).Inc()
	}
}

func (m *Metrics) IncJobRun(job string, ok bool) {
	if m != nil {
		m.JobRuns.WithLabelValues(job, outcome(ok)).Inc()
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
