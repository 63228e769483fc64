package metricsadapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Prometheus struct {
	events            *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	signatureFailures prometheus.Counter
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	factory := promauto.With(registerer)
	return &Prometheus{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "adreel",
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Processor notifications by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "adreel",
				Subsystem: "webhook",
				Name:      "reconcile_duration_seconds",
				Help:      "Time spent reconciling one notification",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		signatureFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "adreel",
				Subsystem: "webhook",
				Name:      "signature_failures_total",
				Help:      "Deliveries rejected for an invalid signature",
			},
		),
	}
}

func (p *Prometheus) ObserveEvent(kind string, outcome string, elapsed time.Duration) {
	p.events.WithLabelValues(kind, outcome).Inc()
	p.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (p *Prometheus) SignatureFailure() {
	p.signatureFailures.Inc()
}
