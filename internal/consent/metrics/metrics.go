package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	AgreementUpdates    *prometheus.CounterVec
	ImplicitRejected    prometheus.Counter
	QueueFlushed        prometheus.Counter
	ActionsFlushed      prometheus.Counter
	FallbackActivations prometheus.Counter
	ClearsTotal         prometheus.Counter
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		AgreementUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_agreement_updates_total",
			Help: "Total number of persisted agreement updates, labeled by type",
		}, []string{"type"}),
		ImplicitRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_implicit_updates_rejected_total",
			Help: "Total number of implicit updates dropped because a deny or explicit record already existed",
		}),
		QueueFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_queue_flushes_total",
			Help: "Total number of non-empty action queue flushes",
		}),
		ActionsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_actions_flushed_total",
			Help: "Total number of deferred actions invoked by queue flushes",
		}),
		FallbackActivations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_storage_fallback_activations_total",
			Help: "Total number of stores that probed durable storage as unusable and fell back",
		}),
		ClearsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_clears_total",
			Help: "Total number of clear operations removing the stored agreement",
		}),
	}
}

func (m *Metrics) IncrementAgreementUpdates(agreementType string) {
	m.AgreementUpdates.WithLabelValues(agreementType).Inc()
}

func (m *Metrics) IncrementImplicitRejected() {
	m.ImplicitRejected.Inc()
}

// ObserveQueueFlush records one flush that invoked count actions.
func (m *Metrics) ObserveQueueFlush(count int) {
	m.QueueFlushed.Inc()
	m.ActionsFlushed.Add(float64(count))
}

func (m *Metrics) IncrementFallbackActivations() {
	m.FallbackActivations.Inc()
}

func (m *Metrics) IncrementClears() {
	m.ClearsTotal.Inc()
}
