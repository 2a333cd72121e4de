package service

import "github.com/prometheus/client_golang/prometheus"

// Ingestion outcomes.
const (
	outcomeCreated   = "created"
	outcomeRestored  = "restored"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Metrics are the document pipeline counters.
type Metrics struct {
	ingestions    *prometheus.CounterVec
	ingestedBytes prometheus.Counter
	hardDeletes   *prometheus.CounterVec
}

// NewMetrics builds the counters and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_ingestions_total",
			Help: "Number of document uploads by outcome.",
		}, []string{"outcome"}),
		ingestedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "document_ingested_bytes_total",
			Help: "Bytes of uploads that produced a new document.",
		}),
		hardDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_hard_deletes_total",
			Help: "Number of hard deletions by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.ingestions, m.ingestedBytes, m.hardDeletes)
	}
	return m
}

func (m *Metrics) ingestion(outcome string) {
	m.ingestions.WithLabelValues(outcome).Inc()
}
