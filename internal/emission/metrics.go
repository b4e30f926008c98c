package emission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa os contadores do pipeline de emissão
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics cria os coletores e os registra em reg. Com reg nil, os coletores
// funcionam normalmente mas não são expostos.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfse",
			Name:      "emission_operations_total",
			Help:      "Operações do pipeline de emissão por resultado.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nfse",
			Name:      "provider_request_duration_seconds",
			Help:      "Duração das chamadas aos provedores de emissão.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) record(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) observe(provider, operation string, started time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}
