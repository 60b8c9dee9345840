package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus instruments
type Metrics struct {
	SessionsCreated prometheus.Counter
	ClaimsExtracted prometheus.Counter
	Verifications   *prometheus.CounterVec
	WSConnections   prometheus.Gauge
	ExtractSeconds  prometheus.Histogram
}

// NewMetrics registers the instruments on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "veristream_sessions_created_total",
			Help: "Verification sessions created.",
		}),
		ClaimsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "veristream_claims_extracted_total",
			Help: "Claims extracted across all sessions.",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veristream_verifications_total",
			Help: "Finished claim verifications by verdict.",
		}, []string{"status"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veristream_websocket_connections",
			Help: "Currently attached WebSocket clients.",
		}),
		ExtractSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veristream_extraction_duration_seconds",
			Help:    "Wall time of extraction sprints.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
