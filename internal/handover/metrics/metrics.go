package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the handover module.
type Metrics struct {
	// Tokens issued by trigger ("scan", "self_service")
	TokensIssued *prometheus.CounterVec

	// Link attempts by outcome ("success", "conflict", "validation", "error")
	LinkOutcome *prometheus.CounterVec

	// Full eligibility scan duration
	ScanLatency prometheus.Histogram

	// Magic-link deliveries by result ("sent", "failed", "skipped")
	Deliveries *prometheus.CounterVec
}

// New creates a Metrics instance with all handover metrics registered.
func New() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gradlink_handover_tokens_issued_total",
			Help: "Total handover tokens minted by trigger",
		}, []string{"trigger"}),

		LinkOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gradlink_handover_link_outcomes_total",
			Help: "Total handover link attempts by outcome",
		}, []string{"outcome"}),

		ScanLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradlink_handover_scan_duration_seconds",
			Help:    "Duration of a full eligibility scan including delivery",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),

		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gradlink_handover_deliveries_total",
			Help: "Total magic-link delivery attempts by result",
		}, []string{"result"}),
	}
}

// IncrementTokensIssued records a minted token.
func (m *Metrics) IncrementTokensIssued(trigger string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(trigger).Inc()
	}
}

// IncrementLinkOutcome records the result of a link attempt.
func (m *Metrics) IncrementLinkOutcome(outcome string) {
	if m != nil {
		m.LinkOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveScanLatency records the duration of an eligibility scan.
func (m *Metrics) ObserveScanLatency(d time.Duration) {
	if m != nil {
		m.ScanLatency.Observe(d.Seconds())
	}
}

// IncrementDelivery records a delivery attempt result.
func (m *Metrics) IncrementDelivery(result string) {
	if m != nil {
		m.Deliveries.WithLabelValues(result).Inc()
	}
}
