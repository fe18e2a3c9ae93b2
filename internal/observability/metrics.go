package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	MessageEvents       *prometheus.CounterVec
	ConversationsClosed *prometheus.CounterVec
	ActiveConversations prometheus.Gauge
	SessionScore        prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessageEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_events_total",
			Help:      "Processed message events by outcome.",
		}, []string{"outcome"}),
		ConversationsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_closed_total",
			Help:      "Closed conversations by close reason.",
		}, []string{"reason"}),
		ActiveConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of currently open conversations.",
		}),
		SessionScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_score",
			Help:      "Final score of closed conversations.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
	}
}

// All observe helpers are nil-receiver safe so wiring metrics stays
// optional in tests.

func (m *Metrics) ObserveMessageEvent(outcome string) {
	if m == nil {
		return
	}
	m.MessageEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConversationClosed(reason string, score float64) {
	if m == nil {
		return
	}
	m.ConversationsClosed.WithLabelValues(reason).Inc()
	m.SessionScore.Observe(score)
}

func (m *Metrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.ActiveConversations.Set(float64(n))
}

func (m *Metrics) IncActiveConversations() {
	if m == nil {
		return
	}
	m.ActiveConversations.Inc()
}

func (m *Metrics) DecActiveConversations() {
	if m == nil {
		return
	}
	m.ActiveConversations.Dec()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
