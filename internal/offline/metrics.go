package offline

import "github.com/prometheus/client_golang/prometheus"

// Metrics — счётчики решений офлайн-слоя.
type Metrics struct {
	requests *prometheus.CounterVec
	writes   *prometheus.CounterVec
}

// NewMetrics регистрирует счётчики в reg. nil reg — счётчики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ai_news",
			Subsystem: "offline",
			Name:      "requests_total",
			Help:      "Requests handled by the offline cache layer by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ai_news",
			Subsystem: "offline",
			Name:      "cache_writes_total",
			Help:      "Background cache writes by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.writes)
	}
	return m
}

func (m *Metrics) request(strategy, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) write(result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(result).Inc()
}
