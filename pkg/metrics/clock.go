package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
)

// ClockMetrics exports clock loop events to Prometheus.
type ClockMetrics struct {
	registry *prometheus.Registry

	Fetches     *prometheus.CounterVec
	Ticks       *prometheus.CounterVec
	Deliveries  *prometheus.CounterVec
	LastSeenDay prometheus.Gauge
}

var _ marsclock.Observer = (*ClockMetrics)(nil)

// NewClockMetrics registers every collector on a private registry.
func NewClockMetrics() *ClockMetrics {
	m := &ClockMetrics{
		registry: prometheus.NewRegistry(),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marsclock_fetch_total",
				Help: "Mars API fetches by result",
			},
			[]string{"result"},
		),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marsclock_ticks_total",
				Help: "Daily loop iterations by outcome",
			},
			[]string{"outcome"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marsclock_deliveries_total",
				Help: "Payload deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
		LastSeenDay: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marsclock_last_seen_day",
				Help: "Day field of the most recent baseline or transition",
			},
		),
	}
	m.registry.MustRegister(
		m.Fetches,
		m.Ticks,
		m.Deliveries,
		m.LastSeenDay,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *ClockMetrics) FetchCompleted(ok bool) {
	m.Fetches.WithLabelValues(result(ok)).Inc()
}

func (m *ClockMetrics) TickCompleted(outcome marsclock.TickOutcome) {
	m.Ticks.WithLabelValues(string(outcome)).Inc()
}

func (m *ClockMetrics) Delivered(channel string, ok bool) {
	m.Deliveries.WithLabelValues(channel, result(ok)).Inc()
}

func (m *ClockMetrics) DaySeen(day int) {
	m.LastSeenDay.Set(float64(day))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ClockMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
