package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is a per-server registry so tests can build many servers.
type metrics struct {
	reg      *prometheus.Registry
	guesses  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	rides    prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busdle_guesses_total",
			Help: "Accepted busdle guesses by outcome.",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busdle_guesses_rejected_total",
			Help: "Rejected busdle guesses by reason.",
		}, []string{"reason"}),
		rides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busdle_rides_logged_total",
			Help: "Rides added to the log.",
		}),
	}
	m.reg.MustRegister(
		m.guesses, m.rejected, m.rides,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
