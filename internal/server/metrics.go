package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the service registry. It satisfies dispatch.Metrics and
// relayer.Metrics so both record into the same /metrics endpoint.
type Metrics struct {
	registry      *prometheus.Registry
	dispatchTotal *prometheus.CounterVec
	relayTotal    *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec
	deadLetters   prometheus.Gauge
	watched       prometheus.GaugeFunc
}

func NewMetrics() *Metrics {
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commitvault_dispatch_total",
		Help: "Privileged dispatch requests by target, operation and outcome",
	}, []string{"target", "operation", "outcome"})

	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commitvault_relay_checks_total",
		Help: "Relayer vault checks by action and outcome",
	}, []string{"action", "outcome"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commitvault_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"route", "status"})

	dead := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "commitvault_dead_letters",
		Help: "Number of failed finalizing calls awaiting an operator",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(dispatched, relayed, requests, dead)

	return &Metrics{
		registry:      r,
		dispatchTotal: dispatched,
		relayTotal:    relayed,
		requestsTotal: requests,
		deadLetters:   dead,
	}
}

// WatchGauge exports fn as the number of vaults the relayer is watching.
func (m *Metrics) WatchGauge(fn func() int) {
	m.watched = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "commitvault_relay_watched_vaults",
		Help: "Vaults in the relayer sweep set",
	}, func() float64 { return float64(fn()) })
	m.registry.MustRegister(m.watched)
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDispatch(target, operation, outcome string) {
	m.dispatchTotal.WithLabelValues(target, operation, outcome).Inc()
}

func (m *Metrics) ObserveRelay(action, outcome string) {
	m.relayTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) observeRequest(route, status string) {
	m.requestsTotal.WithLabelValues(route, status).Inc()
}

func (m *Metrics) setDeadLetters(depth int) {
	m.deadLetters.Set(float64(depth))
}
