package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/council-registers/internal/types"
)

// Fetch outcomes used as the "outcome" label on the fetch counter.
const (
	FetchOK    = "ok"
	FetchError = "error"
)

// Metrics holds the run counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Councillors *prometheus.CounterVec
	Registers   prometheus.Counter
	Audits      *prometheus.CounterVec
	Fetches     *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

// NewMetrics registers the run counters on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Councillors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "register_scraper",
			Name:      "councillors_total",
			Help:      "Councillors handled by the pipeline, by result.",
		}, []string{"result"}),
		Registers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "register_scraper",
			Name:      "registers_stored_total",
			Help:      "Register documents matched and stored.",
		}),
		Audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "register_scraper",
			Name:      "audits_total",
			Help:      "Audit rows written, by issue type.",
		}, []string{"issue_type"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "register_scraper",
			Name:      "fetches_total",
			Help:      "Candidate document fetches, by outcome.",
		}, []string{"outcome"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "register_scraper",
			Name:      "store_errors_total",
			Help:      "Councillor outcomes that could not be committed.",
		}),
	}
	m.registry.MustRegister(m.Councillors, m.Registers, m.Audits, m.Fetches, m.StoreErrors)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome counts a committed councillor outcome.
func (m *Metrics) ObserveOutcome(o *types.Outcome) {
	if m == nil || o == nil {
		return
	}
	for _, a := range o.Audits {
		m.Audits.WithLabelValues(string(a.IssueType)).Inc()
	}
	switch {
	case o.Register != nil:
		m.Registers.Inc()
		m.Councillors.WithLabelValues("matched").Inc()
	case o.AlreadyStored:
		m.Councillors.WithLabelValues("already_stored").Inc()
	default:
		m.Councillors.WithLabelValues("missing").Inc()
	}
}

// ObserveSkipped counts a councillor skipped because it already had a register.
func (m *Metrics) ObserveSkipped() {
	if m == nil {
		return
	}
	m.Councillors.WithLabelValues("skipped").Inc()
}

// ObserveFetch counts one candidate fetch.
func (m *Metrics) ObserveFetch(err error) {
	if m == nil {
		return
	}
	outcome := FetchOK
	if err != nil {
		outcome = FetchError
	}
	m.Fetches.WithLabelValues(outcome).Inc()
}

// ObserveStoreError counts an outcome that could not be committed.
func (m *Metrics) ObserveStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
