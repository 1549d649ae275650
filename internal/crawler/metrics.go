package crawler

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns the Prometheus collectors for the crawl pipeline. A nil
// *Metrics is valid and records nothing, so tests and minimal runs can skip
// registration entirely.
type Metrics struct {
	domainsProcessed prometheus.Counter
	filesFound       prometheus.Counter
	domainErrors     prometheus.Counter
	decodeErrors     prometheus.Counter
	sinkErrors       prometheus.Counter
	fetchOutcomes    *prometheus.CounterVec
}

// NewMetrics registers the crawl collectors against the provided registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		domainsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adstxt_domains_processed_total",
			Help: "Domains whose resolution finished, regardless of outcome.",
		}),
		filesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adstxt_files_found_total",
			Help: "Domains that published a retrievable ads.txt file.",
		}),
		domainErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adstxt_domain_errors_total",
			Help: "Per-domain fetch errors that were logged and skipped.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adstxt_decode_errors_total",
			Help: "Responses dropped because the body was not valid UTF-8.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adstxt_sink_errors_total",
			Help: "Failures while persisting a discovered file.",
		}),
		fetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adstxt_fetch_outcomes_total",
			Help: "Fetch completions partitioned by attempt stage and outcome.",
		}, []string{"stage", "outcome"}),
	}
	for _, collector := range []prometheus.Collector{
		m.domainsProcessed,
		m.filesFound,
		m.domainErrors,
		m.decodeErrors,
		m.sinkErrors,
		m.fetchOutcomes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawl collector: %w", err)
		}
	}
	return m, nil
}

// ObserveFetch records one classified fetch at the given stage ("http" for the
// first attempt, "fallback" for the redirect hop or https retry).
func (m *Metrics) ObserveFetch(stage string, out Outcome, err error) {
	if m == nil {
		return
	}
	label := "error"
	if err == nil {
		switch out.Kind {
		case OutcomeSuccess:
			label = "success"
		case OutcomeRedirect:
			label = "redirect"
		case OutcomeNotFound:
			label = "not_found"
		}
	}
	m.fetchOutcomes.WithLabelValues(stage, label).Inc()
}

// ObserveResult records a domain's terminal state.
func (m *Metrics) ObserveResult(res Result) {
	if m == nil {
		return
	}
	m.domainsProcessed.Inc()
	switch res.Status {
	case StatusFound:
		m.filesFound.Inc()
	case StatusFailed:
		m.domainErrors.Inc()
	}
}

// ObserveDecodeError counts a swallowed body-decode failure.
func (m *Metrics) ObserveDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// ObserveSinkError counts a swallowed persistence failure.
func (m *Metrics) ObserveSinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}
