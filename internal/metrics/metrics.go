// Package metrics bundles the Prometheus collectors for a scraper run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics registers all collectors on a dedicated registry so the service
// surface can expose exactly this process's series.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched   *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	FetchErrors    *prometheus.CounterVec
	ItemsExtracted *prometheus.CounterVec
	Duplicates     prometheus.Counter
	Diagnostics    *prometheus.CounterVec
}

// New constructs and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Listing pages fetched, by supplier.",
		},
		[]string{"supplier"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Latency of page fetches including paging actions.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_errors_total",
			Help: "Terminal fetch failures, by supplier.",
		},
		[]string{"supplier"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_extracted_total",
			Help: "Products admitted to the output set, by completeness.",
		},
		[]string{"completeness"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_duplicate_total",
			Help: "Products dropped by the identity index.",
		},
	)
	diagnostics := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_diagnostics_total",
			Help: "Diagnostics recorded, by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(pages, fetchDuration, fetchErrors, items, duplicates, diagnostics)

	return &Metrics{
		Registry:       registry,
		PagesFetched:   pages,
		FetchDuration:  fetchDuration,
		FetchErrors:    fetchErrors,
		ItemsExtracted: items,
		Duplicates:     duplicates,
		Diagnostics:    diagnostics,
	}
}

// IncPage counts one fetched listing page.
func (m *Metrics) IncPage(supplier string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(supplier).Inc()
}

// ObserveFetch records the latency of one fetch step.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFetchError counts one terminal fetch failure.
func (m *Metrics) IncFetchError(supplier string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(supplier).Inc()
}

// IncItem counts one admitted product.
func (m *Metrics) IncItem(completeness string) {
	if m == nil {
		return
	}
	m.ItemsExtracted.WithLabelValues(completeness).Inc()
}

// IncDuplicate counts one identity-index drop.
func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.Duplicates.Inc()
}

// IncDiagnostic counts one recorded diagnostic.
func (m *Metrics) IncDiagnostic(reason string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(reason).Inc()
}
