// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for a harvest run. A batch
// run has no scrape endpoint, so collectors live on a private registry that
// is written to a node_exporter textfile at the end of the run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeResolved   = "resolved"
	OutcomeFailed     = "failed"
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
)

// Metrics holds all Prometheus metrics for a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesParsed       prometheus.Counter
	DescriptorsExtracted *prometheus.CounterVec
	Resolutions          *prometheus.CounterVec
	ScrapeDuration       prometheus.Histogram
	Downloads            *prometheus.CounterVec
	DownloadBytes        prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ArticlesParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pmc_harvest_articles_parsed_total",
			Help: "The total number of article markup files parsed.",
		}),
		DescriptorsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pmc_harvest_descriptors_extracted_total",
			Help: "The total number of media descriptors extracted.",
		}, []string{"kind"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pmc_harvest_resolutions_total",
			Help: "The total number of URL resolutions by policy and outcome.",
		}, []string{"policy", "outcome"}),
		ScrapeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmc_harvest_scrape_duration_seconds",
			Help:    "Duration of figure page fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pmc_harvest_downloads_total",
			Help: "The total number of media downloads by outcome.",
		}, []string{"outcome"}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "pmc_harvest_download_bytes_total",
			Help: "The total number of media bytes written.",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) IncArticlesParsed() {
	if m == nil {
		return
	}
	m.ArticlesParsed.Inc()
}

func (m *Metrics) AddDescriptors(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DescriptorsExtracted.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncResolution(policy, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) ObserveScrape(d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeDuration.Observe(d.Seconds())
}

func (m *Metrics) IncDownload(outcome string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddDownloadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DownloadBytes.Add(float64(n))
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, atomically, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
