// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncArticlesParsed()
	m.IncArticlesParsed()
	m.AddDescriptors("image", 3)
	m.AddDescriptors("video", 1)
	m.IncResolution("scrape", OutcomeFailed)
	m.IncDownload(OutcomeDownloaded)
	m.AddDownloadBytes(512)
	m.ObserveScrape(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArticlesParsed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DescriptorsExtracted.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DescriptorsExtracted.WithLabelValues("video")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("scrape", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues(OutcomeDownloaded)))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.DownloadBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncArticlesParsed()
	m.AddDescriptors("image", 1)
	m.IncResolution("template", OutcomeResolved)
	m.ObserveScrape(time.Second)
	m.IncDownload(OutcomeSkipped)
	m.AddDownloadBytes(1)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.NotNil(t, m.Registry())
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncDownload(OutcomeSkipped)

	path := filepath.Join(t.TempDir(), "pmc_harvest.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pmc_harvest_downloads_total{outcome="skipped"} 1`)
}
