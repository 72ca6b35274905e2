// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest wires the pipeline stages together: archive fetch,
// volume walk, URL resolution, sidecar persistence, and media download.
package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/archive"
	"github.com/pdiddy/pmc-harvest/internal/download"
	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/internal/resolve"
	"github.com/pdiddy/pmc-harvest/internal/sidecar"
	"github.com/pdiddy/pmc-harvest/internal/volume"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// FiguresDir returns where media assets are stored.
func FiguresDir(cfg types.PipelineConfig) string {
	if cfg.Download.FiguresDir != "" {
		return cfg.Download.FiguresDir
	}
	return filepath.Join(cfg.Archive.ExtractionDir, "figures")
}

// CatalogPath returns the caption catalog database file.
func CatalogPath(cfg types.PipelineConfig) string {
	if cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return filepath.Join(cfg.Archive.ExtractionDir, "catalog.db")
}

// SidecarPath returns the descriptor file for the configured volumes.
func SidecarPath(cfg types.PipelineConfig) string {
	return sidecar.Path(cfg.Archive.ExtractionDir, cfg.Volumes)
}

// SummaryPath returns the end-of-run report location.
func SummaryPath(cfg types.PipelineConfig) string {
	return filepath.Join(cfg.Archive.ExtractionDir, SummaryFile)
}

// Pipeline runs the harvest stages against one configuration.
type Pipeline struct {
	cfg     types.PipelineConfig
	client  *http.Client
	dl      *download.Downloader
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a pipeline. client is shared by every stage.
func New(cfg types.PipelineConfig, client *http.Client, log *zap.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		client:  client,
		dl:      download.New(client, cfg.HTTP, cfg.Download.Workers, log.Named("download"), m),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Fetch prepares the extraction directory and downloads and unpacks every
// configured volume.
func (p *Pipeline) Fetch(ctx context.Context) error {
	if err := archive.PrepareDir(p.cfg.Archive.ExtractionDir, p.cfg.Archive.OnConflict, p.log); err != nil {
		return err
	}
	f := archive.NewFetcher(p.dl, p.cfg.Archive, p.log.Named("archive"))
	return f.FetchAll(ctx, p.cfg.Volumes)
}

// ParseResult is the outcome of the parse stage.
type ParseResult struct {
	Sidecar     string
	Reused      bool
	Descriptors []types.MediaDescriptor
	Resolution  resolve.Report
}

// Parse returns the resolved descriptors of the configured volumes. An
// existing sidecar is read verbatim; otherwise the volumes are walked,
// every descriptor is resolved, and the sidecar is written once.
func (p *Pipeline) Parse(ctx context.Context) (ParseResult, error) {
	path := SidecarPath(p.cfg)
	if sidecar.Exists(path) {
		descs, err := sidecar.Read(path)
		if err != nil {
			return ParseResult{}, err
		}
		p.log.Info("reusing sidecar", zap.String("path", path), zap.Int("descriptors", len(descs)))
		return ParseResult{Sidecar: path, Reused: true, Descriptors: descs}, nil
	}

	walker := volume.NewWalker(p.cfg.Archive.ExtractionDir, p.cfg.Archive.Baseline, p.log.Named("volume"), p.metrics)
	descs, err := walker.Walk(ctx, p.cfg.Volumes)
	if err != nil {
		return ParseResult{}, err
	}

	r, err := resolve.New(p.cfg.Resolver, p.cfg.HTTP, p.client, p.log.Named("resolve"), p.metrics)
	if err != nil {
		return ParseResult{}, err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	report, err := resolve.All(ctx, r, descs, resolve.Options{
		Workers: p.cfg.Resolver.Workers,
		Log:     p.log.Named("resolve"),
		Metrics: p.metrics,
	})
	if err != nil {
		return ParseResult{}, err
	}

	if err := sidecar.Write(path, report.Descriptors); err != nil {
		return ParseResult{}, err
	}
	p.log.Info("sidecar written", zap.String("path", path), zap.Int("descriptors", len(report.Descriptors)))
	return ParseResult{Sidecar: path, Descriptors: report.Descriptors, Resolution: report}, nil
}

// Download stores the assets of descs under the figures directory.
func (p *Pipeline) Download(ctx context.Context, descs []types.MediaDescriptor) (download.BatchResult, error) {
	return p.dl.DownloadAll(ctx, descs, FiguresDir(p.cfg))
}

// Run executes fetch, parse, and download, then writes the run summary
// and, when configured, the metrics textfile. Recoverable failures are
// reported in the summary; the error is reserved for fatal conditions.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	s := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
		Volumes:   p.cfg.Volumes,
	}
	log := p.log.With(zap.String("run_id", s.RunID))
	log.Info("run started", zap.Ints("volumes", p.cfg.Volumes))

	if err := p.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	parsed, err := p.Parse(ctx)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	s.Sidecar = parsed.Sidecar
	s.SidecarReused = parsed.Reused
	s.Descriptors = len(parsed.Descriptors)
	if !parsed.Reused {
		s.addResolution(parsed.Resolution)
	}

	result, err := p.Download(ctx, parsed.Descriptors)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	s.addDownloads(result)
	s.FinishedAt = p.now().UTC()

	if err := WriteSummary(SummaryPath(p.cfg), s); err != nil {
		return s, err
	}
	if p.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			return s, err
		}
	}

	log.Info("run complete",
		zap.Int("descriptors", s.Descriptors),
		zap.Int("resolution_failures", len(s.ResolutionFailures)),
		zap.Int("downloaded", s.Downloaded),
		zap.Int("skipped", s.Skipped),
		zap.Int("download_failures", len(s.DownloadFailures)))
	return s, nil
}
