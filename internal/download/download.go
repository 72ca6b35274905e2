// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches resolved media assets to local storage. Per-item
// failures are collected and never stop the batch.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// ErrUnresolved marks a descriptor that reached the downloader without a
// resolved URL.
var ErrUnresolved = errors.New("descriptor has no resolved URL")

// ErrUnsafeFileName marks a descriptor whose file name would land outside
// the download directory.
var ErrUnsafeFileName = errors.New("file name escapes the download directory")

// DownloadFailure records one asset that could not be stored.
type DownloadFailure struct {
	FileName string
	URL      string
	Err      error
}

func (e *DownloadFailure) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("downloading %s: %v", e.FileName, e.Err)
	}
	return fmt.Sprintf("downloading %s from %s: %v", e.FileName, e.URL, e.Err)
}

func (e *DownloadFailure) Unwrap() error { return e.Err }

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Failures   []*DownloadFailure
}

// Total returns the total number of descriptors processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any download failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Downloader fetches assets over HTTP with browser identity headers.
type Downloader struct {
	client  *http.Client
	cfg     types.HTTPConfig
	workers int
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a downloader. workers below 1 means sequential.
func New(client *http.Client, cfg types.HTTPConfig, workers int, log *zap.Logger, m *metrics.Metrics) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{
		client:  client,
		cfg:     cfg,
		workers: workers,
		log:     log,
		metrics: m,
	}
}

// Fetch downloads url to dest through a temporary file in dest's
// directory, renamed into place on success. dest is verified to exist
// after the rename.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	req, err := httputil.NewBrowserRequest(ctx, url, d.cfg)
	if err != nil {
		return err
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, d.cfg.MaxRetries, d.log)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("verifying %s: %w", dest, err)
	}
	d.metrics.AddDownloadBytes(n)
	return nil
}

type outcome int

const (
	outcomeDownloaded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// DownloadAll stores every descriptor's asset under dir as its FileName.
// Existing files are skipped. Descriptors without a resolved URL count as
// failures. The returned error is non-nil only when dir cannot be created
// or ctx is cancelled.
func (d *Downloader) DownloadAll(ctx context.Context, descs []types.MediaDescriptor, dir string) (BatchResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return BatchResult{}, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	outcomes := make([]outcome, len(descs))
	failures := make([]*DownloadFailure, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, desc := range descs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i], failures[i] = d.one(gctx, desc, dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for i, o := range outcomes {
		switch o {
		case outcomeDownloaded:
			result.Downloaded++
			d.metrics.IncDownload(metrics.OutcomeDownloaded)
		case outcomeSkipped:
			result.Skipped++
			d.metrics.IncDownload(metrics.OutcomeSkipped)
		case outcomeFailed:
			result.Failed++
			result.Failures = append(result.Failures, failures[i])
			d.metrics.IncDownload(metrics.OutcomeFailed)
		}
	}
	d.log.Info("download summary",
		zap.Int("downloaded", result.Downloaded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("total", result.Total()))
	return result, nil
}

func (d *Downloader) one(ctx context.Context, desc types.MediaDescriptor, dir string) (outcome, *DownloadFailure) {
	if !desc.Resolved() {
		d.log.Warn("skipping unresolved media", zap.String("file", desc.FileName))
		return outcomeFailed, &DownloadFailure{FileName: desc.FileName, Err: ErrUnresolved}
	}

	dest, err := destPath(dir, desc.FileName)
	if err != nil {
		d.log.Warn("rejected file name", zap.String("file", desc.FileName))
		return outcomeFailed, &DownloadFailure{FileName: desc.FileName, URL: desc.ResolvedURL, Err: err}
	}
	if _, err := os.Stat(dest); err == nil {
		d.log.Debug("skipped existing file", zap.String("file", desc.FileName))
		return outcomeSkipped, nil
	}

	if err := d.Fetch(ctx, desc.ResolvedURL, dest); err != nil {
		d.log.Warn("download failed",
			zap.String("file", desc.FileName),
			zap.String("url", desc.ResolvedURL),
			zap.Error(err))
		return outcomeFailed, &DownloadFailure{FileName: desc.FileName, URL: desc.ResolvedURL, Err: err}
	}
	d.log.Info("downloaded", zap.String("file", desc.FileName), zap.String("url", desc.ResolvedURL))
	return outcomeDownloaded, nil
}

// destPath joins name onto dir. The result must be a direct child of dir.
func destPath(dir, name string) (string, error) {
	dest := filepath.Join(dir, name)
	rel, err := filepath.Rel(filepath.Clean(dir), dest)
	if err != nil || rel != name || rel == "." || rel == ".." || filepath.Base(rel) != rel {
		return "", ErrUnsafeFileName
	}
	return dest, nil
}
