// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns media descriptors into directly fetchable asset
// URLs. Two strategies exist: a template policy that needs no network and
// a scrape policy that reads the rendered figure page for the asset URL.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Resolver maps one descriptor to its asset URL.
type Resolver interface {
	// Name identifies the policy in logs and metrics.
	Name() string
	// Resolve returns the asset URL or a *ResolutionFailure.
	Resolve(ctx context.Context, d types.MediaDescriptor) (string, error)
}

// ErrMarkerNotFound is reported when a figure page has no img element with
// the marker class.
var ErrMarkerNotFound = errors.New("marker image not found on page")

// ResolutionFailure records a descriptor whose URL could not be determined.
// It is recoverable: the descriptor keeps an empty ResolvedURL and the run
// continues.
type ResolutionFailure struct {
	ArticleID string
	MediaID   string
	URL       string
	Err       error
}

func (e *ResolutionFailure) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("resolving %s/%s: %v", e.ArticleID, e.MediaID, e.Err)
	}
	return fmt.Sprintf("resolving %s/%s via %s: %v", e.ArticleID, e.MediaID, e.URL, e.Err)
}

func (e *ResolutionFailure) Unwrap() error { return e.Err }

func failure(d types.MediaDescriptor, url string, err error) *ResolutionFailure {
	return &ResolutionFailure{ArticleID: d.ArticleID, MediaID: d.MediaID, URL: url, Err: err}
}

// Template placeholders understood by Expand.
const (
	PlaceholderArticleID = "{article_id}"
	PlaceholderMediaID   = "{media_id}"
	PlaceholderRef       = "{ref}"
)

// Expand substitutes the descriptor's fields into tmpl.
func Expand(tmpl string, d types.MediaDescriptor) string {
	return strings.NewReplacer(
		PlaceholderArticleID, d.ArticleID,
		PlaceholderMediaID, d.MediaID,
		PlaceholderRef, d.SourceReference,
	).Replace(tmpl)
}

// TemplateResolver builds URLs from fixed patterns. It never touches the
// network and never fails.
type TemplateResolver struct {
	imageTmpl string
	videoTmpl string
}

// NewTemplateResolver creates a resolver from the image and video patterns.
func NewTemplateResolver(imageTmpl, videoTmpl string) *TemplateResolver {
	return &TemplateResolver{imageTmpl: imageTmpl, videoTmpl: videoTmpl}
}

func (t *TemplateResolver) Name() string { return string(types.PolicyTemplate) }

func (t *TemplateResolver) Resolve(_ context.Context, d types.MediaDescriptor) (string, error) {
	if d.MediaKind == types.MediaVideo {
		return Expand(t.videoTmpl, d), nil
	}
	return Expand(t.imageTmpl, d), nil
}

// New builds the resolver selected by cfg.Policy. A scrape resolver backed
// by a headless browser holds a Chrome process; callers release it through
// io.Closer.
func New(cfg types.ResolverConfig, httpCfg types.HTTPConfig, client *http.Client, log *zap.Logger, m *metrics.Metrics) (Resolver, error) {
	if cfg.ImageTemplate == "" || cfg.VideoTemplate == "" {
		return nil, errors.New("resolver: image and video templates are required")
	}
	tmpl := NewTemplateResolver(cfg.ImageTemplate, cfg.VideoTemplate)

	switch cfg.Policy {
	case types.PolicyTemplate, "":
		return tmpl, nil
	case types.PolicyScrape:
		if cfg.PageTemplate == "" || cfg.MarkerClass == "" {
			return nil, errors.New("resolver: scrape policy requires page_template and marker_class")
		}
		var fetcher PageFetcher
		switch cfg.PageFetcher {
		case types.FetcherHTTP, "":
			fetcher = NewHTTPPageFetcher(client, httpCfg, log)
		case types.FetcherBrowser:
			fetcher = NewBrowserPageFetcher(httpCfg, log)
		default:
			return nil, fmt.Errorf("resolver: unknown page fetcher %q", cfg.PageFetcher)
		}
		return NewScrapeResolver(fetcher, tmpl, cfg, log, m), nil
	default:
		return nil, fmt.Errorf("resolver: unknown policy %q", cfg.Policy)
	}
}
