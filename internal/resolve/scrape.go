// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// maxPageBytes caps how much of a figure page is read.
const maxPageBytes = 8 << 20

// PageFetcher loads the HTML of a figure page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPPageFetcher loads pages with a plain GET carrying browser identity
// headers.
type HTTPPageFetcher struct {
	client *http.Client
	cfg    types.HTTPConfig
	log    *zap.Logger
}

// NewHTTPPageFetcher creates a fetcher using client for all requests.
func NewHTTPPageFetcher(client *http.Client, cfg types.HTTPConfig, log *zap.Logger) *HTTPPageFetcher {
	return &HTTPPageFetcher{client: client, cfg: cfg, log: log}
}

func (f *HTTPPageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := httputil.NewBrowserRequest(ctx, pageURL, f.cfg)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.cfg.MaxRetries, f.log)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return string(body), nil
}

// ScrapeResolver reads the asset URL from the marker image of the rendered
// figure page. Videos have no usable figure page and go through the video
// template.
type ScrapeResolver struct {
	fetcher  PageFetcher
	tmpl     *TemplateResolver
	pageTmpl string
	marker   string
	hosts    *hostLimiter
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewScrapeResolver creates a scrape resolver. tmpl handles video
// descriptors.
func NewScrapeResolver(fetcher PageFetcher, tmpl *TemplateResolver, cfg types.ResolverConfig, log *zap.Logger, m *metrics.Metrics) *ScrapeResolver {
	return &ScrapeResolver{
		fetcher:  fetcher,
		tmpl:     tmpl,
		pageTmpl: cfg.PageTemplate,
		marker:   cfg.MarkerClass,
		hosts:    newHostLimiter(cfg.MaxPerHost, cfg.RequestsPerSecond),
		log:      log,
		metrics:  m,
	}
}

func (s *ScrapeResolver) Name() string { return string(types.PolicyScrape) }

func (s *ScrapeResolver) Resolve(ctx context.Context, d types.MediaDescriptor) (string, error) {
	if d.MediaKind == types.MediaVideo {
		return s.tmpl.Resolve(ctx, d)
	}

	pageURL := Expand(s.pageTmpl, d)
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", failure(d, pageURL, fmt.Errorf("parsing page URL: %w", err))
	}

	release, err := s.hosts.acquire(ctx, page.Host)
	if err != nil {
		return "", failure(d, pageURL, err)
	}
	start := time.Now()
	html, err := s.fetcher.Fetch(ctx, pageURL)
	release()
	s.metrics.ObserveScrape(time.Since(start))
	if err != nil {
		return "", failure(d, pageURL, err)
	}

	src, err := markerSource(html, s.marker)
	if err != nil {
		return "", failure(d, pageURL, err)
	}
	asset, err := NormalizeURL(page, src)
	if err != nil {
		return "", failure(d, pageURL, err)
	}
	s.log.Debug("scraped asset url",
		zap.String("article", d.ArticleID),
		zap.String("media", d.MediaID),
		zap.String("url", asset))
	return asset, nil
}

// Close releases the page fetcher when it holds resources.
func (s *ScrapeResolver) Close() error {
	if c, ok := s.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// markerSource returns the src of the first img element carrying the
// marker class.
func markerSource(html, marker string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}
	src, ok := doc.Find("img." + marker).First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", ErrMarkerNotFound
	}
	return strings.TrimSpace(src), nil
}

// NormalizeURL makes a scraped src absolute. Scheme-relative references
// always get https; root- and path-relative references resolve against the
// page; absolute URLs are returned unchanged.
func NormalizeURL(page *url.URL, src string) (string, error) {
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing image src %q: %w", src, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return page.ResolveReference(ref).String(), nil
}
