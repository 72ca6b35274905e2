// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// NewClient returns an HTTP client with the configured timeout.
func NewClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// SetBrowserHeaders applies the browser identity from cfg. Empty fields
// fall back to the built-in browser defaults.
func SetBrowserHeaders(req *http.Request, cfg types.HTTPConfig) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.BrowserUserAgent
	}
	ref := cfg.Referer
	if ref == "" {
		ref = types.BrowserReferer
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Referer", ref)
}

// NewBrowserRequest builds a GET request carrying the browser identity.
func NewBrowserRequest(ctx context.Context, url string, cfg types.HTTPConfig) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	SetBrowserHeaders(req, cfg)
	return req, nil
}
