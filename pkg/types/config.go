package types

import "time"

// Browser identity sent with every outbound request. The PMC page endpoints
// reject default client identities.
const (
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	BrowserReferer   = "https://www.ncbi.nlm.nih.gov/"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	// Referer is the Referer header sent with HTTP requests.
	Referer string `mapstructure:"referer" yaml:"referer"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the httputil default).
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// ConflictPolicy decides what happens when the extraction directory is not
// empty at startup.
type ConflictPolicy string

const (
	ConflictError    ConflictPolicy = "error"
	ConflictPreserve ConflictPolicy = "preserve"
	ConflictDelete   ConflictPolicy = "delete"
)

// ArchiveConfig holds settings for downloading and extracting OA bulk archives.
type ArchiveConfig struct {
	// BaseURL is the OA bulk XML directory (e.g. "https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_bulk/oa_comm/xml/").
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Baseline is the baseline date embedded in archive and manifest names.
	Baseline string `mapstructure:"baseline" yaml:"baseline"`

	// ExtractionDir is the root directory for archives, extracted XML, the
	// sidecar file, and downloaded figures.
	ExtractionDir string `mapstructure:"extraction_dir" yaml:"extraction_dir"`

	// OnConflict selects the policy for a non-empty extraction directory.
	OnConflict ConflictPolicy `mapstructure:"on_conflict" yaml:"on_conflict"`
}

// ResolverPolicy selects the URL resolution strategy.
type ResolverPolicy string

const (
	PolicyTemplate ResolverPolicy = "template"
	PolicyScrape   ResolverPolicy = "scrape"
)

// PageFetcherKind selects how the scrape policy loads figure pages.
type PageFetcherKind string

const (
	FetcherHTTP    PageFetcherKind = "http"
	FetcherBrowser PageFetcherKind = "browser"
)

// ResolverConfig holds settings for URL resolution.
type ResolverConfig struct {
	Policy      ResolverPolicy  `mapstructure:"policy" yaml:"policy"`
	PageFetcher PageFetcherKind `mapstructure:"page_fetcher" yaml:"page_fetcher"`

	// ImageTemplate and VideoTemplate accept {article_id}, {media_id} and {ref}.
	ImageTemplate string `mapstructure:"image_template" yaml:"image_template"`
	VideoTemplate string `mapstructure:"video_template" yaml:"video_template"`

	// PageTemplate is the figure page URL scraped by the scrape policy.
	PageTemplate string `mapstructure:"page_template" yaml:"page_template"`

	// MarkerClass is the CSS class of the img element carrying the asset URL.
	MarkerClass string `mapstructure:"marker_class" yaml:"marker_class"`

	// Workers bounds concurrent resolutions (1 = sequential).
	Workers int `mapstructure:"workers" yaml:"workers"`

	// MaxPerHost bounds concurrent page fetches against one host.
	MaxPerHost int `mapstructure:"max_per_host" yaml:"max_per_host"`

	// RequestsPerSecond limits page fetches per host. Zero disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// DownloadConfig holds settings for the media download stage.
type DownloadConfig struct {
	// FiguresDir is where assets are written. Empty means {extraction_dir}/figures.
	FiguresDir string `mapstructure:"figures_dir" yaml:"figures_dir"`

	// Workers bounds concurrent downloads (1 = sequential).
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// CatalogConfig holds settings for the caption catalog.
type CatalogConfig struct {
	// Path is the SQLite database file. Empty means {extraction_dir}/catalog.db.
	Path string `mapstructure:"path" yaml:"path"`

	// MaxResults is the default search result limit (default 20).
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	// Volumes lists OA bulk volume ids (0-9) in processing order.
	Volumes []int `mapstructure:"volumes" yaml:"volumes"`

	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`

	// MetricsFile is an optional Prometheus textfile output path.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// DefaultConfig returns the configuration used when no file, flag, or
// environment variable overrides a value.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Volumes: []int{0},
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: BrowserUserAgent,
			Referer:   BrowserReferer,
		},
		Archive: ArchiveConfig{
			BaseURL:       "https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_bulk/oa_comm/xml/",
			Baseline:      "2024-06-18",
			ExtractionDir: "PMC_OA",
			OnConflict:    ConflictError,
		},
		Resolver: ResolverConfig{
			Policy:        PolicyTemplate,
			PageFetcher:   FetcherHTTP,
			ImageTemplate: "https://pmc.ncbi.nlm.nih.gov/articles/{article_id}/figure/{ref}.jpg",
			VideoTemplate: "https://pmc.ncbi.nlm.nih.gov/articles/{article_id}/figure/{ref}",
			PageTemplate:  "https://pmc.ncbi.nlm.nih.gov/articles/{article_id}/figure/{media_id}/",
			MarkerClass:   "graphic",
			Workers:       1,
			MaxPerHost:    2,
		},
		Download: DownloadConfig{
			Workers: 1,
		},
		Catalog: CatalogConfig{
			MaxResults: 20,
		},
	}
}
