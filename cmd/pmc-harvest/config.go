// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pmc-harvest/internal/harvest"
	"github.com/pdiddy/pmc-harvest/internal/httputil"
	"github.com/pdiddy/pmc-harvest/internal/logging"
	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// envKeyReplacer maps nested keys to environment names:
// resolver.max_per_host -> PMC_HARVEST_RESOLVER_MAX_PER_HOST.
var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers every configuration key so that environment
// variables reach nested fields during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("log.mode", logging.ModeProduction)
	v.SetDefault("log.level", "info")

	v.SetDefault("volumes", d.Volumes)
	v.SetDefault("metrics_file", d.MetricsFile)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.referer", d.HTTP.Referer)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)

	v.SetDefault("archive.base_url", d.Archive.BaseURL)
	v.SetDefault("archive.baseline", d.Archive.Baseline)
	v.SetDefault("archive.extraction_dir", d.Archive.ExtractionDir)
	v.SetDefault("archive.on_conflict", string(d.Archive.OnConflict))

	v.SetDefault("resolver.policy", string(d.Resolver.Policy))
	v.SetDefault("resolver.page_fetcher", string(d.Resolver.PageFetcher))
	v.SetDefault("resolver.image_template", d.Resolver.ImageTemplate)
	v.SetDefault("resolver.video_template", d.Resolver.VideoTemplate)
	v.SetDefault("resolver.page_template", d.Resolver.PageTemplate)
	v.SetDefault("resolver.marker_class", d.Resolver.MarkerClass)
	v.SetDefault("resolver.workers", d.Resolver.Workers)
	v.SetDefault("resolver.max_per_host", d.Resolver.MaxPerHost)
	v.SetDefault("resolver.requests_per_second", d.Resolver.RequestsPerSecond)

	v.SetDefault("download.figures_dir", d.Download.FiguresDir)
	v.SetDefault("download.workers", d.Download.Workers)

	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.max_results", d.Catalog.MaxResults)
}

// bindFlags binds viper keys to flags in fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

// loadConfig decodes the merged configuration (flags over environment over
// config file over defaults) and validates it.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Archive.OnConflict == "" {
		cfg.Archive.OnConflict = types.ConflictError
	}

	if len(cfg.Volumes) == 0 {
		return cfg, fmt.Errorf("no volumes configured")
	}
	seen := make(map[int]bool)
	for _, id := range cfg.Volumes {
		if id < 0 || id > 9 {
			return cfg, fmt.Errorf("volume id %d out of range 0-9", id)
		}
		if seen[id] {
			return cfg, fmt.Errorf("volume id %d listed twice", id)
		}
		seen[id] = true
	}
	if cfg.Archive.ExtractionDir == "" {
		return cfg, fmt.Errorf("extraction directory must not be empty")
	}
	return cfg, nil
}

// conflictPolicy applies the --keep-archives and -d flags. Keeping wins
// when both are given.
func conflictPolicy(keep, del bool, configured types.ConflictPolicy) types.ConflictPolicy {
	switch {
	case keep:
		return types.ConflictPreserve
	case del:
		return types.ConflictDelete
	case configured == "":
		return types.ConflictError
	default:
		return configured
	}
}

func addConflictFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("keep-archives", false, "keep existing files in a non-empty extraction directory")
	cmd.Flags().BoolP("delete", "d", false, "delete the contents of a non-empty extraction directory")
}

func applyConflictFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	keep, _ := cmd.Flags().GetBool("keep-archives")
	del, _ := cmd.Flags().GetBool("delete")
	cfg.Archive.OnConflict = conflictPolicy(keep, del, cfg.Archive.OnConflict)
}

func addResolverFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "URL resolution policy: template or scrape")
	cmd.Flags().String("page-fetcher", "", "scrape page loader: http or browser")
	cmd.Flags().Int("resolve-workers", 0, "concurrent URL resolutions")
	cmd.Flags().Int("max-per-host", 0, "concurrent page fetches per host")
	cmd.Flags().Float64("rps", 0, "page fetches per second per host (0 = unlimited)")
}

// applyResolverFlags overrides resolver settings with flags given on the
// command line.
func applyResolverFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	f := cmd.Flags()
	if f.Changed("policy") {
		v, _ := f.GetString("policy")
		cfg.Resolver.Policy = types.ResolverPolicy(v)
	}
	if f.Changed("page-fetcher") {
		v, _ := f.GetString("page-fetcher")
		cfg.Resolver.PageFetcher = types.PageFetcherKind(v)
	}
	if f.Changed("resolve-workers") {
		cfg.Resolver.Workers, _ = f.GetInt("resolve-workers")
	}
	if f.Changed("max-per-host") {
		cfg.Resolver.MaxPerHost, _ = f.GetInt("max-per-host")
	}
	if f.Changed("rps") {
		cfg.Resolver.RequestsPerSecond, _ = f.GetFloat64("rps")
	}
}

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().Int("download-workers", 0, "concurrent media downloads")
	cmd.Flags().String("figures-dir", "", "where media files are written (default {extraction-dir}/figures)")
}

func applyDownloadFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	f := cmd.Flags()
	if f.Changed("download-workers") {
		cfg.Download.Workers, _ = f.GetInt("download-workers")
	}
	if f.Changed("figures-dir") {
		cfg.Download.FiguresDir, _ = f.GetString("figures-dir")
	}
}

// newPipeline loads the configuration, applies command flags, and builds
// the pipeline with its metrics.
func newPipeline(cmd *cobra.Command) (*harvest.Pipeline, types.PipelineConfig, *metrics.Metrics, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, cfg, nil, err
	}
	if cmd.Flags().Lookup("keep-archives") != nil {
		applyConflictFlags(cmd, &cfg)
	}
	if cmd.Flags().Lookup("policy") != nil {
		applyResolverFlags(cmd, &cfg)
	}
	if cmd.Flags().Lookup("download-workers") != nil {
		applyDownloadFlags(cmd, &cfg)
	}

	m := metrics.New()
	p := harvest.New(cfg, httputil.NewClient(cfg.HTTP), logger, m)
	return p, cfg, m, nil
}

// writeMetrics writes the metrics textfile when one is configured.
func writeMetrics(cfg types.PipelineConfig, m *metrics.Metrics) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	return m.WriteTextfile(cfg.MetricsFile)
}
