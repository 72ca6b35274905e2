// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

func newTestViper(t *testing.T, yamlDoc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PMC_HARVEST")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	if yamlDoc != "" {
		path := filepath.Join(t.TempDir(), "pmc-harvest.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t, `
volumes: [3, 1]
http:
  timeout: 5s
archive:
  extraction_dir: /data/oa
  on_conflict: preserve
resolver:
  policy: scrape
  page_fetcher: browser
  max_per_host: 4
download:
  workers: 8
`))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, cfg.Volumes)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "/data/oa", cfg.Archive.ExtractionDir)
	assert.Equal(t, types.ConflictPreserve, cfg.Archive.OnConflict)
	assert.Equal(t, types.PolicyScrape, cfg.Resolver.Policy)
	assert.Equal(t, types.FetcherBrowser, cfg.Resolver.PageFetcher)
	assert.Equal(t, 4, cfg.Resolver.MaxPerHost)
	assert.Equal(t, 8, cfg.Download.Workers)
	// Untouched keys keep their defaults.
	assert.Equal(t, "graphic", cfg.Resolver.MarkerClass)
	assert.Equal(t, types.BrowserReferer, cfg.HTTP.Referer)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("PMC_HARVEST_RESOLVER_WORKERS", "6")
	cfg, err := loadConfig(newTestViper(t, "resolver:\n  workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Resolver.Workers)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"out of range", "volumes: [10]\n", "out of range"},
		{"negative", "volumes: [-1]\n", "out of range"},
		{"duplicate", "volumes: [2, 2]\n", "listed twice"},
		{"empty", "volumes: []\n", "no volumes"},
		{"no extraction dir", "archive:\n  extraction_dir: \"\"\n", "extraction directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(newTestViper(t, tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConflictPolicy(t *testing.T) {
	tests := []struct {
		keep, del  bool
		configured types.ConflictPolicy
		want       types.ConflictPolicy
	}{
		{false, false, "", types.ConflictError},
		{false, false, types.ConflictPreserve, types.ConflictPreserve},
		{true, false, types.ConflictError, types.ConflictPreserve},
		{false, true, types.ConflictError, types.ConflictDelete},
		{true, true, types.ConflictError, types.ConflictPreserve},
	}
	for _, tt := range tests {
		got := conflictPolicy(tt.keep, tt.del, tt.configured)
		assert.Equal(t, tt.want, got, "keep=%v del=%v configured=%q", tt.keep, tt.del, tt.configured)
	}
}

func TestApplyResolverFlagsOnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	addResolverFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--policy", "scrape", "--rps", "2.5"}))

	cfg := types.DefaultConfig()
	applyResolverFlags(cmd, &cfg)
	assert.Equal(t, types.PolicyScrape, cfg.Resolver.Policy)
	assert.Equal(t, 2.5, cfg.Resolver.RequestsPerSecond)
	assert.Equal(t, types.FetcherHTTP, cfg.Resolver.PageFetcher)
	assert.Equal(t, 2, cfg.Resolver.MaxPerHost)
}

func TestApplyConflictFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	addConflictFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"-d"}))

	cfg := types.DefaultConfig()
	applyConflictFlags(cmd, &cfg)
	assert.Equal(t, types.ConflictDelete, cfg.Archive.OnConflict)
}
