// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmc-harvest/internal/harvest"
	"github.com/pdiddy/pmc-harvest/internal/sidecar"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the media listed in the sidecar file",
	Long: `Download reads the sidecar written by parse and fetches every resolved
asset into the figures directory. Existing files are skipped. Descriptors
without a resolved URL and failed downloads are reported and make the command
exit non-zero.`,
	RunE: runDownload,
}

func init() {
	addDownloadFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	p, cfg, m, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	path := harvest.SidecarPath(cfg)
	descs, err := sidecar.Read(path)
	if err != nil {
		return fmt.Errorf("%w (run parse first)", err)
	}

	result, err := p.Download(cmd.Context(), descs)
	if err != nil {
		return err
	}
	if err := writeMetrics(cfg, m); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Download summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	if result.HasFailures() {
		return fmt.Errorf("%d item(s) failed download", result.Failed)
	}
	return nil
}
