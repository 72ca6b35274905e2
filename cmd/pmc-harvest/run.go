// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmc-harvest/internal/harvest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, parse, and download in one pass",
	Long: `Run executes fetch, parse, and download for the configured volumes and
writes a summary of every recoverable failure to
{extraction-dir}/failures.yaml. The command exits non-zero when any figure
could not be resolved or downloaded.`,
	RunE: runRun,
}

func init() {
	addConflictFlags(runCmd)
	addResolverFlags(runCmd)
	addDownloadFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	p, cfg, _, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	s, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d descriptors, %d downloaded, %d skipped\n",
		s.RunID, s.Descriptors, s.Downloaded, s.Skipped)
	if s.HasFailures() {
		fmt.Fprintf(out, "Failures written to %s\n", harvest.SummaryPath(cfg))
		return fmt.Errorf("%d item(s) failed", s.Failed())
	}
	return nil
}
