// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract and resolve media descriptors into the sidecar file",
	Long: `Parse walks every article listed in the volume manifests, extracts one
descriptor per figure, resolves each descriptor to an asset URL, and writes
them to {extraction-dir}/{volumes}.jsonl. An existing sidecar is reused as is;
delete it to parse again.

Figures whose URL cannot be resolved are kept without resolved_url and make
the command exit non-zero.`,
	RunE: runParse,
}

func init() {
	addResolverFlags(parseCmd)
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	p, cfg, m, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	res, err := p.Parse(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeMetrics(cfg, m); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Reused {
		fmt.Fprintf(out, "Reused %s (%d descriptors)\n", res.Sidecar, len(res.Descriptors))
		return nil
	}
	fmt.Fprintf(out, "Wrote %s: %d descriptors, %d resolved, %d failed\n",
		res.Sidecar, len(res.Descriptors), res.Resolution.Resolved(), len(res.Resolution.Failures))
	if n := len(res.Resolution.Failures); n > 0 {
		return fmt.Errorf("%d descriptor(s) failed resolution", n)
	}
	return nil
}
