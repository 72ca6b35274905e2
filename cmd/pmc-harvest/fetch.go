// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and unpack OA bulk volumes",
	Long: `Fetch prepares the extraction directory, then downloads the file list
and tarball of every configured volume and unpacks it. Files already on disk
are not downloaded again and unpacked volumes are not extracted again.

A non-empty extraction directory is refused unless --keep-archives or -d is
given.`,
	RunE: runFetch,
}

func init() {
	addConflictFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	p, _, _, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	return p.Fetch(cmd.Context())
}
