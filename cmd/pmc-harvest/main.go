// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pmc-harvest CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built from the --log-mode and --log-level flags before any
// subcommand runs.
var logger = zap.NewNop()

// rootCmd is the base command for the pmc-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "pmc-harvest",
	Short: "Harvest figures and captions from the PMC Open Access subset",
	Long: `pmc-harvest downloads PubMed Central Open Access bulk volumes, extracts
every figure and media reference from the article XML, resolves each one to a
direct asset URL, and downloads the assets next to their captions.

Stages are subcommands: fetch, parse, download, and run (all three). The
catalog command indexes the harvested captions for full-text search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(viper.GetString("log.mode"), viper.GetString("log.level"))
		if err != nil {
			return err
		}
		logger = l
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info("using config file", zap.String("path", f))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pmc-harvest.yaml or ~/.config/pmc-harvest/pmc-harvest.yaml)")
	pf.String("log-mode", logging.ModeProduction, "log format: production (JSON) or development (console)")
	pf.String("log-level", "info", "minimum log level: debug, info, warn, error")
	pf.IntSlice("volumes", nil, "OA bulk volume ids to process, 0-9 (default 0)")
	pf.String("extraction-dir", "", "root directory for archives, sidecar, and figures (default PMC_OA)")
	pf.String("baseline", "", "baseline date in archive names (default 2024-06-18)")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile at the end of the run")

	bindFlags(pf, map[string]string{
		"log.mode":               "log-mode",
		"log.level":              "log-level",
		"volumes":                "volumes",
		"archive.extraction_dir": "extraction-dir",
		"archive.baseline":       "baseline",
		"metrics_file":           "metrics-file",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pmc-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pmc-harvest"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("PMC_HARVEST")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "reading config:", err)
			os.Exit(1)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
