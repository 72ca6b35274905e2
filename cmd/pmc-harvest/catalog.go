// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pmc-harvest/internal/catalog"
	"github.com/pdiddy/pmc-harvest/internal/harvest"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Index and search harvested captions",
	Long: `Catalog keeps a local SQLite database of harvested descriptors with FTS5
indexing over captions. Use subcommands to index a sidecar file, search it,
print counts, or export a filtered subset.`,
}

// --- index subcommand ---

var catalogIndexCmd = &cobra.Command{
	Use:   "index [sidecar]",
	Short: "Ingest a sidecar file into the catalog",
	Long: `Index reads a sidecar file (default: the one for the configured volumes)
and stores every descriptor. A sidecar unchanged since the last index is
skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogIndex,
}

func runCatalogIndex(cmd *cobra.Command, args []string) error {
	cfg, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	path := harvest.SidecarPath(cfg)
	if len(args) == 1 {
		path = args[0]
	}

	summary, err := store.IngestSidecar(cmd.Context(), path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if summary.Unchanged {
		fmt.Fprintf(out, "%s unchanged since last index\n", path)
		return nil
	}
	fmt.Fprintf(out, "Indexed %s: %d new, %d updated article(s)\n", path, summary.Indexed, summary.Updated)
	return nil
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search captions with full-text search and filters",
	Long: `Search matches captions with an FTS5 query, optionally narrowed by
media kind, article, or resolution state. Without a query, filters alone
select descriptors in article order.`,
	RunE: runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	_, store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.Query == "" && opts.Kind == "" && opts.ArticleID == "" && !opts.ResolvedOnly {
		return fmt.Errorf("query or filter required: provide a search query, --kind, --article, or --resolved")
	}

	results, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(cmd.OutOrStdout(), results, jsonOutput)
}

func formatSearchOutput(w io.Writer, results []catalog.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-6s  %-28s  %s\n", "Rank", "Kind", "File", "Caption")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, r := range results {
		caption := r.Caption
		if len(caption) > 56 {
			caption = caption[:53] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-6s  %-28s  %s\n", i+1, r.MediaKind, r.FileName, caption)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- stats subcommand ---

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print catalog counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openCatalog()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Articles:  %d\n", st.Articles)
		fmt.Fprintf(out, "Media:     %d (%d images, %d videos)\n", st.Media, st.Images, st.Videos)
		fmt.Fprintf(out, "Resolved:  %d\n", st.Resolved)
		fmt.Fprintf(out, "Captioned: %d\n", st.Captioned)
		return nil
	},
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export catalogued descriptors to YAML or JSON",
	Long: `Export writes catalogued descriptors to path, as JSON when the path ends
in .json and YAML otherwise. Accepts the same filters as search.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openCatalog()
		if err != nil {
			return err
		}
		defer store.Close()

		opts := queryOptsFromFlags(cmd, nil)
		n, err := store.Export(cmd.Context(), opts, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d descriptor(s) to %s\n", n, args[0])
		return nil
	},
}

func openCatalog() (types.PipelineConfig, *catalog.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return cfg, nil, err
	}
	store, err := catalog.NewStore(harvest.CatalogPath(cfg), cfg.Catalog)
	return cfg, store, err
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	kind, _ := cmd.Flags().GetString("kind")
	article, _ := cmd.Flags().GetString("article")
	resolved, _ := cmd.Flags().GetBool("resolved")
	limit, _ := cmd.Flags().GetInt("limit")

	return catalog.QueryOptions{
		Query:        strings.Join(args, " "),
		Kind:         types.MediaKind(kind),
		ArticleID:    article,
		ResolvedOnly: resolved,
		MaxResults:   limit,
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "filter by media kind: image or video")
	cmd.Flags().String("article", "", "filter by article id")
	cmd.Flags().Bool("resolved", false, "only media with a resolved URL")
}

func init() {
	addFilterFlags(catalogSearchCmd)
	catalogSearchCmd.Flags().Int("limit", 0, "maximum number of results (default from catalog.max_results)")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")
	addFilterFlags(catalogExportCmd)

	catalogCmd.AddCommand(catalogIndexCmd, catalogSearchCmd, catalogStatsCmd, catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}
