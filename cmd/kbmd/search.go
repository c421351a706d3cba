// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/catalog"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search entries with full-text search and filters",
	Long: `Search queries the SQLite catalog built from the entry documents, with
FTS5 full-text search over titles, descriptions, and prose, plus structured
filters for tag, tier, and owner. The catalog is refreshed incrementally
before every search, so results always reflect the current documents.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	tag, _ := cmd.Flags().GetString("tag")
	tier, _ := cmd.Flags().GetString("tier")
	owner, _ := cmd.Flags().GetString("owner")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := catalog.QueryOptions{
		Query:      queryText,
		Tier:       tier,
		Owner:      owner,
		MaxResults: limit,
	}
	if tag != "" {
		opts.Tags = []string{tag}
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --tag, --tier, or --owner")
	}

	results, err := e.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-28s  %-40s  %-10s  %s\n", "ID", "Title", "Owner", "Tags")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range results {
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-28s  %-40s  %-10s  %s\n",
			r.ID, title, r.Owner, strings.Join(r.Tags, ","))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search catalog from the entry documents",
	Long: `Reindex brings the SQLite catalog up to date with the entry documents.
Unchanged documents are skipped; rows for deleted documents are removed.
The catalog is disposable: deleting it and running reindex rebuilds it
from scratch.`,
	RunE: runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	summary, err := e.RebuildCatalog(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

func init() {
	searchCmd.Flags().String("query", "", "full-text search query")
	searchCmd.Flags().String("tag", "", "filter by topic tag")
	searchCmd.Flags().String("tier", "", "filter by storage tier: scratch, projects, cold, cloud")
	searchCmd.Flags().String("owner", "", "filter by owner")
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reindexCmd)
}
