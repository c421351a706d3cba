// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/freshness"
)

var freshCmd = &cobra.Command{
	Use:   "fresh",
	Short: "Probe recorded paths and report drift",
	Long: `Fresh stats every path recorded by every entry and classifies the
result: unchanged, size or mtime changed, missing, or restored. Probes run
concurrently with a bounded worker pool; a hung mount times out for that
path alone and is reported as a probe error.

Nothing is written. Use 'kbmd build' to turn drift into a changeset.`,
	RunE: runFresh,
}

func runFresh(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	snap, err := e.Load()
	if err != nil {
		return err
	}

	diffs, summary := e.ScanFreshness(context.Background(), snap)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diffs)
	}

	showAll, _ := cmd.Flags().GetBool("all")
	for _, d := range diffs {
		if d.Kind == freshness.Unchanged && !showAll {
			continue
		}
		describeDiff(d)
	}

	fmt.Printf("\nunchanged: %d, changed: %d, missing: %d, restored: %d, errors: %d\n",
		summary.Unchanged, summary.Changed, summary.Missing, summary.Restored, summary.Errors)
	return nil
}

func describeDiff(d freshness.Diff) {
	switch d.Kind {
	case freshness.SizeChanged:
		fmt.Printf("changed  %s %s (%d -> %d bytes)\n", d.EntryID, d.Path, d.OldSize, d.NewSize)
	case freshness.MtimeChanged:
		fmt.Printf("changed  %s %s (mtime %s -> %s)\n", d.EntryID, d.Path,
			d.OldMtime.Format("2006-01-02"), d.NewMtime.Format("2006-01-02"))
	case freshness.Missing:
		fmt.Printf("missing  %s %s\n", d.EntryID, d.Path)
	case freshness.Restored:
		fmt.Printf("restored %s %s\n", d.EntryID, d.Path)
	case freshness.ProbeError:
		fmt.Printf("error    %s %s: %v\n", d.EntryID, d.Path, d.Err)
	default:
		fmt.Printf("ok       %s %s\n", d.EntryID, d.Path)
	}
}

func init() {
	freshCmd.Flags().Bool("json", false, "output diffs as JSON")
	freshCmd.Flags().Bool("all", false, "include unchanged paths in the report")
	rootCmd.AddCommand(freshCmd)
}
