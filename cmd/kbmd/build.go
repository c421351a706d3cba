// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/engine"
	"github.com/pdiddy/kbmd/internal/reconcile"
	"github.com/pdiddy/kbmd/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble a changeset from validation, link, and freshness results",
	Long: `Build runs a full reconciliation pass: validates every document, checks
the link graph, probes recorded paths, and merges the results into one
changeset. Documents with schema violations are excluded from mutations and
listed separately. Repeated runs over an unchanged knowledgebase produce
identical changesets.

By default the changeset is only printed. --apply writes its mutations to
the local documents; --indexes regenerates by-tier and by-topic index
documents as part of the pass; --no-scan skips the filesystem probes.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	regen, _ := cmd.Flags().GetBool("indexes")
	noScan, _ := cmd.Flags().GetBool("no-scan")

	res, snap, err := e.BuildChangeset(context.Background(), engine.BuildOptions{
		RegenerateIndexes: regen,
		SkipScan:          noScan,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Changeset); err != nil {
			return err
		}
	} else {
		printChangeset(res, len(snap.Malformed))
	}

	apply, _ := cmd.Flags().GetBool("apply")
	if apply {
		applied, err := e.Apply(res.Changeset)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d change(s) locally\n", len(applied))
	}
	return nil
}

func printChangeset(res reconcile.Result, malformed int) {
	for _, c := range res.Changeset.Changes {
		switch c.Kind {
		case types.ChangeReview:
			fmt.Printf("review  %s %s: %s\n", c.DocType, c.DocID, c.Note)
		default:
			fields := make([]string, 0, len(c.Fields))
			for f := range c.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			fmt.Printf("%-7s %s %s [%s] fields: %s\n",
				c.Kind, c.DocType, c.DocID, joinReasons(c.Reasons), strings.Join(fields, ", "))
		}
	}

	blocked := make([]string, 0, len(res.Blocked))
	for id := range res.Blocked {
		blocked = append(blocked, id)
	}
	sort.Strings(blocked)
	for _, id := range blocked {
		fmt.Printf("blocked %s (%d violation(s))\n", id, len(res.Blocked[id]))
	}

	for _, pe := range res.ProbeErrors {
		fmt.Printf("unknown %s %s: %s\n", pe.EntryID, pe.Path, pe.Err)
	}

	fmt.Printf("\n%d mutation(s), %d advisory item(s), %d blocked, %d malformed\n",
		len(res.Changeset.Mutations()), len(res.Changeset.Advisories()), len(res.Blocked), malformed)
}

func joinReasons(reasons []types.ChangeReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func init() {
	buildCmd.Flags().Bool("json", false, "output the changeset as JSON")
	buildCmd.Flags().Bool("apply", false, "write the changeset's mutations to the local documents")
	buildCmd.Flags().Bool("indexes", false, "regenerate by-tier and by-topic index documents")
	buildCmd.Flags().Bool("no-scan", false, "skip filesystem probes; use document state only")
	rootCmd.AddCommand(buildCmd)
}
