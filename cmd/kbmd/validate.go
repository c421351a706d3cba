// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/linkgraph"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every document against its schema and the link graph",
	Long: `Validate loads every entry and index document, checks required fields
and field types, and classifies index references as valid or dangling.
Per-document failures are reported individually; one bad document never
hides the results for the rest.

The exit status is non-zero when any document has violations, fails to
parse, or the link graph has dangling references.`,
	RunE: runValidate,
}

// validateReport is the JSON shape of a validation run.
type validateReport struct {
	Violations map[string][]string `json:"violations,omitempty"`
	Malformed  map[string]string   `json:"malformed,omitempty"`
	Dangling   []string            `json:"dangling,omitempty"`
	Orphans    []string            `json:"orphans,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	snap, err := e.Load()
	if err != nil {
		return err
	}
	graph := linkgraph.Build(snap.Entries, snap.Indexes)

	report := validateReport{
		Violations: map[string][]string{},
		Malformed:  map[string]string{},
	}
	for id, vs := range snap.Violations {
		for _, v := range vs {
			report.Violations[id] = append(report.Violations[id], v.String())
		}
	}
	for id, loadErr := range snap.Malformed {
		report.Malformed[id] = loadErr.Error()
	}
	for _, edge := range graph.Dangling() {
		report.Dangling = append(report.Dangling, fmt.Sprintf("%s -> %s", edge.IndexID, edge.EntryID))
	}
	sort.Strings(report.Dangling)
	for _, o := range graph.Orphans {
		report.Orphans = append(report.Orphans, o.EntryID)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printValidateReport(report, len(snap.Entries), len(snap.Indexes))
	}

	if len(report.Violations) > 0 || len(report.Malformed) > 0 || len(report.Dangling) > 0 {
		return fmt.Errorf("%d document(s) with violations, %d malformed, %d dangling reference(s)",
			len(report.Violations), len(report.Malformed), len(report.Dangling))
	}
	return nil
}

func printValidateReport(report validateReport, entries, indexes int) {
	ids := make([]string, 0, len(report.Violations))
	for id := range report.Violations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, v := range report.Violations[id] {
			fmt.Printf("invalid  %s: %s\n", id, v)
		}
	}

	ids = ids[:0]
	for id := range report.Malformed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("broken   %s: %s\n", id, report.Malformed[id])
	}

	for _, d := range report.Dangling {
		fmt.Printf("dangling %s\n", d)
	}
	for _, o := range report.Orphans {
		fmt.Printf("orphan   %s\n", o)
	}

	fmt.Printf("\n%d entries, %d indexes checked\n", entries, indexes)
}

func init() {
	validateCmd.Flags().Bool("json", false, "output the report as JSON")
	rootCmd.AddCommand(validateCmd)
}
