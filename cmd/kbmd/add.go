// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/engine"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new entry to the knowledgebase",
	Long: `Add creates a new entry document from the given metadata. The entry id
is derived from the title ("Genome Batch 37" becomes genome-batch-37); an
existing id is refused rather than overwritten. Each --path is probed once
so the entry starts with recorded filesystem facts.`,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	owner, _ := cmd.Flags().GetString("owner")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	paths, _ := cmd.Flags().GetStringSlice("path")

	entry, err := e.AddEntry(context.Background(), engine.NewEntry{
		Title:       title,
		Description: description,
		Owner:       owner,
		Tags:        tags,
		Locations:   paths,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added entry %s (%d path(s))\n", entry.ID, len(entry.Paths))
	for _, p := range entry.Paths {
		state := "missing"
		if p.Recorded.Exists {
			state = fmt.Sprintf("%d bytes", p.Recorded.SizeBytes)
		}
		fmt.Printf("  %-8s %s (%s)\n", p.Tier, p.Location, state)
	}
	return nil
}

func init() {
	addCmd.Flags().String("title", "", "entry title (required; the id is derived from it)")
	addCmd.Flags().String("description", "", "what the data is and why it exists (required)")
	addCmd.Flags().String("owner", "", "who is responsible for the data (required)")
	addCmd.Flags().StringSlice("tag", nil, "topic tag (repeatable)")
	addCmd.Flags().StringSlice("path", nil, "tracked storage path, e.g. /scratch/genomics/batch-37 (repeatable)")
	addCmd.MarkFlagRequired("title")
	addCmd.MarkFlagRequired("description")
	addCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(addCmd)
}
