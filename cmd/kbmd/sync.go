// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/engine"
	"github.com/pdiddy/kbmd/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Build a changeset and publish it to the shared remote",
	Long: `Sync assembles a changeset the same way 'kbmd build' does, applies its
mutations locally, and publishes them to the shared git remote as a single
commit. Before anything is written the remote head is compared against the
reference the changeset was computed from; if another writer has published
in the meantime the sync stops with a conflict and the local documents are
left untouched. Re-run sync to recompute against the new remote state.

Transient transport failures are retried with exponential backoff.
Conflicts are never retried.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	regen, _ := cmd.Flags().GetBool("indexes")
	noScan, _ := cmd.Flags().GetBool("no-scan")

	ctx := context.Background()
	res, _, err := e.BuildChangeset(ctx, engine.BuildOptions{
		RegenerateIndexes: regen,
		SkipScan:          noScan,
	})
	if err != nil {
		return err
	}

	outcome, err := e.Sync(ctx, res.Changeset, os.Stdout)
	if err != nil {
		var conflict *syncer.ConflictError
		if errors.As(err, &conflict) {
			fmt.Printf("conflict: remote moved from %s; local documents untouched, re-run sync\n",
				shortRef(conflict.Live))
			return err
		}
		return err
	}

	switch outcome.State {
	case syncer.StateClean:
		fmt.Println("nothing to publish")
	case syncer.StatePublished:
		fmt.Printf("published %d document(s) at %s (%d attempt(s))\n",
			outcome.Applied, shortRef(outcome.NewRef), outcome.Attempts)
	}
	return nil
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}

func init() {
	syncCmd.Flags().Bool("indexes", false, "regenerate index documents before publishing")
	syncCmd.Flags().Bool("no-scan", false, "skip filesystem probes; publish document-state fixes only")
	rootCmd.AddCommand(syncCmd)
}
