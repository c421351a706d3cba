// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbmd/internal/engine"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new knowledgebase in a git work tree",
	Long: `Init creates the .kbmd state directory (entries/, indexes/) inside a
git work tree. The work tree must already be a git repository so sync has
somewhere to publish. It refuses to overwrite an existing knowledgebase.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	} else if flagDir, _ := cmd.Flags().GetString("dir"); flagDir != "" {
		dir = flagDir
	} else if cwd, err := os.Getwd(); err == nil {
		dir = cwd
	}

	cfg, err := engineConfig()
	if err != nil {
		return err
	}

	e, err := engine.Init(dir, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Initialized knowledgebase in %s\n", e.Store().Root())
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
