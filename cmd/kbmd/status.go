// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbmd/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize knowledgebase health",
	Long: `Status reports document counts, schema and link health, and the last
recorded sync state. It reads only the knowledgebase documents; the storage
tiers and the remote are not touched.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}

	st, err := e.Status()
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("entries:    %d\n", st.Entries)
	fmt.Printf("indexes:    %d\n", st.Indexes)
	fmt.Printf("invalid:    %d document(s) with schema violations\n", st.ViolationDocs)
	fmt.Printf("malformed:  %d\n", st.Malformed)
	fmt.Printf("dangling:   %d reference(s)\n", st.Dangling)
	fmt.Printf("orphans:    %d entry(ies) in no index\n", st.Orphans)
	if st.SyncState.IsZero() {
		fmt.Println("sync:       never published")
	} else {
		fmt.Printf("sync:       %s at %s\n", shortRef(st.SyncState.RemoteRef),
			st.SyncState.SyncedAt.Format("2006-01-02 15:04:05 MST"))
	}
	printRegistry()
	return nil
}

// printRegistry lists the knowledgebases registered in the config file.
func printRegistry() {
	var registry types.RegistryConfig
	if err := viper.Unmarshal(&registry); err != nil || len(registry.Knowledgebases) == 0 {
		return
	}

	names := make([]string, 0, len(registry.Knowledgebases))
	for name := range registry.Knowledgebases {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nregistered knowledgebases:")
	for _, name := range names {
		marker := " "
		if name == registry.Default {
			marker = "*"
		}
		fmt.Printf("  %s %-16s %s\n", marker, name, registry.Knowledgebases[name])
	}
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}
