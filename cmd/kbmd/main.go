// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kbmd CLI. Each knowledgebase
// operation is a subcommand: init, add, validate, fresh, build, sync,
// status, search, reindex.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbmd/internal/engine"
	"github.com/pdiddy/kbmd/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the kbmd CLI.
var rootCmd = &cobra.Command{
	Use:   "kbmd",
	Short: "Keep a markdown knowledgebase consistent with the storage it describes",
	Long: `kbmd maintains a knowledgebase of markdown documents that describe
datasets and projects spread across storage tiers. It validates document
metadata, keeps index documents consistent with the entries they list,
detects drift between recorded facts and the filesystem, and publishes
corrections to a shared git remote without clobbering concurrent edits.

Documents stay authoritative: every derived structure (catalog, indexes,
changesets) can be rebuilt from the markdown at any time.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./kbmd.yaml or ~/.config/kbmd/config.yaml)")
	rootCmd.PersistentFlags().String("kb", "", "named knowledgebase from the config registry")
	rootCmd.PersistentFlags().String("dir", "", "work tree containing .kbmd (default: walk up from the current directory)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kbmd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kbmd"))
		}
	}

	viper.SetEnvPrefix("KBMD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// resolveWorkTree picks the work tree for this invocation: --dir wins, then
// a --kb registry lookup, then walking up from the current directory.
func resolveWorkTree(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir, nil
	}

	var registry types.RegistryConfig
	if err := viper.Unmarshal(&registry); err != nil {
		return "", fmt.Errorf("reading knowledgebase registry: %w", err)
	}

	name, _ := cmd.Flags().GetString("kb")
	if name == "" {
		name = registry.Default
	}
	if name != "" {
		dir, ok := registry.Knowledgebases[name]
		if !ok {
			return "", fmt.Errorf("knowledgebase %q not found in config registry", name)
		}
		return dir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return engine.FindWorkTree(cwd)
}

// engineConfig assembles the stage configuration from the config file.
func engineConfig() (types.EngineConfig, error) {
	var cfg types.EngineConfig
	if err := viper.UnmarshalKey("engine", &cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("reading engine config: %w", err)
	}
	return cfg, nil
}

// openEngine resolves the work tree and attaches to its knowledgebase.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	workTree, err := resolveWorkTree(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := engineConfig()
	if err != nil {
		return nil, err
	}
	return engine.Open(workTree, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
