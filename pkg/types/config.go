// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	// Root is the knowledgebase state directory (the .kbmd directory).
	// It contains entries/, indexes/, catalog/, and syncstate.yaml.
	Root string `json:"root" yaml:"root"`
}

// ScanConfig holds settings for the freshness scanner.
type ScanConfig struct {
	// Workers bounds the number of concurrent filesystem probes (default 8).
	Workers int `json:"workers" yaml:"workers"`

	// ProbeTimeout is the per-path stat timeout (default 5s). A probe that
	// exceeds it is reported as a probe error for that path only.
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
}

// SyncConfig holds settings for publishing to the shared remote.
type SyncConfig struct {
	// Remote is the git remote name (default "origin").
	Remote string `json:"remote" yaml:"remote"`

	// Ref is the branch published to (default "main").
	Ref string `json:"ref" yaml:"ref"`

	// MaxRetries is the number of retry attempts after a transport
	// failure (default 3). Conflicts are never retried.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// CommandTimeout bounds each remote transport call (default 60s).
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout"`
}

// CatalogConfig holds settings for the SQLite catalog index.
type CatalogConfig struct {
	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// EngineConfig groups all stage configurations for one knowledgebase.
type EngineConfig struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Scan    ScanConfig    `json:"scan" yaml:"scan"`
	Sync    SyncConfig    `json:"sync" yaml:"sync"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
}

// RegistryConfig maps knowledgebase names to their repository roots, so one
// machine can manage several knowledgebases.
type RegistryConfig struct {
	// Default names the knowledgebase used when none is given.
	Default string `json:"default" yaml:"default"`

	// Knowledgebases maps a name to the git work tree containing .kbmd/.
	Knowledgebases map[string]string `json:"knowledgebases" yaml:"knowledgebases"`
}
