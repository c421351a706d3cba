// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"github.com/pdiddy/kbmd/internal/linkgraph"
	"github.com/pdiddy/kbmd/internal/syncer"
	"github.com/pdiddy/kbmd/pkg/types"
)

// Status summarizes the health of the knowledgebase without touching the
// filesystem tiers or the remote.
type Status struct {
	Entries   int `json:"entries" yaml:"entries"`
	Indexes   int `json:"indexes" yaml:"indexes"`
	Malformed int `json:"malformed" yaml:"malformed"`

	// ViolationDocs is the number of documents with schema violations.
	ViolationDocs int `json:"violation_docs" yaml:"violation_docs"`

	Dangling int `json:"dangling" yaml:"dangling"`
	Orphans  int `json:"orphans" yaml:"orphans"`

	SyncState types.SyncState `json:"sync_state" yaml:"sync_state"`
}

// Status loads the knowledgebase and reports document counts, schema and
// link health, and the recorded sync state.
func (e *Engine) Status() (Status, error) {
	snap, err := e.Load()
	if err != nil {
		return Status{}, err
	}

	graph := linkgraph.Build(snap.Entries, snap.Indexes)

	st, err := syncer.LoadSyncState(e.docs.Root())
	if err != nil {
		return Status{}, err
	}

	return Status{
		Entries:       len(snap.Entries),
		Indexes:       len(snap.Indexes),
		Malformed:     len(snap.Malformed),
		ViolationDocs: len(snap.Violations),
		Dangling:      len(graph.Dangling()),
		Orphans:       len(graph.Orphans),
		SyncState:     st,
	}, nil
}
