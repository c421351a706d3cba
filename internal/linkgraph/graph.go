// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package linkgraph derives the bipartite reference graph between index
// documents and entry documents and classifies its edges. The builder only
// reports: dangling references and orphans are surfaced for the reconciler
// or a human to act on, never repaired here.
package linkgraph

import (
	"sort"

	"github.com/pdiddy/kbmd/pkg/types"
)

// EdgeKind classifies one index-to-entry reference.
type EdgeKind string

const (
	// EdgeValid references an existing entry.
	EdgeValid EdgeKind = "valid"

	// EdgeDangling references an entry id that does not exist.
	EdgeDangling EdgeKind = "dangling"
)

// Edge is one reference from an index to an entry id.
type Edge struct {
	IndexID string
	EntryID string
	Kind    EdgeKind
}

// Orphan is an entry referenced by zero indexes. Candidates lists indexes
// whose scope plausibly covers the entry; the builder never picks one.
type Orphan struct {
	EntryID    string
	Candidates []string
}

// Graph holds the classified reference structure of the knowledgebase.
type Graph struct {
	Edges   []Edge
	Orphans []Orphan
}

// Dangling returns the edges that reference missing entries.
func (g Graph) Dangling() []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == EdgeDangling {
			out = append(out, e)
		}
	}
	return out
}

// Build constructs the graph from the full entry and index sets. Output is
// deterministic: indexes are walked in id order with their references in
// listed order, and orphans are sorted by entry id.
func Build(entries []types.Entry, indexes []types.Index) Graph {
	known := make(map[string]types.Entry, len(entries))
	for _, e := range entries {
		known[e.ID] = e
	}

	sortedIdx := make([]types.Index, len(indexes))
	copy(sortedIdx, indexes)
	sort.Slice(sortedIdx, func(i, j int) bool { return sortedIdx[i].ID < sortedIdx[j].ID })

	var g Graph
	referenced := make(map[string]bool)
	for _, ix := range sortedIdx {
		for _, entryID := range ix.Entries {
			kind := EdgeDangling
			if _, ok := known[entryID]; ok {
				kind = EdgeValid
				referenced[entryID] = true
			}
			g.Edges = append(g.Edges, Edge{IndexID: ix.ID, EntryID: entryID, Kind: kind})
		}
	}

	for id, e := range known {
		if referenced[id] {
			continue
		}
		g.Orphans = append(g.Orphans, Orphan{
			EntryID:    id,
			Candidates: candidateIndexes(e, sortedIdx),
		})
	}
	sort.Slice(g.Orphans, func(i, j int) bool { return g.Orphans[i].EntryID < g.Orphans[j].EntryID })

	return g
}

// candidateIndexes returns the ids of indexes whose scope matches the
// entry: a tier scope matching any of the entry's path tiers, or a topic
// scope matching one of its tags.
func candidateIndexes(e types.Entry, indexes []types.Index) []string {
	tiers := make(map[types.StorageTier]bool)
	for _, p := range e.Paths {
		tiers[p.Tier] = true
	}
	tags := make(map[string]bool)
	for _, tag := range e.Tags {
		tags[tag] = true
	}

	var out []string
	for _, ix := range indexes {
		switch ix.Scope.Kind {
		case types.ScopeTier:
			if tiers[types.StorageTier(ix.Scope.Value)] {
				out = append(out, ix.ID)
			}
		case types.ScopeTopic:
			if tags[ix.Scope.Value] {
				out = append(out, ix.ID)
			}
		}
	}
	return out
}
