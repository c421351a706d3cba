// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges schema violations, link-graph classifications,
// and freshness diffs into a single ordered changeset. The merge policy:
// schema violations block only their own document, freshness diffs become
// metadata-only patches, and link issues become advisory items that are
// never applied automatically.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/pdiddy/kbmd/internal/freshness"
	"github.com/pdiddy/kbmd/internal/linkgraph"
	"github.com/pdiddy/kbmd/internal/schema"
	"github.com/pdiddy/kbmd/pkg/types"
)

// Input aggregates the analysis results a reconciliation pass consumes.
type Input struct {
	// BaseRef is the sync state the changeset will be computed against.
	BaseRef string

	// Entries is the current entry set by id, used to rebuild path facts.
	Entries map[string]types.Entry

	// Violations maps document ids to their schema violations.
	Violations map[string][]schema.Violation

	// Graph is the classified link structure.
	Graph linkgraph.Graph

	// Diffs are the freshness scan results.
	Diffs []freshness.Diff

	// Extra holds additional mutations to merge in (e.g. regenerated
	// index documents).
	Extra []types.Change
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Changeset types.Changeset

	// Blocked lists documents excluded from the changeset because of
	// schema violations, with the violations that block them.
	Blocked map[string][]schema.Violation

	// ProbeErrors are the paths whose freshness is unknown this pass.
	// Their recorded facts are left untouched.
	ProbeErrors []freshness.Diff
}

// Build runs the merge. Output ordering is deterministic (sorted by
// document id), so repeated passes over unchanged input produce identical
// changesets.
func Build(in Input) Result {
	res := Result{Blocked: map[string][]schema.Violation{}}
	for id, violations := range in.Violations {
		if len(violations) > 0 {
			res.Blocked[id] = violations
		}
	}

	// One pending mutation per document id; merges accumulate fields.
	pending := map[string]*types.Change{}
	merge := func(c types.Change) {
		existing, ok := pending[c.DocID]
		if !ok {
			copied := c
			copied.Fields = map[string]any{}
			for k, v := range c.Fields {
				copied.Fields[k] = v
			}
			pending[c.DocID] = &copied
			return
		}
		// Last writer wins per field; unrelated fields are kept.
		for k, v := range c.Fields {
			existing.Fields[k] = v
		}
		existing.Reasons = appendReasons(existing.Reasons, c.Reasons...)
		if c.Kind == types.ChangeCreate {
			existing.Kind = types.ChangeCreate
		}
	}

	for _, c := range freshnessChanges(in) {
		merge(c)
	}
	for _, c := range in.Extra {
		merge(c)
	}

	var advisories []types.Change
	for _, edge := range in.Graph.Dangling() {
		advisories = append(advisories, types.Change{
			DocID:   edge.IndexID,
			DocType: types.DocIndex,
			Kind:    types.ChangeReview,
			Note:    fmt.Sprintf("index %s references missing entry %s", edge.IndexID, edge.EntryID),
			Related: []string{edge.EntryID},
		})
	}
	for _, o := range in.Graph.Orphans {
		advisories = append(advisories, types.Change{
			DocID:   o.EntryID,
			DocType: types.DocEntry,
			Kind:    types.ChangeReview,
			Note:    fmt.Sprintf("entry %s is not referenced by any index", o.EntryID),
			Related: o.Candidates,
		})
	}

	cs := types.Changeset{BaseRef: in.BaseRef}
	for id, c := range pending {
		if _, blocked := res.Blocked[id]; blocked {
			continue
		}
		cs.Changes = append(cs.Changes, *c)
	}
	cs.Changes = append(cs.Changes, advisories...)
	cs.Sort()

	res.Changeset = cs
	for _, d := range in.Diffs {
		if d.Kind == freshness.ProbeError {
			res.ProbeErrors = append(res.ProbeErrors, d)
		}
	}
	sort.Slice(res.ProbeErrors, func(i, j int) bool {
		if res.ProbeErrors[i].EntryID != res.ProbeErrors[j].EntryID {
			return res.ProbeErrors[i].EntryID < res.ProbeErrors[j].EntryID
		}
		return res.ProbeErrors[i].Path < res.ProbeErrors[j].Path
	})
	return res
}

// freshnessChanges converts drift diffs into metadata-only patches of the
// paths field. Prose and descriptive fields are never touched, and probe
// errors leave the recorded facts as they were.
func freshnessChanges(in Input) []types.Change {
	changed := map[string]bool{}
	for _, d := range in.Diffs {
		switch d.Kind {
		case freshness.SizeChanged, freshness.MtimeChanged, freshness.Missing, freshness.Restored:
			changed[d.EntryID] = true
		}
	}
	if len(changed) == 0 {
		return nil
	}

	byEntryPath := map[string]map[string]freshness.Diff{}
	for _, d := range in.Diffs {
		if byEntryPath[d.EntryID] == nil {
			byEntryPath[d.EntryID] = map[string]freshness.Diff{}
		}
		byEntryPath[d.EntryID][d.Path] = d
	}

	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []types.Change
	for _, id := range ids {
		entry, ok := in.Entries[id]
		if !ok {
			continue
		}
		paths := make([]types.PathRecord, len(entry.Paths))
		copy(paths, entry.Paths)
		for i := range paths {
			d, ok := byEntryPath[id][paths[i].Location]
			if !ok || d.Kind == freshness.ProbeError {
				continue
			}
			paths[i].Recorded = types.ObservedFacts{
				Exists:     d.Observed.Exists,
				SizeBytes:  d.Observed.SizeBytes,
				ModTime:    d.Observed.ModTime,
				ObservedAt: d.ObservedAt,
			}
		}
		out = append(out, types.Change{
			DocID:   id,
			DocType: types.DocEntry,
			Kind:    types.ChangeUpdate,
			Reasons: []types.ChangeReason{types.ReasonFreshness},
			Fields:  map[string]any{"paths": paths},
		})
	}
	return out
}

func appendReasons(have []types.ChangeReason, more ...types.ChangeReason) []types.ChangeReason {
	seen := map[types.ChangeReason]bool{}
	for _, r := range have {
		seen[r] = true
	}
	for _, r := range more {
		if !seen[r] {
			have = append(have, r)
			seen[r] = true
		}
	}
	return have
}
