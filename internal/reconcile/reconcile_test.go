// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbmd/internal/freshness"
	"github.com/pdiddy/kbmd/internal/linkgraph"
	"github.com/pdiddy/kbmd/internal/schema"
	"github.com/pdiddy/kbmd/pkg/types"
)

var (
	mtime    = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scannedAt = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

func proj37() types.Entry {
	return types.Entry{
		ID:          "proj-37",
		Title:       "Project 37",
		Description: "d",
		Owner:       "mlee",
		Paths: []types.PathRecord{{
			Location: "/projects/myproject1",
			Tier:     types.TierProjects,
			Recorded: types.ObservedFacts{Exists: true, SizeBytes: 10 << 30, ModTime: mtime},
		}},
	}
}

func sizeChangedDiff() freshness.Diff {
	return freshness.Diff{
		EntryID:    "proj-37",
		Path:       "/projects/myproject1",
		Kind:       freshness.SizeChanged,
		OldSize:    10 << 30,
		NewSize:    12 << 30,
		Observed:   freshness.ProbeResult{Exists: true, SizeBytes: 12 << 30, ModTime: mtime},
		ObservedAt: scannedAt,
	}
}

func TestBuildFreshnessProducesMetadataOnlyUpdate(t *testing.T) {
	res := Build(Input{
		BaseRef: "abc123",
		Entries: map[string]types.Entry{"proj-37": proj37()},
		Diffs:   []freshness.Diff{sizeChangedDiff()},
	})

	require.Len(t, res.Changeset.Changes, 1)
	c := res.Changeset.Changes[0]
	assert.Equal(t, "proj-37", c.DocID)
	assert.Equal(t, types.ChangeUpdate, c.Kind)
	assert.Equal(t, []types.ChangeReason{types.ReasonFreshness}, c.Reasons)

	// Only the paths field is patched; prose and description fields are
	// never part of a freshness change.
	require.Len(t, c.Fields, 1)
	paths, ok := c.Fields["paths"].([]types.PathRecord)
	require.True(t, ok)
	assert.Equal(t, int64(12<<30), paths[0].Recorded.SizeBytes)
	assert.Equal(t, scannedAt, paths[0].Recorded.ObservedAt)
	assert.Equal(t, "abc123", res.Changeset.BaseRef)
}

func TestBuildProbeErrorLeavesRecordedFacts(t *testing.T) {
	e := proj37()
	e.Paths = append(e.Paths, types.PathRecord{
		Location: "/projects/flaky",
		Tier:     types.TierProjects,
		Recorded: types.ObservedFacts{Exists: true, SizeBytes: 7, ModTime: mtime},
	})

	res := Build(Input{
		Entries: map[string]types.Entry{"proj-37": e},
		Diffs: []freshness.Diff{
			sizeChangedDiff(),
			{EntryID: "proj-37", Path: "/projects/flaky", Kind: freshness.ProbeError, Err: "timeout"},
		},
	})

	require.Len(t, res.Changeset.Changes, 1)
	paths := res.Changeset.Changes[0].Fields["paths"].([]types.PathRecord)
	require.Len(t, paths, 2)
	// The probed path is updated, the failed one keeps its old facts.
	assert.Equal(t, int64(12<<30), paths[0].Recorded.SizeBytes)
	assert.Equal(t, int64(7), paths[1].Recorded.SizeBytes)

	require.Len(t, res.ProbeErrors, 1)
	assert.Equal(t, "/projects/flaky", res.ProbeErrors[0].Path)
}

func TestBuildUnchangedStoreYieldsEmptyChangeset(t *testing.T) {
	in := Input{
		Entries: map[string]types.Entry{"proj-37": proj37()},
		Graph: linkgraph.Build(
			[]types.Entry{proj37()},
			[]types.Index{{ID: "toc", Scope: types.IndexScope{Kind: types.ScopeTier, Value: "projects"}, Entries: []string{"proj-37"}}},
		),
		Diffs: []freshness.Diff{{
			EntryID: "proj-37", Path: "/projects/myproject1", Kind: freshness.Unchanged,
		}},
	}

	first := Build(in)
	second := Build(in)
	assert.True(t, first.Changeset.Empty())
	assert.Equal(t, first.Changeset, second.Changeset)
	assert.Empty(t, first.Changeset.Changes)
}

func TestBuildSchemaViolationBlocksOnlyThatDocument(t *testing.T) {
	other := proj37()
	other.ID = "proj-40"
	other.Paths = []types.PathRecord{{
		Location: "/projects/other",
		Tier:     types.TierProjects,
		Recorded: types.ObservedFacts{Exists: true, SizeBytes: 1, ModTime: mtime},
	}}

	res := Build(Input{
		Entries: map[string]types.Entry{"proj-37": proj37(), "proj-40": other},
		Violations: map[string][]schema.Violation{
			"proj-37": {{Kind: schema.MissingRequired, Field: "owner"}},
		},
		Diffs: []freshness.Diff{
			sizeChangedDiff(),
			{
				EntryID: "proj-40", Path: "/projects/other", Kind: freshness.SizeChanged,
				Observed: freshness.ProbeResult{Exists: true, SizeBytes: 2, ModTime: mtime}, ObservedAt: scannedAt,
			},
		},
	})

	// proj-37 is blocked; proj-40 still flows through.
	require.Len(t, res.Changeset.Changes, 1)
	assert.Equal(t, "proj-40", res.Changeset.Changes[0].DocID)
	require.Contains(t, res.Blocked, "proj-37")
}

func TestBuildLinkIssuesBecomeAdvisories(t *testing.T) {
	g := linkgraph.Build(
		[]types.Entry{proj37()},
		[]types.Index{{ID: "toc-projects", Scope: types.IndexScope{Kind: types.ScopeTier, Value: "projects"}, Entries: []string{"proj-99"}}},
	)

	res := Build(Input{Entries: map[string]types.Entry{"proj-37": proj37()}, Graph: g})

	// Dangling proj-99 plus orphaned proj-37: advisories only.
	assert.True(t, res.Changeset.Empty())
	advisories := res.Changeset.Advisories()
	require.Len(t, advisories, 2)

	byDoc := map[string]types.Change{}
	for _, a := range advisories {
		byDoc[a.DocID] = a
	}
	dangling := byDoc["toc-projects"]
	assert.Contains(t, dangling.Note, "proj-99")
	assert.Equal(t, []string{"proj-99"}, dangling.Related)

	orphan := byDoc["proj-37"]
	assert.Contains(t, orphan.Note, "not referenced")
	assert.Equal(t, []string{"toc-projects"}, orphan.Related)
}

func TestBuildMergesMutationsPerDocument(t *testing.T) {
	res := Build(Input{
		Entries: map[string]types.Entry{"proj-37": proj37()},
		Diffs:   []freshness.Diff{sizeChangedDiff()},
		Extra: []types.Change{{
			DocID:   "proj-37",
			DocType: types.DocEntry,
			Kind:    types.ChangeUpdate,
			Reasons: []types.ChangeReason{types.ReasonSchemaFix},
			Fields:  map[string]any{"tags": []string{"ml"}},
		}},
	})

	// One pending mutation per document id.
	require.Len(t, res.Changeset.Changes, 1)
	c := res.Changeset.Changes[0]
	assert.Len(t, c.Fields, 2)
	assert.ElementsMatch(t,
		[]types.ChangeReason{types.ReasonFreshness, types.ReasonSchemaFix}, c.Reasons)
}

// --- index regeneration ---

func TestRegenerateCreatesTierAndTopicIndexes(t *testing.T) {
	e1 := proj37()
	e1.Tags = []string{"Machine Learning"}
	e2 := types.Entry{
		ID:    "ds-ocean",
		Paths: []types.PathRecord{{Location: "/cold/ocean", Tier: types.TierCold}},
	}

	changes := Regenerate([]types.Entry{e1, e2}, nil)
	require.Len(t, changes, 3)

	byID := map[string]types.Change{}
	for _, c := range changes {
		assert.Equal(t, types.ChangeCreate, c.Kind)
		byID[c.DocID] = c
	}
	assert.Equal(t, []string{"proj-37"}, byID["by-tier-projects"].Fields["entries"])
	assert.Equal(t, []string{"ds-ocean"}, byID["by-tier-cold"].Fields["entries"])
	assert.Equal(t, []string{"proj-37"}, byID["by-topic-machine-learning"].Fields["entries"])
}

func TestRegenerateNoopWhenIndexesMatch(t *testing.T) {
	e := proj37()
	indexes := []types.Index{{
		ID:      "by-tier-projects",
		Title:   "Browse by storage tier: projects",
		Scope:   types.IndexScope{Kind: types.ScopeTier, Value: "projects"},
		Entries: []string{"proj-37"},
	}}

	assert.Empty(t, Regenerate([]types.Entry{e}, indexes))
}

func TestRegenerateUpdatesOnlyListing(t *testing.T) {
	e := proj37()
	indexes := []types.Index{{
		ID:      "by-tier-projects",
		Title:   "Hand-tuned title",
		Scope:   types.IndexScope{Kind: types.ScopeTier, Value: "projects"},
		Entries: []string{"proj-1", "proj-37"},
	}}

	changes := Regenerate([]types.Entry{e}, indexes)
	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, types.ChangeUpdate, c.Kind)
	// The title is not regenerated.
	require.Len(t, c.Fields, 1)
	assert.Equal(t, []string{"proj-37"}, c.Fields["entries"])
}
