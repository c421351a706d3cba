// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbmd/internal/docstore"
	"github.com/pdiddy/kbmd/pkg/types"
)

// newWorkTree creates a directory that passes the git repository check.
func newWorkTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	return dir
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Init(newWorkTree(t), types.EngineConfig{})
	require.NoError(t, err)
	return e
}

func seedEntry(t *testing.T, e *Engine, entry types.Entry) {
	t.Helper()
	doc, err := docstore.FromEntry(entry, "")
	require.NoError(t, err)
	require.NoError(t, e.Store().SaveEntry(entry.ID, doc))
}

func seedIndex(t *testing.T, e *Engine, ix types.Index) {
	t.Helper()
	doc, err := docstore.FromIndex(ix, "")
	require.NoError(t, err)
	require.NoError(t, e.Store().SaveIndex(ix.ID, doc))
}

func validEntry(id string) types.Entry {
	return types.Entry{
		ID:          id,
		Title:       "Entry " + id,
		Description: "test entry",
		Owner:       "petar",
		DateAdded:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Paths: []types.PathRecord{{
			Location: "/projects/genomics/" + id,
			Tier:     types.TierProjects,
			Recorded: types.ObservedFacts{
				Exists:     true,
				SizeBytes:  4096,
				ObservedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
	}
}

func TestInitRefusesNonGitDirectory(t *testing.T) {
	_, err := Init(t.TempDir(), types.EngineConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestInitRefusesExistingKnowledgebase(t *testing.T) {
	dir := newWorkTree(t)
	_, err := Init(dir, types.EngineConfig{})
	require.NoError(t, err)

	_, err = Init(dir, types.EngineConfig{})
	require.Error(t, err)
}

func TestOpenMissingKnowledgebase(t *testing.T) {
	_, err := Open(t.TempDir(), types.EngineConfig{})
	require.Error(t, err)
}

func TestFindWorkTree(t *testing.T) {
	e := newTestEngine(t)
	nested := filepath.Join(e.workTree, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindWorkTree(nested)
	require.NoError(t, err)
	assert.Equal(t, e.workTree, found)
}

func TestFindWorkTreeNotFound(t *testing.T) {
	_, err := FindWorkTree(t.TempDir())
	require.Error(t, err)
}

func TestLoadReportsPerDocumentFailures(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))

	// Missing required fields.
	incomplete := filepath.Join(e.Store().Root(), "entries", "incomplete.md")
	require.NoError(t, os.WriteFile(incomplete, []byte("---\nid: incomplete\ntitle: x\n---\n"), 0644))

	// Unparseable frontmatter.
	broken := filepath.Join(e.Store().Root(), "entries", "broken.md")
	require.NoError(t, os.WriteFile(broken, []byte("---\nid: broken\n"), 0644))

	snap, err := e.Load()
	require.NoError(t, err)

	assert.Len(t, snap.Entries, 2) // proj-37 and incomplete both decode
	assert.Contains(t, snap.Violations, "incomplete")
	assert.Contains(t, snap.Malformed, "broken")
	assert.False(t, snap.Clean())
}

func TestAddEntryCreatesDocument(t *testing.T) {
	e := newTestEngine(t)

	entry, err := e.AddEntry(context.Background(), NewEntry{
		Title:       "Genome Alignment Batch 37",
		Description: "raw reads",
		Owner:       "petar",
		Tags:        []string{"genomics"},
		Locations:   []string{"/scratch/genomics/batch-37"},
	})
	require.NoError(t, err)
	assert.Equal(t, "genome-alignment-batch-37", entry.ID)
	require.Len(t, entry.Paths, 1)
	assert.Equal(t, types.TierScratch, entry.Paths[0].Tier)
	assert.False(t, entry.Paths[0].Recorded.ObservedAt.IsZero())
	assert.True(t, e.Store().HasEntry(entry.ID))

	doc, err := e.Store().LoadEntry(entry.ID)
	require.NoError(t, err)
	loaded, err := doc.Entry()
	require.NoError(t, err)
	assert.Equal(t, entry.Title, loaded.Title)
}

func TestAddEntryRefusesDuplicate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddEntry(context.Background(), NewEntry{
		Title: "Batch 37", Description: "d", Owner: "petar",
	})
	require.NoError(t, err)

	_, err = e.AddEntry(context.Background(), NewEntry{
		Title: "Batch 37", Description: "other", Owner: "petar",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddEntryValidation(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name string
		ne   NewEntry
	}{
		{"missing title", NewEntry{Description: "d", Owner: "o"}},
		{"missing description", NewEntry{Title: "t", Owner: "o"}},
		{"missing owner", NewEntry{Title: "t", Description: "d"}},
		{"unknown tier", NewEntry{Title: "t2", Description: "d", Owner: "o", Locations: []string{"/nfs/x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AddEntry(context.Background(), tt.ne)
			require.Error(t, err)
		})
	}
}

func TestBuildChangesetReportsLinkIssues(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))
	seedIndex(t, e, types.Index{
		ID:      "toc-genomics",
		Title:   "Genomics",
		Scope:   types.IndexScope{Kind: types.ScopeTopic, Value: "genomics"},
		Entries: []string{"proj-37", "proj-gone"},
	})

	res, snap, err := e.BuildChangeset(context.Background(), BuildOptions{SkipScan: true})
	require.NoError(t, err)
	assert.True(t, snap.Clean())

	advisories := res.Changeset.Advisories()
	require.Len(t, advisories, 1)
	assert.Equal(t, "toc-genomics", advisories[0].DocID)
	assert.Equal(t, []string{"proj-gone"}, advisories[0].Related)
}

func TestBuildChangesetRegeneratesIndexes(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))

	res, _, err := e.BuildChangeset(context.Background(), BuildOptions{SkipScan: true, RegenerateIndexes: true})
	require.NoError(t, err)

	var ids []string
	for _, c := range res.Changeset.Mutations() {
		ids = append(ids, c.DocID)
	}
	assert.Contains(t, ids, "by-tier-projects")
}

func TestBuildChangesetExcludesMalformedDocs(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))
	broken := filepath.Join(e.Store().Root(), "entries", "broken.md")
	require.NoError(t, os.WriteFile(broken, []byte("---\nid: broken\n"), 0644))

	res, snap, err := e.BuildChangeset(context.Background(), BuildOptions{SkipScan: true})
	require.NoError(t, err)
	assert.Contains(t, snap.Malformed, "broken")
	for _, c := range res.Changeset.Mutations() {
		assert.NotEqual(t, "broken", c.DocID)
	}
}

func TestApplyWritesMutations(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))

	cs := types.Changeset{Changes: []types.Change{{
		DocID:   "proj-37",
		DocType: types.DocEntry,
		Kind:    types.ChangeUpdate,
		Reasons: []types.ChangeReason{types.ReasonSchemaFix},
		Fields:  map[string]any{"description": "updated description"},
	}}}

	applied, err := e.Apply(cs)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-37"}, applied)

	doc, err := e.Store().LoadEntry("proj-37")
	require.NoError(t, err)
	entry, err := doc.Entry()
	require.NoError(t, err)
	assert.Equal(t, "updated description", entry.Description)
}

func TestStatusCounts(t *testing.T) {
	e := newTestEngine(t)
	seedEntry(t, e, validEntry("proj-37"))
	seedEntry(t, e, validEntry("proj-38"))
	seedIndex(t, e, types.Index{
		ID:      "toc-projects",
		Title:   "Projects",
		Scope:   types.IndexScope{Kind: types.ScopeTier, Value: "projects"},
		Entries: []string{"proj-37", "proj-missing"},
	})

	st, err := e.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Indexes)
	assert.Equal(t, 1, st.Dangling)
	assert.Equal(t, 1, st.Orphans) // proj-38 is in no index
	assert.True(t, st.SyncState.IsZero())
}
