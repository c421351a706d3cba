// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbmd/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(filepath.Join(t.TempDir(), ".kbmd"))
	require.NoError(t, err)
	return s
}

func TestInitAndOpen(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".kbmd")

	s, err := Init(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())
	assert.DirExists(t, filepath.Join(root, "entries"))
	assert.DirExists(t, filepath.Join(root, "indexes"))

	// Init refuses an existing root.
	_, err = Init(root)
	assert.Error(t, err)

	reopened, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, root, reopened.Root())
}

func TestOpenMissingRoot(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSaveAndLoadEntry(t *testing.T) {
	s := newTestStore(t)

	doc, err := FromEntry(types.Entry{ID: "proj-1", Title: "P1", Description: "d", Owner: "o"}, "\nnotes\n")
	require.NoError(t, err)
	require.NoError(t, s.SaveEntry("proj-1", doc))

	loaded, err := s.LoadEntry("proj-1")
	require.NoError(t, err)
	e, err := loaded.Entry()
	require.NoError(t, err)
	assert.Equal(t, "proj-1", e.ID)
	assert.Equal(t, "\nnotes\n", loaded.Prose)
}

func TestLoadParseErrorType(t *testing.T) {
	s := newTestStore(t)
	path := s.EntryPath("bad")
	require.NoError(t, os.WriteFile(path, []byte("---\nid: [broken\n---\n"), 0o644))

	_, err := s.LoadEntry("bad")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
}

func TestListIDsSorted(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		doc, err := FromEntry(types.Entry{ID: id, Title: id, Description: "d", Owner: "o"}, "")
		require.NoError(t, err)
		require.NoError(t, s.SaveEntry(id, doc))
	}
	// Temp files and dotfiles are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "entries", ".hidden.md"), []byte("x"), 0o644))

	ids, err := s.EntryIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestApplyChangeUpdatePatchesOnlyListedFields(t *testing.T) {
	s := newTestStore(t)
	raw := `---
id: proj-37
title: Project 37
description: original description
custom_field: untouched
owner: mlee
---

Prose stays.
`
	require.NoError(t, os.WriteFile(s.EntryPath("proj-37"), []byte(raw), 0o644))

	err := s.ApplyChange(types.Change{
		DocID:   "proj-37",
		DocType: types.DocEntry,
		Kind:    types.ChangeUpdate,
		Fields:  map[string]any{"owner": "jsmith"},
	})
	require.NoError(t, err)

	doc, err := s.LoadEntry("proj-37")
	require.NoError(t, err)
	fields, err := doc.Fields()
	require.NoError(t, err)
	assert.Equal(t, "jsmith", fields["owner"])
	assert.Equal(t, "untouched", fields["custom_field"])
	assert.Equal(t, "original description", fields["description"])
	assert.Contains(t, doc.Prose, "Prose stays.")
}

func TestApplyChangeCreate(t *testing.T) {
	s := newTestStore(t)

	err := s.ApplyChange(types.Change{
		DocID:   "toc-scratch",
		DocType: types.DocIndex,
		Kind:    types.ChangeCreate,
		Fields: map[string]any{
			"id":      "toc-scratch",
			"title":   "Scratch",
			"scope":   map[string]any{"kind": "tier", "value": "scratch"},
			"entries": []string{"proj-1"},
		},
	})
	require.NoError(t, err)

	doc, err := s.LoadIndex("toc-scratch")
	require.NoError(t, err)
	ix, err := doc.Index()
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-1"}, ix.Entries)
}

func TestApplyChangeAdvisoryIsNoop(t *testing.T) {
	s := newTestStore(t)
	err := s.ApplyChange(types.Change{DocID: "ghost", Kind: types.ChangeReview})
	require.NoError(t, err)
	assert.False(t, s.HasEntry("ghost"))
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	s := newTestStore(t)
	doc, err := FromEntry(types.Entry{ID: "a", Title: "a", Description: "d", Owner: "o"}, "")
	require.NoError(t, err)
	require.NoError(t, s.SaveEntry("a", doc))

	files, err := os.ReadDir(filepath.Join(s.Root(), "entries"))
	require.NoError(t, err)
	for _, f := range files {
		assert.NotContains(t, f.Name(), "kbmd-tmp")
	}
}
