// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine wires the knowledgebase stages together: loading and
// validating documents, scanning freshness, assembling changesets, and
// publishing them. The CLI talks to this package only.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdiddy/kbmd/internal/docstore"
	"github.com/pdiddy/kbmd/internal/freshness"
	"github.com/pdiddy/kbmd/internal/gitremote"
	"github.com/pdiddy/kbmd/internal/linkgraph"
	"github.com/pdiddy/kbmd/internal/reconcile"
	"github.com/pdiddy/kbmd/internal/schema"
	"github.com/pdiddy/kbmd/internal/syncer"
	"github.com/pdiddy/kbmd/pkg/types"
)

const kbDir = ".kbmd"

// Engine runs knowledgebase operations against one work tree.
type Engine struct {
	workTree string
	cfg      types.EngineConfig
	docs     *docstore.Store
}

// Open attaches to the knowledgebase inside workTree. The state directory
// defaults to workTree/.kbmd unless the config overrides it.
func Open(workTree string, cfg types.EngineConfig) (*Engine, error) {
	root := cfg.Store.Root
	if root == "" {
		root = filepath.Join(workTree, kbDir)
	}
	docs, err := docstore.Open(root)
	if err != nil {
		return nil, err
	}
	return &Engine{workTree: workTree, cfg: cfg, docs: docs}, nil
}

// Init creates a fresh knowledgebase layout inside workTree. The work tree
// must already be a git repository; sync has nowhere to publish otherwise.
func Init(workTree string, cfg types.EngineConfig) (*Engine, error) {
	if _, err := os.Stat(filepath.Join(workTree, ".git")); err != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", workTree, err)
	}
	root := cfg.Store.Root
	if root == "" {
		root = filepath.Join(workTree, kbDir)
	}
	docs, err := docstore.Init(root)
	if err != nil {
		return nil, err
	}
	return &Engine{workTree: workTree, cfg: cfg, docs: docs}, nil
}

// Store exposes the underlying document store.
func (e *Engine) Store() *docstore.Store { return e.docs }

// Snapshot is one coherent read of the whole knowledgebase.
type Snapshot struct {
	Entries []types.Entry
	Indexes []types.Index

	// Violations maps document ids to schema violations.
	Violations map[string][]schema.Violation

	// Malformed maps document ids to parse or decode errors. Those
	// documents are excluded from Entries and Indexes.
	Malformed map[string]error
}

// EntryByID returns the snapshot entry map keyed by id.
func (s Snapshot) EntryByID() map[string]types.Entry {
	m := make(map[string]types.Entry, len(s.Entries))
	for _, e := range s.Entries {
		m[e.ID] = e
	}
	return m
}

// Clean reports whether the snapshot has no violations and no malformed
// documents.
func (s Snapshot) Clean() bool {
	return len(s.Violations) == 0 && len(s.Malformed) == 0
}

// Load reads and validates every document. Per-document failures land in
// the snapshot rather than aborting the load; only a store-wide failure
// returns an error.
func (e *Engine) Load() (Snapshot, error) {
	snap := Snapshot{
		Violations: map[string][]schema.Violation{},
		Malformed:  map[string]error{},
	}

	entryIDs, err := e.docs.EntryIDs()
	if err != nil {
		return Snapshot{}, err
	}
	for _, id := range entryIDs {
		doc, err := e.docs.LoadEntry(id)
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		fields, err := doc.Fields()
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		if v := schema.Validate(fields, schema.Entry(), false); len(v) > 0 {
			snap.Violations[id] = v
		}
		entry, err := doc.Entry()
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		snap.Entries = append(snap.Entries, entry)
	}

	indexIDs, err := e.docs.IndexIDs()
	if err != nil {
		return Snapshot{}, err
	}
	for _, id := range indexIDs {
		doc, err := e.docs.LoadIndex(id)
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		fields, err := doc.Fields()
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		if v := schema.Validate(fields, schema.Index(), false); len(v) > 0 {
			snap.Violations[id] = v
		}
		index, err := doc.Index()
		if err != nil {
			snap.Malformed[id] = err
			continue
		}
		snap.Indexes = append(snap.Indexes, index)
	}

	return snap, nil
}

// ScanFreshness probes every recorded path and classifies drift.
func (e *Engine) ScanFreshness(ctx context.Context, snap Snapshot) ([]freshness.Diff, freshness.Summary) {
	scanner := freshness.NewScanner(nil, e.cfg.Scan)
	return scanner.Scan(ctx, snap.Entries)
}

// BuildOptions selects optional changeset inputs.
type BuildOptions struct {
	// RegenerateIndexes adds regenerated by-tier and by-topic index
	// documents to the changeset.
	RegenerateIndexes bool

	// SkipScan assembles the changeset from document state alone,
	// without probing the filesystem.
	SkipScan bool
}

// BuildChangeset runs a full reconciliation pass: validate, link check,
// freshness scan, merge. The result carries the changeset plus everything
// that blocked or failed along the way.
func (e *Engine) BuildChangeset(ctx context.Context, opts BuildOptions) (reconcile.Result, Snapshot, error) {
	snap, err := e.Load()
	if err != nil {
		return reconcile.Result{}, Snapshot{}, err
	}

	st, err := syncer.LoadSyncState(e.docs.Root())
	if err != nil {
		return reconcile.Result{}, snap, err
	}

	var diffs []freshness.Diff
	if !opts.SkipScan {
		diffs, _ = e.ScanFreshness(ctx, snap)
	}

	var extra []types.Change
	if opts.RegenerateIndexes {
		extra = reconcile.Regenerate(snap.Entries, snap.Indexes)
	}

	res := reconcile.Build(reconcile.Input{
		BaseRef:    st.RemoteRef,
		Entries:    snap.EntryByID(),
		Violations: snap.Violations,
		Graph:      linkgraph.Build(snap.Entries, snap.Indexes),
		Diffs:      diffs,
		Extra:      extra,
	})

	// Malformed documents never receive mutations either.
	for id := range snap.Malformed {
		filtered := res.Changeset.Changes[:0]
		for _, c := range res.Changeset.Changes {
			if c.DocID != id || c.Kind == types.ChangeReview {
				filtered = append(filtered, c)
			}
		}
		res.Changeset.Changes = filtered
	}

	return res, snap, nil
}

// Apply writes a changeset's mutations to the local store without
// publishing them. Advisories are skipped. Applied document ids are
// returned in order.
func (e *Engine) Apply(cs types.Changeset) ([]string, error) {
	var applied []string
	for _, c := range cs.Mutations() {
		if err := e.docs.ApplyChange(c); err != nil {
			return applied, fmt.Errorf("applying change to %s: %w", c.DocID, err)
		}
		applied = append(applied, c.DocID)
	}
	sort.Strings(applied)
	return applied, nil
}

// Sync publishes a changeset to the shared remote through git.
func (e *Engine) Sync(ctx context.Context, cs types.Changeset, w io.Writer) (syncer.Outcome, error) {
	transport := gitremote.New(e.workTree, e.cfg.Sync)
	return syncer.New(e.docs, transport, e.cfg.Sync).Sync(ctx, cs, w)
}
