// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"io"

	"github.com/pdiddy/kbmd/internal/catalog"
)

// RebuildCatalog brings the SQLite catalog up to date with the entry
// documents, reporting per-document progress to w.
func (e *Engine) RebuildCatalog(ctx context.Context, w io.Writer) (catalog.RebuildSummary, error) {
	store, err := catalog.NewStore(e.docs, e.cfg.Catalog)
	if err != nil {
		return catalog.RebuildSummary{}, err
	}
	defer store.Close()
	return store.Rebuild(ctx, w)
}

// Search refreshes the catalog and runs a query against it. The documents
// stay authoritative: the catalog is rebuilt incrementally before every
// search so results never outlive a deleted or edited entry.
func (e *Engine) Search(ctx context.Context, opts catalog.QueryOptions) ([]catalog.Result, error) {
	store, err := catalog.NewStore(e.docs, e.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if _, err := store.Rebuild(ctx, io.Discard); err != nil {
		return nil, err
	}
	return store.Retrieve(ctx, opts)
}
