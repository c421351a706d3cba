// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/kbmd/internal/docstore"
	"github.com/pdiddy/kbmd/internal/freshness"
	"github.com/pdiddy/kbmd/pkg/types"
)

// FindWorkTree walks up from dir looking for a directory containing .kbmd.
// It returns the containing directory, or an error when the walk reaches
// the filesystem root without finding one.
func FindWorkTree(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(current, kbDir))
		if err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no %s directory found above %s", kbDir, dir)
		}
		current = parent
	}
}

// NewEntry describes an entry to be created.
type NewEntry struct {
	Title       string
	Description string
	Owner       string
	Tags        []string

	// Locations are tier-relative paths the entry tracks. Each is probed
	// once at creation to record initial facts.
	Locations []string
}

// AddEntry creates a new entry document. The id is derived from the title;
// a duplicate id is refused rather than overwritten. Locations that cannot
// be probed are still recorded, with existence false.
func (e *Engine) AddEntry(ctx context.Context, ne NewEntry) (types.Entry, error) {
	if ne.Title == "" {
		return types.Entry{}, fmt.Errorf("entry title is required")
	}
	if ne.Description == "" {
		return types.Entry{}, fmt.Errorf("entry description is required")
	}
	if ne.Owner == "" {
		return types.Entry{}, fmt.Errorf("entry owner is required")
	}

	id := types.Slugify(ne.Title)
	if id == "" {
		return types.Entry{}, fmt.Errorf("title %q yields an empty id", ne.Title)
	}
	if e.docs.HasEntry(id) {
		return types.Entry{}, fmt.Errorf("entry %s already exists", id)
	}

	now := time.Now().UTC()
	prober := freshness.OSProber{Timeout: e.cfg.Scan.ProbeTimeout}

	entry := types.Entry{
		ID:          id,
		Title:       ne.Title,
		Description: ne.Description,
		Owner:       ne.Owner,
		Tags:        ne.Tags,
		DateAdded:   now,
	}

	for _, loc := range ne.Locations {
		tier, ok := types.TierForPath(loc)
		if !ok {
			return types.Entry{}, fmt.Errorf("path %s does not resolve to a known storage tier", loc)
		}
		rec := types.PathRecord{
			Location: loc,
			Tier:     tier,
			Recorded: types.ObservedFacts{ObservedAt: now},
		}
		res, err := prober.Probe(ctx, loc)
		if err == nil {
			rec.Recorded.Exists = res.Exists
			rec.Recorded.SizeBytes = res.SizeBytes
			rec.Recorded.ModTime = res.ModTime
		}
		entry.Paths = append(entry.Paths, rec)
	}

	doc, err := docstore.FromEntry(entry, "")
	if err != nil {
		return types.Entry{}, fmt.Errorf("encoding entry %s: %w", id, err)
	}
	if err := e.docs.SaveEntry(id, doc); err != nil {
		return types.Entry{}, err
	}
	return entry, nil
}
