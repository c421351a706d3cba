// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model and configuration for kbmd:
// entries, indexes, changesets, sync state, and per-stage settings.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StorageTier identifies the class of storage a path lives on.
type StorageTier string

const (
	TierScratch  StorageTier = "scratch"
	TierProjects StorageTier = "projects"
	TierCold     StorageTier = "cold"
	TierCloud    StorageTier = "cloud"
)

// KnownTiers lists every valid storage tier.
var KnownTiers = []StorageTier{TierScratch, TierProjects, TierCold, TierCloud}

// ParseTier converts a string to a StorageTier. Unknown values are an error;
// every recorded path must resolve to exactly one tier.
func ParseTier(s string) (StorageTier, error) {
	for _, t := range KnownTiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown storage tier %q (expected one of scratch, projects, cold, cloud)", s)
}

// TierForPath derives a storage tier from the leading component of an
// absolute path ("/scratch/x" -> scratch). The second return is false when
// the root component is not a known tier.
func TierForPath(path string) (StorageTier, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	root, _, _ := strings.Cut(trimmed, "/")
	t, err := ParseTier(root)
	if err != nil {
		return "", false
	}
	return t, true
}

// ObservedFacts are the last-known filesystem facts for one path. They are
// written only by the freshness scanner, never edited by hand.
type ObservedFacts struct {
	Exists     bool      `json:"exists" yaml:"exists"`
	SizeBytes  int64     `json:"size_bytes" yaml:"size_bytes"`
	ModTime    time.Time `json:"mod_time" yaml:"mod_time"`
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`
}

// PathRecord is one filesystem location tracked by an entry.
type PathRecord struct {
	// Location is the absolute path on shared storage.
	Location string `json:"location" yaml:"location"`

	// Tier is the storage tier the location resolves to.
	Tier StorageTier `json:"tier" yaml:"tier"`

	// Recorded holds the facts from the most recent freshness scan.
	Recorded ObservedFacts `json:"recorded" yaml:"recorded"`
}

// Entry is the metadata record for one dataset or project.
type Entry struct {
	// ID is the stable slug identifying the entry. Immutable once assigned
	// and unique across the knowledgebase.
	ID string `json:"id" yaml:"id"`

	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`

	// Paths lists the filesystem locations the entry describes, in order.
	Paths []PathRecord `json:"paths" yaml:"paths"`

	Owner string   `json:"owner" yaml:"owner"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	DateAdded time.Time `json:"date_added" yaml:"date_added"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9\s-]`)
var slugCollapse = regexp.MustCompile(`[\s-]+`)

// Slugify converts a free-form name into an entry id: lowercase, punctuation
// stripped, runs of whitespace and hyphens collapsed to single hyphens.
// Slugify is idempotent.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
