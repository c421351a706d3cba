// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ScopeKind selects what an index enumerates.
type ScopeKind string

const (
	// ScopeTier indexes entries by storage tier.
	ScopeTier ScopeKind = "tier"

	// ScopeTopic indexes entries by tag.
	ScopeTopic ScopeKind = "topic"
)

// IndexScope identifies the slice of the knowledgebase an index covers,
// e.g. {tier, scratch} or {topic, genomics}.
type IndexScope struct {
	Kind  ScopeKind `json:"kind" yaml:"kind"`
	Value string    `json:"value" yaml:"value"`
}

// Index is a table-of-contents document listing entries by id.
type Index struct {
	ID    string     `json:"id" yaml:"id"`
	Title string     `json:"title" yaml:"title"`
	Scope IndexScope `json:"scope" yaml:"scope"`

	// Entries holds the referenced entry ids in display order. Every id
	// must resolve to an existing entry after reconciliation.
	Entries []string `json:"entries" yaml:"entries"`
}

// References reports whether the index lists the given entry id.
func (ix Index) References(entryID string) bool {
	for _, id := range ix.Entries {
		if id == entryID {
			return true
		}
	}
	return false
}
