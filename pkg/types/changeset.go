// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// ChangeKind distinguishes document mutations from advisory items.
type ChangeKind string

const (
	// ChangeCreate introduces a document that does not exist yet.
	ChangeCreate ChangeKind = "create"

	// ChangeUpdate patches metadata fields of an existing document.
	ChangeUpdate ChangeKind = "update"

	// ChangeReview is advisory: a link-integrity finding that requires a
	// human decision. It carries no field patch and is never applied.
	ChangeReview ChangeKind = "needs-review"
)

// ChangeReason records why a mutation was generated.
type ChangeReason string

const (
	ReasonSchemaFix ChangeReason = "schema-fix"
	ReasonLinkFix   ChangeReason = "link-fix"
	ReasonFreshness ChangeReason = "freshness-update"
	ReasonNewEntry  ChangeReason = "new-entry"
)

// DocType distinguishes the two document kinds a change can target.
type DocType string

const (
	DocEntry DocType = "entry"
	DocIndex DocType = "index"
)

// Change is one pending mutation (or advisory) targeting a document.
type Change struct {
	// DocID is the id of the target document.
	DocID string `json:"doc_id" yaml:"doc_id"`

	// DocType says whether DocID names an entry or an index document.
	DocType DocType `json:"doc_type" yaml:"doc_type"`

	Kind    ChangeKind     `json:"kind" yaml:"kind"`
	Reasons []ChangeReason `json:"reasons,omitempty" yaml:"reasons,omitempty"`

	// Fields holds the metadata keys to write for create/update changes.
	// Freshness updates set only recorded-fact keys; prose is never touched.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Note and Related describe advisory items (dangling references,
	// orphans) for human review.
	Note    string   `json:"note,omitempty" yaml:"note,omitempty"`
	Related []string `json:"related,omitempty" yaml:"related,omitempty"`
}

// Changeset is an ordered, deduplicated batch of pending mutations computed
// against a known remote reference.
type Changeset struct {
	// BaseRef is the sync state reference the changeset was computed from.
	BaseRef string `json:"base_ref" yaml:"base_ref"`

	// Changes is sorted by DocID. At most one non-advisory change exists
	// per document id.
	Changes []Change `json:"changes" yaml:"changes"`
}

// Empty reports whether the changeset contains no applicable mutations.
// Advisory items alone do not make a changeset applicable.
func (cs Changeset) Empty() bool {
	for _, c := range cs.Changes {
		if c.Kind != ChangeReview {
			return false
		}
	}
	return true
}

// Mutations returns only the applicable (non-advisory) changes.
func (cs Changeset) Mutations() []Change {
	var out []Change
	for _, c := range cs.Changes {
		if c.Kind != ChangeReview {
			out = append(out, c)
		}
	}
	return out
}

// Advisories returns only the needs-review items.
func (cs Changeset) Advisories() []Change {
	var out []Change
	for _, c := range cs.Changes {
		if c.Kind == ChangeReview {
			out = append(out, c)
		}
	}
	return out
}

// Sort orders changes by document id, advisories after mutations for the
// same id, then by note for stable advisory ordering. Repeated runs over
// unchanged input therefore serialize identically.
func (cs *Changeset) Sort() {
	sort.SliceStable(cs.Changes, func(i, j int) bool {
		a, b := cs.Changes[i], cs.Changes[j]
		if a.DocID != b.DocID {
			return a.DocID < b.DocID
		}
		if (a.Kind == ChangeReview) != (b.Kind == ChangeReview) {
			return a.Kind != ChangeReview
		}
		return a.Note < b.Note
	})
}
