// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"sort"

	"github.com/pdiddy/kbmd/pkg/types"
)

// Regenerate computes the changes needed to bring the tier-scoped and
// topic-scoped index documents in line with the current entry set. Indexes
// are created or updated, never deleted; an index whose listing already
// matches produces no change, so regeneration over an unchanged entry set
// is a no-op.
func Regenerate(entries []types.Entry, indexes []types.Index) []types.Change {
	existing := make(map[string]types.Index, len(indexes))
	for _, ix := range indexes {
		existing[ix.ID] = ix
	}

	byTier := map[types.StorageTier][]string{}
	byTopic := map[string][]string{}
	for _, e := range entries {
		seen := map[types.StorageTier]bool{}
		for _, p := range e.Paths {
			if !seen[p.Tier] {
				byTier[p.Tier] = append(byTier[p.Tier], e.ID)
				seen[p.Tier] = true
			}
		}
		for _, tag := range e.Tags {
			byTopic[tag] = append(byTopic[tag], e.ID)
		}
	}

	var out []types.Change
	for _, tier := range types.KnownTiers {
		ids := byTier[tier]
		if len(ids) == 0 {
			continue
		}
		out = append(out, indexChange(
			fmt.Sprintf("by-tier-%s", tier),
			fmt.Sprintf("Browse by storage tier: %s", tier),
			types.IndexScope{Kind: types.ScopeTier, Value: string(tier)},
			ids, existing,
		)...)
	}

	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		out = append(out, indexChange(
			fmt.Sprintf("by-topic-%s", types.Slugify(topic)),
			fmt.Sprintf("Browse by topic: %s", topic),
			types.IndexScope{Kind: types.ScopeTopic, Value: topic},
			byTopic[topic], existing,
		)...)
	}
	return out
}

func indexChange(id, title string, scope types.IndexScope, entryIDs []string, existing map[string]types.Index) []types.Change {
	sorted := make([]string, len(entryIDs))
	copy(sorted, entryIDs)
	sort.Strings(sorted)

	current, ok := existing[id]
	if ok && equalIDs(current.Entries, sorted) {
		return nil
	}

	kind := types.ChangeCreate
	fields := map[string]any{
		"id":      id,
		"title":   title,
		"scope":   scope,
		"entries": sorted,
	}
	if ok {
		kind = types.ChangeUpdate
		// Only the listing is regenerated; title edits are respected.
		fields = map[string]any{"entries": sorted}
	}

	return []types.Change{{
		DocID:   id,
		DocType: types.DocIndex,
		Kind:    kind,
		Reasons: []types.ChangeReason{types.ReasonLinkFix},
		Fields:  fields,
	}}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
