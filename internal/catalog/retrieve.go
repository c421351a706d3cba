// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over title, description,
	// and prose.
	Query string

	// Tags filters by one or more tags with AND semantics.
	Tags []string

	// Tier filters to entries with a recorded path on that storage tier.
	Tier string

	// Owner filters by entry owner.
	Owner string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && len(q.Tags) == 0 && q.Tier == "" && q.Owner == ""
}

// Result is one catalog row returned by Retrieve.
type Result struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Owner       string   `json:"owner" yaml:"owner"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Tiers       []string `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

// Retrieve queries the catalog with optional full-text search and
// structured filters. Full-text queries are ranked by relevance;
// structured-only queries are sorted by entry id.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT e.id, e.title, e.description, e.owner, e.tags, e.tiers
			FROM entries_fts
			JOIN entries e ON e.rowid = entries_fts.rowid
			WHERE entries_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT e.id, e.title, e.description, e.owner, e.tags, e.tiers
			FROM entries e
			WHERE 1=1`)
	}

	if opts.Owner != "" {
		qb.WriteString(` AND e.owner = ?`)
		args = append(args, opts.Owner)
	}

	if opts.Tier != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(e.tiers) WHERE value = ?)`)
		args = append(args, opts.Tier)
	}

	for _, tag := range opts.Tags {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(e.tags) WHERE value = ?)`)
		args = append(args, tag)
	}

	if useFTS {
		qb.WriteString(` ORDER BY entries_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY e.id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r         Result
			tagsJSON  sql.NullString
			tiersJSON sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Owner, &tagsJSON, &tiersJSON); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		if tagsJSON.Valid {
			json.Unmarshal([]byte(tagsJSON.String), &r.Tags)
		}
		if tiersJSON.Valid {
			json.Unmarshal([]byte(tiersJSON.String), &r.Tiers)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}
