// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog maintains a SQLite full-text index over knowledgebase
// entries. The database is a disposable read model: the markdown documents
// stay authoritative and the catalog can be rebuilt from them at any time.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/kbmd/internal/docstore"
	"github.com/pdiddy/kbmd/pkg/types"
)

const (
	catalogDir = "catalog"
	dbFile     = "catalog.db"
)

// Store manages the catalog SQLite database for one knowledgebase.
type Store struct {
	db         *sql.DB
	docs       *docstore.Store
	maxResults int
}

// NewStore opens or creates the catalog database under the knowledgebase
// root, creating the schema if it does not exist.
func NewStore(docs *docstore.Store, cfg types.CatalogConfig) (*Store, error) {
	dbDir := filepath.Join(docs.Root(), catalogDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, docs: docs, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			description TEXT,
			owner TEXT,
			tags TEXT,
			tiers TEXT,
			date_added TEXT,
			prose TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_owner ON entries(owner)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			entry_id TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entries_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE entries_fts USING fts5(title, description, prose, content=entries, content_rowid=rowid)`,
			`CREATE TRIGGER entries_ai AFTER INSERT ON entries BEGIN
				INSERT INTO entries_fts(rowid, title, description, prose) VALUES (new.rowid, new.title, new.description, new.prose);
			END`,
			`CREATE TRIGGER entries_ad AFTER DELETE ON entries BEGIN
				INSERT INTO entries_fts(entries_fts, rowid, title, description, prose) VALUES('delete', old.rowid, old.title, old.description, old.prose);
			END`,
			`CREATE TRIGGER entries_au AFTER UPDATE ON entries BEGIN
				INSERT INTO entries_fts(entries_fts, rowid, title, description, prose) VALUES('delete', old.rowid, old.title, old.description, old.prose);
				INSERT INTO entries_fts(rowid, title, description, prose) VALUES (new.rowid, new.title, new.description, new.prose);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// RebuildSummary holds counts from a catalog rebuild run.
type RebuildSummary struct {
	Indexed int
	Updated int
	Skipped int
	Removed int
	Failed  int
}

// Total returns the number of entry documents processed.
func (s RebuildSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Rebuild walks the entry documents and brings the catalog up to date.
// Documents whose files have not changed since the last rebuild are
// skipped; rows for documents removed from disk are dropped. Per-document
// failures are reported to w and counted, never fatal.
func (s *Store) Rebuild(ctx context.Context, w io.Writer) (RebuildSummary, error) {
	ids, err := s.docs.EntryIDs()
	if err != nil {
		return RebuildSummary{}, fmt.Errorf("listing entries: %w", err)
	}

	var summary RebuildSummary
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		seen[id] = true

		path := s.docs.EntryPath(id)
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE entry_id = ?`, id,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		doc, err := s.docs.Load(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}
		entry, err := doc.Entry()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}

		if err := s.indexEntry(ctx, entry, doc.Prose, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s\n", id)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s\n", id)
			summary.Indexed++
		}
	}

	removed, err := s.pruneMissing(ctx, seen)
	if err != nil {
		return summary, err
	}
	summary.Removed = removed

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, removed: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Removed, summary.Failed)
	return summary, nil
}

func (s *Store) indexEntry(ctx context.Context, entry types.Entry, prose, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tagsJSON, _ := json.Marshal(entry.Tags)
	tiers := make([]string, 0, len(entry.Paths))
	for _, p := range entry.Paths {
		tiers = append(tiers, string(p.Tier))
	}
	tiersJSON, _ := json.Marshal(tiers)

	dateStr := ""
	if !entry.DateAdded.IsZero() {
		dateStr = entry.DateAdded.Format(time.RFC3339)
	}

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, entry.ID); err != nil {
			return fmt.Errorf("deleting old row: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (id, title, description, owner, tags, tiers, date_added, prose)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Description, entry.Owner,
		string(tagsJSON), string(tiersJSON), dateStr, prose,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (entry_id, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(entry_id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		entry.ID, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

// pruneMissing drops catalog rows for entry ids no longer present on disk.
func (s *Store) pruneMissing(ctx context.Context, seen map[string]bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id FROM indexing_status`)
	if err != nil {
		return 0, fmt.Errorf("listing indexed entries: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning indexed entry: %w", err)
		}
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("removing entry %s: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM indexing_status WHERE entry_id = ?`, id); err != nil {
			return 0, fmt.Errorf("removing status %s: %w", id, err)
		}
	}
	return len(stale), nil
}
