// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/kbmd/pkg/types"
)

const (
	entriesDir = "entries"
	indexesDir = "indexes"
	docExt     = ".md"
)

// Store reads and writes documents under a knowledgebase root directory
// (the .kbmd directory): entries/ holds entry documents, indexes/ holds
// index documents, one file per document id.
type Store struct {
	root string
}

// Open attaches to an existing knowledgebase root. A missing or unreadable
// root is a store-wide failure.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening store root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store root %s is not a directory", root)
	}
	return &Store{root: root}, nil
}

// Init creates the knowledgebase layout under root and returns the store.
// It fails if root already exists.
func Init(root string) (*Store, error) {
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("store root %s already exists", root)
	}
	for _, dir := range []string{root, filepath.Join(root, entriesDir), filepath.Join(root, indexesDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the knowledgebase root directory.
func (s *Store) Root() string { return s.root }

// EntryPath returns the file path of an entry document.
func (s *Store) EntryPath(id string) string {
	return filepath.Join(s.root, entriesDir, id+docExt)
}

// IndexPath returns the file path of an index document.
func (s *Store) IndexPath(id string) string {
	return filepath.Join(s.root, indexesDir, id+docExt)
}

// Load reads and parses the document at path. Parse failures are returned
// as *ParseError so callers can report them per document.
func (s *Store) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

// LoadEntry loads the document for an entry id.
func (s *Store) LoadEntry(id string) (*Document, error) {
	return s.Load(s.EntryPath(id))
}

// LoadIndex loads the document for an index id.
func (s *Store) LoadIndex(id string) (*Document, error) {
	return s.Load(s.IndexPath(id))
}

// Save serializes the document and writes it atomically: to a temp file in
// the target directory, then renamed into place. A cancelled or failed
// save never leaves a partial document behind.
func (s *Store) Save(doc *Document, path string) error {
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serializing %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".kbmd-tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// SaveEntry writes an entry document under its id.
func (s *Store) SaveEntry(id string, doc *Document) error {
	return s.Save(doc, s.EntryPath(id))
}

// SaveIndex writes an index document under its id.
func (s *Store) SaveIndex(id string, doc *Document) error {
	return s.Save(doc, s.IndexPath(id))
}

// EntryIDs returns the ids of all entry documents, sorted.
func (s *Store) EntryIDs() ([]string, error) {
	return s.listIDs(filepath.Join(s.root, entriesDir))
}

// IndexIDs returns the ids of all index documents, sorted.
func (s *Store) IndexIDs() ([]string, error) {
	return s.listIDs(filepath.Join(s.root, indexesDir))
}

// HasEntry reports whether an entry document exists for id.
func (s *Store) HasEntry(id string) bool {
	_, err := os.Stat(s.EntryPath(id))
	return err == nil
}

func (s *Store) listIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// ApplyChange applies one changeset mutation to the document tree. Update
// changes patch the listed metadata fields of the existing document in key
// order; create changes build a fresh document from the fields. Advisory
// changes are a no-op.
func (s *Store) ApplyChange(c types.Change) error {
	if c.Kind == types.ChangeReview {
		return nil
	}

	path := s.EntryPath(c.DocID)
	if c.DocType == types.DocIndex {
		path = s.IndexPath(c.DocID)
	}

	var doc *Document
	if c.Kind == types.ChangeCreate {
		doc = &Document{}
	} else {
		loaded, err := s.Load(path)
		if err != nil {
			return err
		}
		doc = loaded
	}

	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := doc.SetField(k, c.Fields[k]); err != nil {
			return err
		}
	}
	return s.Save(doc, path)
}
