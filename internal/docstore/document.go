// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore reads and writes knowledgebase documents: markdown files
// with an embedded YAML metadata block followed by free-form prose.
//
// The metadata block is kept as a YAML node tree rather than decoded into a
// struct, so unknown fields survive a load/save cycle untouched and a saved
// document loads back byte-identically.
package docstore

import (
	"bytes"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbmd/pkg/types"
)

const delimiter = "---"

// ParseError reports a document that could not be parsed. Parse failures
// are per-document outcomes, not store-wide faults.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is one knowledgebase file: a structured metadata block plus
// prose. The prose is never interpreted.
type Document struct {
	// meta is the YAML mapping node of the metadata block, or nil when the
	// document has no block.
	meta *yaml.Node

	// Prose is the markdown body following the metadata block, verbatim.
	Prose string
}

// Parse splits raw document bytes into metadata and prose. A document
// without a leading metadata block parses to empty metadata; an unclosed
// or syntactically invalid block is an error.
func Parse(data []byte) (*Document, error) {
	text := string(data)
	if !strings.HasPrefix(text, delimiter+"\n") {
		return &Document{Prose: text}, nil
	}

	rest := text[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter+"\n")
	var block, prose string
	switch {
	case strings.HasPrefix(rest, delimiter+"\n"):
		// Empty metadata block.
		prose = rest[len(delimiter)+1:]
	case end >= 0:
		block = rest[:end+1]
		prose = rest[end+len(delimiter)+2:]
	case strings.HasSuffix(rest, "\n"+delimiter):
		block = rest[:len(rest)-len(delimiter)]
	default:
		return nil, fmt.Errorf("metadata block is not closed")
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return nil, fmt.Errorf("metadata block: %w", err)
	}

	doc := &Document{Prose: prose}
	if len(root.Content) > 0 {
		if root.Content[0].Kind != yaml.MappingNode {
			return nil, fmt.Errorf("metadata block is not a mapping")
		}
		doc.meta = root.Content[0]
	}
	return doc, nil
}

// Bytes serializes the document. Documents produced by Bytes parse back to
// an equivalent Document, and re-serializing is byte-stable.
func (d *Document) Bytes() ([]byte, error) {
	if d.meta == nil {
		return []byte(d.Prose), nil
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.meta); err != nil {
		return nil, fmt.Errorf("encoding metadata block: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding metadata block: %w", err)
	}
	buf.WriteString(delimiter + "\n")
	buf.WriteString(d.Prose)
	return buf.Bytes(), nil
}

// Fields decodes the metadata block into a generic map for schema
// validation. Mutating the returned map does not affect the document.
func (d *Document) Fields() (map[string]any, error) {
	if d.meta == nil {
		return map[string]any{}, nil
	}
	fields := map[string]any{}
	if err := d.meta.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding metadata block: %w", err)
	}
	return fields, nil
}

// Field returns the decoded value of one metadata key.
func (d *Document) Field(name string) (any, bool) {
	if d.meta == nil {
		return nil, false
	}
	for i := 0; i+1 < len(d.meta.Content); i += 2 {
		if d.meta.Content[i].Value == name {
			var v any
			if err := d.meta.Content[i+1].Decode(&v); err != nil {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// SetField writes one metadata key, replacing its value in place when the
// key exists and appending it otherwise. All other keys, their order, and
// the prose are untouched.
func (d *Document) SetField(name string, value any) error {
	valNode := &yaml.Node{}
	if err := valNode.Encode(value); err != nil {
		return fmt.Errorf("encoding field %q: %w", name, err)
	}

	if d.meta == nil {
		d.meta = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	for i := 0; i+1 < len(d.meta.Content); i += 2 {
		if d.meta.Content[i].Value == name {
			d.meta.Content[i+1] = valNode
			return nil
		}
	}
	d.meta.Content = append(d.meta.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
		valNode,
	)
	return nil
}

// Entry decodes the metadata block into an Entry.
func (d *Document) Entry() (types.Entry, error) {
	var e types.Entry
	if d.meta == nil {
		return e, fmt.Errorf("document has no metadata block")
	}
	if err := d.meta.Decode(&e); err != nil {
		return e, fmt.Errorf("decoding entry metadata: %w", err)
	}
	return e, nil
}

// Index decodes the metadata block into an Index.
func (d *Document) Index() (types.Index, error) {
	var ix types.Index
	if d.meta == nil {
		return ix, fmt.Errorf("document has no metadata block")
	}
	if err := d.meta.Decode(&ix); err != nil {
		return ix, fmt.Errorf("decoding index metadata: %w", err)
	}
	return ix, nil
}

// FromEntry builds a document whose metadata block is the given entry.
func FromEntry(e types.Entry, prose string) (*Document, error) {
	return fromValue(e, prose)
}

// FromIndex builds a document whose metadata block is the given index.
func FromIndex(ix types.Index, prose string) (*Document, error) {
	return fromValue(ix, prose)
}

func fromValue(v any, prose string) (*Document, error) {
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return &Document{meta: node, Prose: prose}, nil
}
