package sheetcalc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Document is the persisted form of a spreadsheet: the raw text of every
// nonempty cell plus a version string. Cells keep the order in which they
// were decoded, and Load replays them in that order.
//
// The JSON shape is
//
//	{"cells": {"A1": {"stringForm": "=B1+2"}}, "Version": "default"}
//
// and the YAML shape mirrors it.
type Document struct {
	Cells   []DocumentCell
	Version string
}

// DocumentCell is one persisted cell.
type DocumentCell struct {
	Name       string
	StringForm string // raw text, '=' prefix for formulas
}

type stringForm struct {
	StringForm string `json:"stringForm" yaml:"stringForm"`
}

// Document returns the persisted form of the spreadsheet, cells sorted by
// name.
func (s *Spreadsheet) Document() Document {
	names := s.NonemptyCellNames()
	doc := Document{
		Cells:   make([]DocumentCell, 0, len(names)),
		Version: s.cfg.version,
	}
	for _, name := range names {
		doc.Cells = append(doc.Cells, DocumentCell{
			Name:       name,
			StringForm: s.cells[name].contents.String(),
		})
	}
	return doc
}

// Load builds a spreadsheet by replaying every document cell through
// SetContentsOfCell, then checks the document version against the expected
// one (WithVersion, default DefaultVersion). The returned spreadsheet is not
// marked changed.
func Load(doc Document, opts ...Option) (*Spreadsheet, error) {
	s := New(opts...)
	for _, c := range doc.Cells {
		if logEnabled(s.logger, LevelTrace) {
			s.logger.LogAttrs(context.Background(), LevelTrace, "replaying cell",
				slog.String("cell", c.Name),
				slog.String("stringForm", c.StringForm))
		}
		if _, err := s.SetContentsOfCell(c.Name, c.StringForm); err != nil {
			return nil, &DocumentError{Op: "load", Err: fmt.Errorf("cell %s: %w", c.Name, err)}
		}
	}
	if doc.Version != s.cfg.version {
		return nil, &VersionError{Want: s.cfg.version, Got: doc.Version}
	}
	s.changed = false
	if logEnabled(s.logger, slog.LevelDebug) {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "document loaded",
			slog.Int("cells", len(doc.Cells)),
			slog.String("version", doc.Version))
	}
	return s, nil
}

// ReadJSON decodes a JSON document from r and loads it.
func ReadJSON(r io.Reader, opts ...Option) (*Spreadsheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DocumentError{Op: "read", Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Op: "decode", Err: err}
	}
	return Load(doc, opts...)
}

// WriteJSON encodes the spreadsheet as an indented JSON document.
func (s *Spreadsheet) WriteJSON(w io.Writer) error {
	data, err := json.Marshal(s.Document())
	if err != nil {
		return &DocumentError{Op: "encode", Err: err}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return &DocumentError{Op: "encode", Err: err}
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &DocumentError{Op: "write", Err: err}
	}
	return nil
}

// ReadYAML decodes a YAML document from r and loads it.
func ReadYAML(r io.Reader, opts ...Option) (*Spreadsheet, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, &DocumentError{Op: "decode", Err: err}
	}
	return Load(doc, opts...)
}

// WriteYAML encodes the spreadsheet as a YAML document.
func (s *Spreadsheet) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Document()); err != nil {
		return &DocumentError{Op: "encode", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &DocumentError{Op: "write", Err: err}
	}
	return nil
}

// OpenFile reads and loads the document at path. Files ending in .yaml or
// .yml are read as YAML, everything else as JSON.
func OpenFile(path string, opts ...Option) (*Spreadsheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DocumentError{Op: "read", Err: err}
	}
	defer f.Close()
	if isYAMLPath(path) {
		return ReadYAML(f, opts...)
	}
	return ReadJSON(f, opts...)
}

// SaveFile atomically writes the spreadsheet to path, in YAML for .yaml and
// .yml files and JSON otherwise, and clears the changed flag.
func (s *Spreadsheet) SaveFile(path string) error {
	var buf bytes.Buffer
	var err error
	if isYAMLPath(path) {
		err = s.WriteYAML(&buf)
	} else {
		err = s.WriteJSON(&buf)
	}
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &DocumentError{Op: "write", Err: err}
	}
	s.changed = false
	if logEnabled(s.logger, slog.LevelDebug) {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "document saved",
			slog.String("path", path))
	}
	return nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// MarshalJSON writes cells as an object in Cells order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"cells":{`)
	for i, c := range d.Cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(stringForm{StringForm: c.StringForm})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"Version":`)
	version, err := json.Marshal(d.Version)
	if err != nil {
		return nil, err
	}
	buf.Write(version)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a document, keeping cells in the order their keys
// appear. Top-level keys match case-insensitively; unknown keys are ignored.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	*d = Document{}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		switch {
		case strings.EqualFold(key, "cells"):
			if d.Cells, err = readCells(dec); err != nil {
				return err
			}
		case strings.EqualFold(key, "version"):
			if err := dec.Decode(&d.Version); err != nil {
				return fmt.Errorf("version: %w", err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	return expectDelim(dec, '}')
}

func readCells(dec *json.Decoder) ([]DocumentCell, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("cells: expected an object, got %v", tok)
	}
	cells := []DocumentCell{}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var sf stringForm
		if err := dec.Decode(&sf); err != nil {
			return nil, fmt.Errorf("cell %s: %w", name, err)
		}
		cells = append(cells, DocumentCell{Name: name, StringForm: sf.StringForm})
	}
	return cells, expectDelim(dec, '}')
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected an object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// MarshalYAML writes cells as a mapping in Cells order.
func (d Document) MarshalYAML() (any, error) {
	cells := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range d.Cells {
		var val yaml.Node
		if err := val.Encode(stringForm{StringForm: c.StringForm}); err != nil {
			return nil, err
		}
		cells.Content = append(cells.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name},
			&val)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "cells"},
			cells,
			{Kind: yaml.ScalarNode, Value: "Version"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: d.Version},
		},
	}, nil
}

// UnmarshalYAML reads a document, keeping cells in mapping order.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	*d = Document{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch {
		case strings.EqualFold(key.Value, "cells"):
			if val.Tag == "!!null" {
				continue
			}
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: cells: expected a mapping", val.Line)
			}
			d.Cells = make([]DocumentCell, 0, len(val.Content)/2)
			for j := 0; j+1 < len(val.Content); j += 2 {
				var sf stringForm
				if err := val.Content[j+1].Decode(&sf); err != nil {
					return fmt.Errorf("cell %s: %w", val.Content[j].Value, err)
				}
				d.Cells = append(d.Cells, DocumentCell{Name: val.Content[j].Value, StringForm: sf.StringForm})
			}
		case strings.EqualFold(key.Value, "version"):
			if err := val.Decode(&d.Version); err != nil {
				return fmt.Errorf("version: %w", err)
			}
		}
	}
	return nil
}
