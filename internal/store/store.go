// Package store persists spreadsheet documents in a bbolt database, one
// key per workbook inside a single bucket.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/internal/types"
)

// ErrNotFound is returned when a workbook does not exist.
var ErrNotFound = errors.New("workbook not found")

// ErrInvalidName is returned for an empty workbook name.
var ErrInvalidName = errors.New("invalid workbook name")

var workbooksBucket = []byte("workbooks")

// Store is a bbolt-backed workbook store. It is safe for concurrent use.
type Store struct {
	db  *bbolt.DB
	log types.Logger
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the logger for debug/trace output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.log = types.Logger{L: logger} }
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(workbooksBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Log(slog.LevelDebug, "store opened", slog.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// key returns the storage key of a workbook. Names are case-insensitive.
func key(name string) ([]byte, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrInvalidName
	}
	return []byte(name), nil
}

// Put stores the raw document of a workbook, replacing any previous one.
func (s *Store) Put(name string, doc []byte) error {
	k, err := key(name)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(workbooksBucket).Put(k, doc)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	s.log.Trace("workbook stored", slog.String("workbook", string(k)), slog.Int("bytes", len(doc)))
	return nil
}

// Get returns a copy of the raw document of a workbook.
func (s *Store) Get(name string) ([]byte, error) {
	k, err := key(name)
	if err != nil {
		return nil, err
	}
	var doc []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(workbooksBucket).Get(k)
		if v == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		doc = bytes.Clone(v)
		return nil
	})
	return doc, err
}

// Delete removes a workbook.
func (s *Store) Delete(name string) error {
	k, err := key(name)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(workbooksBucket)
		if b.Get(k) == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return b.Delete(k)
	})
	if err == nil {
		s.log.Log(slog.LevelDebug, "workbook deleted", slog.String("workbook", string(k)))
	}
	return err
}

// List returns the names of all stored workbooks, sorted.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(workbooksBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	return names, err
}

// Save stores a spreadsheet as a JSON document.
func (s *Store) Save(name string, sheet *sheetcalc.Spreadsheet) error {
	var buf bytes.Buffer
	if err := sheet.WriteJSON(&buf); err != nil {
		return err
	}
	return s.Put(name, buf.Bytes())
}

// Load reads and replays a stored workbook. opts are passed to
// sheetcalc.ReadJSON.
func (s *Store) Load(name string, opts ...sheetcalc.Option) (*sheetcalc.Spreadsheet, error) {
	doc, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	sheet, err := sheetcalc.ReadJSON(bytes.NewReader(doc), opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return sheet, nil
}
