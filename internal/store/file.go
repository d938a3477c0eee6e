package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/fetchcache/internal/logging"
)

// Format is the encoding of a FileStore document.
type Format string

// Supported document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath infers the document format from a file extension.
// Anything other than .json is YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// FileStore keeps every entry in one YAML or JSON document:
//
//	<key>:
//	  value: <any>
//	  storedAt: <RFC 3339 timestamp>
//
// The document is read once by NewFileStore. Put and Remove update the
// in-memory map and rewrite the whole file (temp file + rename) before they
// return; Get never touches the disk. Writers are serialized by writeMu and
// write a snapshot of the map, so mu is only held to swap entries and Gets
// are not blocked by disk I/O. An advisory lock file keeps concurrent
// processes from interleaving writes.
type FileStore struct {
	path   string
	format Format
	opts   options
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewFileStore opens the document at path, creating parent directories as
// needed. A missing file is an empty store. A file that cannot be read or
// parsed is also treated as empty and logged; it is overwritten by the next
// Put or Remove.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("cache file path cannot be empty")
	}

	o := newOptions(opts)
	format := o.format
	if format == "" {
		format = FormatForPath(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &FileStore{
		path:    path,
		format:  format,
		opts:    o,
		logger:  logging.ComponentLogger(o.logger, "filestore"),
		entries: make(map[string]*Entry),
	}
	s.load()
	return s, nil
}

// load populates entries from disk, failing open on every error.
func (s *FileStore) load() {
	unlock, lockErr := acquireFileLock(s.path)
	if lockErr != nil {
		s.logger.Warn().Err(lockErr).Str("path", s.path).Msg("reading cache file without lock")
	} else {
		defer unlock()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("cache file unreadable, starting empty")
		}
		return
	}

	raw, err := s.decode(data)
	if err != nil {
		s.logger.Warn().
			Err(fmt.Errorf("%w: %w", ErrCorrupt, err)).
			Str("path", s.path).
			Msg("cache file corrupted, starting empty")
		return
	}

	for key, r := range raw {
		if key == "" {
			continue
		}
		entry, entryErr := r.toEntry(key)
		if entryErr != nil {
			s.logger.Warn().Err(entryErr).Str("key", key).Msg("skipping invalid cache entry")
			continue
		}
		s.entries[key] = entry
	}

	s.logger.Debug().Str("path", s.path).Int("entries", len(s.entries)).Msg("cache file loaded")
}

func (s *FileStore) decode(data []byte) (map[string]rawRecord, error) {
	raw := make(map[string]rawRecord)
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}

	switch s.format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (s *FileStore) encode(entries map[string]*Entry) ([]byte, error) {
	doc := make(map[string]record, len(entries))
	for key, e := range entries {
		doc[key] = newRecord(e)
	}

	switch s.format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// snapshot copies the entry map. Entries are never mutated in place, so
// sharing the pointers is safe.
func (s *FileStore) snapshot() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = e
	}
	return out
}

// persist writes entries atomically. Must be called with writeMu held.
func (s *FileStore) persist(entries map[string]*Entry) error {
	data, err := s.encode(entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}

	unlock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("acquiring cache file lock: %w", err)
	}
	defer unlock()

	tmpPath := s.path + ".tmp"
	if writeErr := os.WriteFile(tmpPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write cache file: %w", writeErr)
	}
	if renameErr := os.Rename(tmpPath, s.path); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", renameErr)
	}
	return nil
}

// Get implements Store. It only reads the in-memory copy.
func (s *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.clone(), nil
}

// Put implements Store. The value is normalized and the file rewritten
// before Put returns; on a write failure the previous entry is restored.
func (s *FileStore) Put(_ context.Context, key string, value any) error {
	if key == "" {
		return ErrInvalidKey
	}

	normalized, err := Normalize(value)
	if err != nil {
		return err
	}
	e := &Entry{Key: key, Value: normalized, StoredAt: s.opts.now()}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev, hadPrev := s.entries[key]
	s.entries[key] = e
	s.mu.Unlock()

	if err := s.persist(s.snapshot()); err != nil {
		s.mu.Lock()
		if hadPrev {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Remove implements Store. The file is rewritten only if key was present.
func (s *FileStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := s.persist(s.snapshot()); err != nil {
		s.mu.Lock()
		s.entries[key] = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

// Keys implements Store.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.entries), nil
}

// Flush rewrites the document from the in-memory state.
func (s *FileStore) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(s.snapshot())
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Format returns the document format.
func (s *FileStore) Format() Format {
	return s.format
}

// NormalizesValues implements ValueNormalizer.
func (s *FileStore) NormalizesValues() bool {
	return true
}

// Close implements Store. Every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}
