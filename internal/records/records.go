// Package records persists incremental-build metadata across builds and
// watch iterations. The store is a JSON object written with two-space
// indentation so diffs stay reviewable; its contents are opaque blobs owned
// by the collaborators that wrote them. Keeping a child entry stable across
// parent rebuilds is what lets downstream consumers assign deterministic
// identifiers.
package records

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/vfs"
)

// Store holds the record tree for one compiler. The top-level compiler's own
// records are the root object itself; each spawned child compiler gets an
// entry under its normalized name, ordered by spawn index. Child stores
// returned by Child share the root's mutex and mutate the parent tree in
// place.
type Store struct {
	mu   *sync.Mutex
	root map[string]any
}

// NewStore returns an empty record store.
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, root: make(map[string]any)}
}

// Reset drops every record while keeping the store identity stable for
// holders of child references.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.root {
		delete(s.root, k)
	}
}

// Get returns the record stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.root[key]
	return v, ok
}

// Set stores a record under key.
func (s *Store) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root[key] = v
}

// Len reports the number of root keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.root)
}

// Child returns the record entry for a spawned child compiler, creating
// intermediate entries as needed. A pre-existing entry at (name, index) is
// reused, never replaced, so identifier continuity survives parent rebuilds.
func (s *Store) Child(name string, index int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, _ := s.root[name].([]any)
	for len(list) <= index {
		list = append(list, map[string]any{})
	}
	entry, ok := list[index].(map[string]any)
	if !ok {
		entry = make(map[string]any)
		list[index] = entry
	}
	s.root[name] = list
	return &Store{mu: s.mu, root: entry}
}

// Load replaces the store contents with the parsed form of data. On a parse
// failure the existing records are left untouched and the error carries the
// fixed "cannot parse records" marker. path is diagnostic context only.
func (s *Store) Load(data []byte, path string) error {
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return errors.RecordsParse(path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.root {
		delete(s.root, k)
	}
	for k, v := range parsed {
		s.root[k] = v
	}
	return nil
}

// Serialize renders the store as a two-space-indented JSON object. An empty
// store serializes to "{}".
func (s *Store) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.root, "", "  ")
}

// ReadFrom loads records from path on fsys. No configured path or a missing
// file yields an empty store and no error; only malformed content fails.
func (s *Store) ReadFrom(fsys vfs.FileSystem, path string) error {
	if path == "" {
		s.Reset()
		return nil
	}
	if _, err := fsys.Stat(path); err != nil {
		if vfs.IsNotExist(err) {
			s.Reset()
			return nil
		}
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to stat records file").
			WithContext("path", path)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to read records file").
			WithContext("path", path)
	}
	return s.Load(data, path)
}

// WriteTo serializes the store to path on fsys, creating missing parent
// directories first. An empty path is a no-op success.
func (s *Store) WriteTo(fsys vfs.FileSystem, path string) error {
	if path == "" {
		return nil
	}
	data, err := s.Serialize()
	if err != nil {
		return errors.RecordsWrite(path, err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir); err != nil {
			return errors.RecordsWrite(path, err)
		}
	}
	if err := fsys.WriteFile(path, data); err != nil {
		return errors.RecordsWrite(path, err)
	}
	return nil
}

// NormalizeName shortens a child-compiler name for use as a records key:
// absolute paths under contextDir become context-relative and separators are
// normalized to forward slashes so records stay portable across machines.
func NormalizeName(contextDir, name string) string {
	if contextDir != "" {
		clean := filepath.Clean(contextDir)
		name = strings.ReplaceAll(name, clean+string(filepath.Separator), "")
		name = strings.ReplaceAll(name, clean, ".")
	}
	return strings.ReplaceAll(name, "\\", "/")
}
