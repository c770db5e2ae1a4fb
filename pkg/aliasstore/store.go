// Package aliasstore persists learned column-name aliases keyed by
// destination table identity, so future identification runs improve.
//
// The on-disk form is a single JSON document:
//
//	{"<schema>.<table>": {"<target column>": ["alias", ...]}}
//
// All mutation goes through a load-merge-save sequence under the store
// lock: the whole file is re-read immediately before every write so that
// runs against different destination tables never clobber each other's
// partitions.
package aliasstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// PersistenceError wraps an alias store read or write failure. Read
// failures degrade to an empty partition; write failures are reported but
// do not invalidate the mapping already produced in memory.
type PersistenceError struct {
	Op     string // "load" or "save"
	Path   string
	Reason string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("alias store %s %s: %s", e.Op, e.Path, e.Reason)
}

// Snapshot is the whole-store content: table identifier -> target column
// name -> ordered aliases.
type Snapshot map[string]map[string][]string

// Store is a file-backed alias store.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// New creates a store at path. The file is created lazily on first save.
func New(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole store. A missing file is an empty store, not an
// error. Malformed content returns an empty snapshot along with a
// PersistenceError so the caller can proceed best-effort.
func (s *Store) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, &PersistenceError{Op: "load", Path: s.path, Reason: err.Error()}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, &PersistenceError{Op: "load", Path: s.path, Reason: "malformed JSON: " + err.Error()}
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Partition returns a copy of one table's alias map. Errors carry a
// PersistenceError; the returned partition is always usable (empty on
// failure).
func (s *Store) Partition(tableID string) (map[string][]string, error) {
	snap, err := s.Load()
	part := make(map[string][]string)
	for name, aliases := range snap[tableID] {
		part[name] = append([]string(nil), aliases...)
	}
	return part, err
}

// MergeAndSave folds the given partition into the named table's entry and
// writes the whole store back atomically. The current on-disk content is
// re-read under the lock first, so other tables' partitions survive
// concurrent runs. Alias lists keep first-seen order; duplicates are not
// appended, which makes repeat runs with identical oracle answers a no-op.
func (s *Store) MergeAndSave(tableID string, partition map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadLocked()
	if err != nil {
		// The file is unreadable; whatever was there cannot be preserved.
		s.log.Warn("alias store unreadable before save, rebuilding", "path", s.path, "error", err)
	}

	current := snap[tableID]
	if current == nil {
		current = make(map[string][]string)
	}
	for name, aliases := range partition {
		for _, alias := range aliases {
			if alias == "" || contains(current[name], alias) {
				continue
			}
			current[name] = append(current[name], alias)
		}
	}
	snap[tableID] = current

	return s.writeLocked(snap)
}

func (s *Store) writeLocked(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
		}
	}

	// Whole-file atomic replace keeps the document valid JSON at all times.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Path: s.path, Reason: err.Error()}
	}

	s.log.Debug("alias store saved", "path", s.path, "tables", len(snap))
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
