// Package valuestore loads and caches the per-directory JSON values read
// from each workspace directory's value file, and detects which
// directories changed since the last refresh.
package valuestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/xxh3"
)

// InvalidValueFileError wraps a value-file parse failure with the path
// that caused it.
type InvalidValueFileError struct {
	Path string
	Err  error
}

func (e *InvalidValueFileError) Error() string {
	return fmt.Sprintf("invalid value file %s: %v", e.Path, e.Err)
}

func (e *InvalidValueFileError) Unwrap() error { return e.Err }

// entry is the cached state for one directory: its parsed value and the
// content hash of the value file it was parsed from, used to skip
// re-parsing unchanged files on the next refresh.
type entry struct {
	Value any    `json:"value"`
	Hash  uint64 `json:"hash"`
}

// Store is the persisted `directory → JSON value` cache. A Store is not
// safe for concurrent use by multiple goroutines except where noted
// (Refresh parallelizes internally but the Store itself is single-writer,
// matching the project's advisory-lock discipline).
type Store struct {
	mu      sync.RWMutex
	path    string // values.json path
	entries map[string]entry
}

// Load reads the persisted value cache at path, or returns an empty Store
// if the file does not exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read value cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse value cache %s: %w", path, err)
	}
	return s, nil
}

// Value returns the cached JSON value for directory, or nil if the
// directory has no cached value (never scanned, or no value file).
func (s *Store) Value(directory string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[directory].Value
}

// Directories returns every directory name currently in the cache, in no
// particular order.
func (s *Store) Directories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for d := range s.entries {
		out = append(out, d)
	}
	return out
}

// Refresh enumerates the immediate children of workspaceRoot, excluding
// any whose name matches one of ignorePatterns (doublestar globs, e.g.
// ".row", "*.tmp"), reads and parses valueFileName (when non-empty) from
// every added or content-changed directory in parallel, using a worker
// pool bounded by concurrency, and drops entries for directories that no
// longer exist. It returns the set of directory names that are new to
// the workspace since the last refresh.
func (s *Store) Refresh(workspaceRoot, valueFileName string, concurrency int, ignorePatterns ...string) (added []string, err error) {
	children, err := os.ReadDir(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("read workspace %s: %w", workspaceRoot, err)
	}

	present := make(map[string]struct{}, len(children))
	for _, c := range children {
		if !c.IsDir() {
			continue
		}
		if ignored(c.Name(), ignorePatterns) {
			continue
		}
		present[c.Name()] = struct{}{}
	}

	s.mu.Lock()
	for name := range s.entries {
		if _, ok := present[name]; !ok {
			delete(s.entries, name)
		}
	}
	s.mu.Unlock()

	if concurrency <= 0 {
		concurrency = 8
	}

	type result struct {
		directory string
		entry     entry
		isNew     bool
	}

	var mu sync.Mutex
	var results []result
	var firstErr error

	p := pool.New().WithMaxGoroutines(concurrency)
	for name := range present {
		name := name
		p.Go(func() {
			dirPath := filepath.Join(workspaceRoot, name)
			e, changed, readErr := s.readEntry(dirPath, name, valueFileName)
			if readErr != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = readErr
				}
				mu.Unlock()
				return
			}
			if !changed {
				return
			}
			mu.Lock()
			results = append(results, result{directory: name, entry: e, isNew: !s.has(name)})
			mu.Unlock()
		})
	}
	p.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	s.mu.Lock()
	for _, r := range results {
		if r.isNew {
			added = append(added, r.directory)
		}
		s.entries[r.directory] = r.entry
	}
	s.mu.Unlock()

	return added, nil
}

// ignored reports whether name matches any of patterns (doublestar glob
// syntax). An unparseable pattern is treated as never matching rather
// than failing the whole refresh.
func ignored(name string, patterns []string) bool {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, name)
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Store) has(directory string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[directory]
	return ok
}

// readEntry reads and hashes the value file for one directory, returning
// the (possibly unchanged) entry and whether it differs from the entry
// already cached for that directory.
func (s *Store) readEntry(dirPath, directory, valueFileName string) (entry, bool, error) {
	if valueFileName == "" {
		return entry{Value: nil, Hash: 0}, s.differs(directory, nil, 0), nil
	}

	data, err := os.ReadFile(filepath.Join(dirPath, valueFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return entry{Value: nil, Hash: 0}, s.differs(directory, nil, 0), nil
		}
		return entry{}, false, fmt.Errorf("read value file for %s: %w", directory, err)
	}

	hash := xxh3.Hash(data)
	if !s.differs(directory, data, hash) {
		return entry{}, false, nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return entry{}, false, &InvalidValueFileError{Path: filepath.Join(dirPath, valueFileName), Err: err}
	}
	return entry{Value: value, Hash: hash}, true, nil
}

func (s *Store) differs(directory string, _ []byte, hash uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.entries[directory]
	if !ok {
		return true
	}
	return existing.Hash != hash
}

// Save persists the value cache to its path atomically (write to a
// temp file in the same directory, then rename).
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.Marshal(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal value cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create value cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "values.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp value cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp value cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp value cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename value cache file: %w", err)
	}
	return nil
}
