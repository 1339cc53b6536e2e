// Package completionstore persists which (action, directory) pairs are
// complete. The main file is written only by the merge step of Refresh;
// every other writer (scanner workers, compute-node scan invocations)
// appends a uniquely named staging file instead, so completion records
// can be produced by many uncoordinated processes without locking.
package completionstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const mainFileName = "completed.cbor"
const stagingDirName = "completed"

// record is the on-disk shape of both the main file and every staging
// file: action name → set of complete directory names.
type record map[string]map[string]struct{}

// Store is the completion record: a persisted main set plus whatever
// staging files have not yet been absorbed by a Refresh.
type Store struct {
	root string // the project's .row directory
	data record
}

// Load reads the main completion file under root, or starts empty if it
// does not exist yet. It does not read staging files; call Refresh to
// merge them in.
func Load(root string) (*Store, error) {
	s := &Store{root: root, data: record{}}
	data, err := os.ReadFile(filepath.Join(root, mainFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read completion store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := cbor.Unmarshal(data, &s.data); err != nil {
		return nil, fmt.Errorf("decode completion store: %w", err)
	}
	return s, nil
}

// IsComplete reports whether directory is recorded complete for action,
// considering only the last-loaded/refreshed main set (not unabsorbed
// staging files — call Refresh first if staging files may be pending).
func (s *Store) IsComplete(action, directory string) bool {
	dirs, ok := s.data[action]
	if !ok {
		return false
	}
	_, ok = dirs[directory]
	return ok
}

// Completed returns the set of directories complete for action.
func (s *Store) Completed(action string) map[string]struct{} {
	out := make(map[string]struct{}, len(s.data[action]))
	for d := range s.data[action] {
		out[d] = struct{}{}
	}
	return out
}

// AddStaging writes a new staging file recording directories as newly
// complete for action. The file name is a random UUID, guaranteeing no
// collision with concurrent scanner processes. The staging file is
// written atomically (temp file + rename) so a crash mid-write leaves no
// partial file for Refresh to merge.
func (s *Store) AddStaging(action string, directories []string) error {
	if len(directories) == 0 {
		return nil
	}
	stagingDir := filepath.Join(s.root, stagingDirName)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	rec := record{action: make(map[string]struct{}, len(directories))}
	for _, d := range directories {
		rec[action][d] = struct{}{}
	}

	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode staging file: %w", err)
	}

	tmp, err := os.CreateTemp(stagingDir, "staging.tmp.*")
	if err != nil {
		return fmt.Errorf("create staging temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	finalPath := filepath.Join(stagingDir, uuid.NewString())
	if err := os.Rename(tmpName, finalPath); err != nil {
		return fmt.Errorf("rename staging file: %w", err)
	}
	return nil
}

// Refresh merges every staging file present under the staging directory
// into the in-memory main set, persists the merged main file, and then
// deletes the consumed staging files. The delete-after-persist ordering
// tolerates crashes: a staging file not yet deleted is either not yet
// reflected in the main file (safe to reapply — union is idempotent) or
// already reflected (reapplying it is a no-op).
func (s *Store) Refresh() error {
	stagingDir := filepath.Join(s.root, stagingDirName)
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read staging dir: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var consumed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(stagingDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue // transient read error; pick it up next refresh
		}
		var staged record
		if err := cbor.Unmarshal(data, &staged); err != nil {
			continue // corrupt staging file; leave it, don't lose other staging data
		}
		s.union(staged)
		consumed = append(consumed, path)
	}

	if err := s.save(); err != nil {
		return err
	}

	for _, path := range consumed {
		_ = os.Remove(path)
	}
	return nil
}

func (s *Store) union(staged record) {
	for action, dirs := range staged {
		if s.data[action] == nil {
			s.data[action] = make(map[string]struct{}, len(dirs))
		}
		for d := range dirs {
			s.data[action][d] = struct{}{}
		}
	}
}

func (s *Store) save() error {
	data, err := cbor.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode completion store: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, mainFileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create completion temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write completion temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close completion temp file: %w", err)
	}
	return os.Rename(tmpName, filepath.Join(s.root, mainFileName))
}

// Uncomplete removes directories from action's completed set in the main
// file, used by the administrative `clean` path. It bypasses staging
// entirely since removal is never append-only.
func (s *Store) Uncomplete(action string, directories []string) error {
	if s.data[action] != nil {
		for _, d := range directories {
			delete(s.data[action], d)
		}
	}
	return s.save()
}

// ForgetDirectory removes directory from every action's completed set, used
// when a directory is removed from the workspace (spec.md's directory
// lifecycle: removal purges all associated state).
func (s *Store) ForgetDirectory(directory string) error {
	changed := false
	for action := range s.data {
		if _, ok := s.data[action][directory]; ok {
			delete(s.data[action], directory)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

// ClearStaging deletes every staging file without merging it, used by
// `clean --directory` to avoid racing a concurrent
// scan against a reset main file (see DESIGN.md's open-question decision).
func (s *Store) ClearStaging() error {
	stagingDir := filepath.Join(s.root, stagingDirName)
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(stagingDir, e.Name()))
	}
	return nil
}
