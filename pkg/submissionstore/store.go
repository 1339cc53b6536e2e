// Package submissionstore persists the last submitted scheduler job id
// for each (cluster, action, directory). Unlike completionstore, mutation
// is single-writer: callers are expected to hold the project's advisory
// lock (pkg/lockfile) for the whole refresh/submit cycle.
package submissionstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

const mainFileName = "submitted.cbor"

// key identifies one submission record.
type key struct {
	Action    string
	Directory string
}

// data is keyed by cluster first so refresh can prune one cluster's
// entries without touching the others (inactive clusters are preserved,
// see DESIGN.md's open-question decision).
type data map[string]map[key]string // cluster -> (action, directory) -> job id

// Store is the submission record.
type Store struct {
	root string
	data data
}

// Load reads the main submission file under root, or starts empty.
func Load(root string) (*Store, error) {
	s := &Store{root: root, data: data{}}
	raw, err := os.ReadFile(filepath.Join(root, mainFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read submission store: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var wire wireData
	if err := cbor.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode submission store: %w", err)
	}
	s.data = wire.toData()
	return s, nil
}

// wireData is the CBOR-friendly encoding: CBOR map keys must be scalar,
// so the (action, directory) composite key is flattened to a slice of
// records rather than used as a Go map key directly.
type wireData struct {
	Clusters []wireCluster `cbor:"clusters"`
}

type wireCluster struct {
	Cluster string       `cbor:"cluster"`
	Entries []wireRecord `cbor:"entries"`
}

type wireRecord struct {
	Action    string `cbor:"action"`
	Directory string `cbor:"directory"`
	JobID     string `cbor:"job_id"`
}

func (w wireData) toData() data {
	d := make(data, len(w.Clusters))
	for _, c := range w.Clusters {
		m := make(map[key]string, len(c.Entries))
		for _, e := range c.Entries {
			m[key{Action: e.Action, Directory: e.Directory}] = e.JobID
		}
		d[c.Cluster] = m
	}
	return d
}

func fromData(d data) wireData {
	w := wireData{Clusters: make([]wireCluster, 0, len(d))}
	for cluster, entries := range d {
		c := wireCluster{Cluster: cluster, Entries: make([]wireRecord, 0, len(entries))}
		for k, jobID := range entries {
			c.Entries = append(c.Entries, wireRecord{Action: k.Action, Directory: k.Directory, JobID: jobID})
		}
		w.Clusters = append(w.Clusters, c)
	}
	return w
}

// SubmittedAnyCluster reports whether any cluster has a submission record
// for (action, directory).
func (s *Store) SubmittedAnyCluster(action, directory string) bool {
	k := key{Action: action, Directory: directory}
	for _, entries := range s.data {
		if _, ok := entries[k]; ok {
			return true
		}
	}
	return false
}

// SubmittedOn returns the job id submitted on cluster for (action,
// directory), and whether a record exists.
func (s *Store) SubmittedOn(cluster, action, directory string) (string, bool) {
	entries, ok := s.data[cluster]
	if !ok {
		return "", false
	}
	jobID, ok := entries[key{Action: action, Directory: directory}]
	return jobID, ok
}

// Record stores the job id submitted on cluster for (action, directory),
// overwriting any existing record, and persists immediately (bounding the
// data-loss window on crash to one submission group).
func (s *Store) Record(cluster, action, directory, jobID string) error {
	if s.data[cluster] == nil {
		s.data[cluster] = make(map[key]string)
	}
	s.data[cluster][key{Action: action, Directory: directory}] = jobID
	return s.save()
}

// Forget removes the submission record for (cluster, action, directory),
// if any, and persists immediately.
func (s *Store) Forget(cluster, action, directory string) error {
	if entries, ok := s.data[cluster]; ok {
		delete(entries, key{Action: action, Directory: directory})
	}
	return s.save()
}

// JobIDsFor returns every job id recorded on cluster, used to build the
// poll set for that cluster's scheduler.
func (s *Store) JobIDsFor(cluster string) []string {
	entries := s.data[cluster]
	out := make([]string, 0, len(entries))
	for _, jobID := range entries {
		out = append(out, jobID)
	}
	return out
}

// PruneAbsent removes, for cluster only, every submission record whose
// job id is not present in activeJobIDs. Entries for other clusters are
// left untouched — the active cluster's scheduler cannot observe them.
func (s *Store) PruneAbsent(cluster string, activeJobIDs map[string]struct{}) error {
	entries, ok := s.data[cluster]
	if !ok {
		return nil
	}
	for k, jobID := range entries {
		if _, active := activeJobIDs[jobID]; !active {
			delete(entries, k)
		}
	}
	return s.save()
}

// ForgetDirectory removes every submission record for directory across
// every cluster and action, used when a directory is removed from the
// workspace.
func (s *Store) ForgetDirectory(directory string) error {
	changed := false
	for _, entries := range s.data {
		for k := range entries {
			if k.Directory == directory {
				delete(entries, k)
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *Store) save() error {
	raw, err := cbor.Marshal(fromData(s.data))
	if err != nil {
		return fmt.Errorf("encode submission store: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, mainFileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create submission temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write submission temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close submission temp file: %w", err)
	}
	return os.Rename(tmpName, filepath.Join(s.root, mainFileName))
}
