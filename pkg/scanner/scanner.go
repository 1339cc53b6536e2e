// Package scanner runs the bounded worker pool that checks for product
// existence and reads directory value files for scan. The value store's
// refresh reads value files with its own worker pool.
package scanner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/rowhpc/row/pkg/completionstore"
)

// DefaultConcurrency is the worker count used when Config.Concurrency is
// unset, tuned to stay saturating on network filesystems without
// overwhelming them.
const DefaultConcurrency = 8

// Progress receives count-only updates as a scan proceeds. Rendering a
// bar from these counts is a CLI concern, out of scope per spec.md §1; the
// engine only ever reports numbers.
type Progress interface {
	// Checked is called once per directory examined (its product files
	// stat'd, or its value file read).
	Checked()
	// Found is called once per directory found complete (ScanProducts) or
	// successfully parsed (ScanValues).
	Found()
	// Skipped is called once per per-file error that was logged and
	// skipped rather than aborting the scan.
	Skipped()
}

// noopProgress discards every update; the default when Config.Progress is
// unset.
type noopProgress struct{}

func (noopProgress) Checked() {}
func (noopProgress) Found()   {}
func (noopProgress) Skipped() {}

// Config configures a Scanner.
type Config struct {
	// Concurrency bounds the worker pool size. Default: DefaultConcurrency.
	Concurrency int

	// Progress receives count-only updates. Defaults to a no-op.
	Progress Progress
}

// Scanner checks product files for a set of (action, directory) pairs and
// emits one completion staging file per invocation via completionstore.
type Scanner struct {
	cfg       Config
	cancelled atomic.Bool
}

// New returns a Scanner with cfg applied (zero-value Concurrency becomes
// DefaultConcurrency; zero-value Progress becomes a no-op).
func New(cfg Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Progress == nil {
		cfg.Progress = noopProgress{}
	}
	return &Scanner{cfg: cfg}
}

// Cancel sets the cooperative cancellation flag. In-flight file reads are
// allowed to finish; workers stop picking up new work between files.
func (s *Scanner) Cancel() {
	s.cancelled.Store(true)
}

// Request is one unit of scan work: does every product in Products exist
// as a regular file directly under Directory.
type Request struct {
	Directory string
	Products  []string
}

// ScanError wraps a failure to even enumerate the workspace root, as
// distinct from a per-file read error (which is logged and skipped).
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "scan workspace " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error { return e.Err }

// ScanProducts checks every request in parallel and writes a single
// staging file recording the directories where every product was found,
// via store.AddStaging(action, ...). It returns the directories found
// complete. Per-directory stat errors are swallowed (the directory is
// simply not reported complete this pass); a caller logs them if desired
// via logErr.
func (s *Scanner) ScanProducts(ctx context.Context, workspaceRoot, action string, requests []Request, store *completionstore.Store, logErr func(directory string, err error)) ([]string, error) {
	if _, err := os.Stat(workspaceRoot); err != nil {
		return nil, &ScanError{Path: workspaceRoot, Err: err}
	}

	var mu sync.Mutex
	var complete []string

	p := pool.New().WithMaxGoroutines(s.cfg.Concurrency)
	for _, req := range requests {
		req := req
		p.Go(func() {
			if s.cancelled.Load() || ctx.Err() != nil {
				return
			}
			s.cfg.Progress.Checked()
			ok, err := allProductsExist(workspaceRoot, req.Directory, req.Products)
			if err != nil {
				s.cfg.Progress.Skipped()
				if logErr != nil {
					logErr(req.Directory, err)
				}
				return
			}
			if ok {
				s.cfg.Progress.Found()
				mu.Lock()
				complete = append(complete, req.Directory)
				mu.Unlock()
			}
		})
	}
	p.Wait()

	if len(complete) > 0 {
		if err := store.AddStaging(action, complete); err != nil {
			return nil, err
		}
	}
	return complete, nil
}

func allProductsExist(workspaceRoot, directory string, products []string) (bool, error) {
	if len(products) == 0 {
		return false, nil
	}
	for _, product := range products {
		info, err := os.Stat(filepath.Join(workspaceRoot, directory, product))
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if info.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

// ValueResult is one directory's parsed value-file outcome.
type ValueResult struct {
	Directory string
	Value     any
	Err       error
}

// ScanValues reads and parses valueFileName from every directory in
// parallel, returning one ValueResult per directory (Err set on a parse
// or unexpected read failure; a missing file yields Value=nil, Err=nil).
func (s *Scanner) ScanValues(ctx context.Context, workspaceRoot, valueFileName string, directories []string) []ValueResult {
	results := make([]ValueResult, len(directories))

	p := pool.New().WithMaxGoroutines(s.cfg.Concurrency)
	for i, directory := range directories {
		i, directory := i, directory
		p.Go(func() {
			if s.cancelled.Load() || ctx.Err() != nil {
				results[i] = ValueResult{Directory: directory}
				return
			}
			s.cfg.Progress.Checked()
			value, err := readValue(workspaceRoot, directory, valueFileName)
			if err != nil {
				s.cfg.Progress.Skipped()
			} else {
				s.cfg.Progress.Found()
			}
			results[i] = ValueResult{Directory: directory, Value: value, Err: err}
		})
	}
	p.Wait()

	return results
}

func readValue(workspaceRoot, directory, valueFileName string) (any, error) {
	if valueFileName == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(workspaceRoot, directory, valueFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
