package completionstore

import (
	"path/filepath"
	"testing"
)

func TestStagingMergeAtRefresh(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if err := s.AddStaging("hello", []string{"dir0", "dir1"}); err != nil {
		t.Fatalf("AddStaging() error: %v", err)
	}
	if s.IsComplete("hello", "dir0") {
		t.Fatalf("IsComplete before Refresh() should be false")
	}

	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if !s.IsComplete("hello", "dir0") || !s.IsComplete("hello", "dir1") {
		t.Fatalf("expected dir0 and dir1 complete after Refresh()")
	}

	entries, err := filepath.Glob(filepath.Join(root, stagingDirName, "*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir not empty after Refresh(): %v", entries)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.AddStaging("hello", []string{"dir0"}); err != nil {
		t.Fatalf("AddStaging() error: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() #1 error: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() #2 error: %v", err)
	}
	if !s.IsComplete("hello", "dir0") {
		t.Fatalf("expected dir0 still complete after second Refresh()")
	}
}

func TestRoundTripAcrossLoad(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.AddStaging("hello", []string{"dir0"}); err != nil {
		t.Fatalf("AddStaging() error: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	reloaded, err := Load(root)
	if err != nil {
		t.Fatalf("reload Load() error: %v", err)
	}
	if !reloaded.IsComplete("hello", "dir0") {
		t.Fatalf("reloaded store missing dir0")
	}
}

func TestUncompleteRemovesFromMain(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.AddStaging("hello", []string{"dir0"}); err != nil {
		t.Fatalf("AddStaging() error: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if err := s.Uncomplete("hello", []string{"dir0"}); err != nil {
		t.Fatalf("Uncomplete() error: %v", err)
	}
	if s.IsComplete("hello", "dir0") {
		t.Fatalf("dir0 still complete after Uncomplete()")
	}
}
