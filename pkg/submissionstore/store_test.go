package submissionstore

import "testing"

func TestRecordAndSubmittedOn(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if err := s.Record("frontera", "hello", "dir0", "12345"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	jobID, ok := s.SubmittedOn("frontera", "hello", "dir0")
	if !ok || jobID != "12345" {
		t.Fatalf("SubmittedOn() = (%q, %v), want (12345, true)", jobID, ok)
	}
	if !s.SubmittedAnyCluster("hello", "dir0") {
		t.Fatalf("SubmittedAnyCluster() = false, want true")
	}
}

func TestRoundTripAcrossLoad(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.Record("frontera", "hello", "dir0", "12345"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	reloaded, err := Load(root)
	if err != nil {
		t.Fatalf("reload Load() error: %v", err)
	}
	jobID, ok := reloaded.SubmittedOn("frontera", "hello", "dir0")
	if !ok || jobID != "12345" {
		t.Fatalf("reloaded SubmittedOn() = (%q, %v), want (12345, true)", jobID, ok)
	}
}

func TestPruneAbsentOnlyAffectsNamedCluster(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.Record("frontera", "hello", "dir0", "11"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := s.Record("stampede", "hello", "dir0", "22"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if err := s.PruneAbsent("frontera", map[string]struct{}{}); err != nil {
		t.Fatalf("PruneAbsent() error: %v", err)
	}

	if s.SubmittedAnyCluster("hello", "dir0") == false {
		t.Fatalf("SubmittedAnyCluster() = false, want true (stampede entry preserved)")
	}
	if _, ok := s.SubmittedOn("frontera", "hello", "dir0"); ok {
		t.Fatalf("frontera entry should have been pruned")
	}
	if _, ok := s.SubmittedOn("stampede", "hello", "dir0"); !ok {
		t.Fatalf("stampede entry should be preserved")
	}
}

func TestForget(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := s.Record("frontera", "hello", "dir0", "11"); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := s.Forget("frontera", "hello", "dir0"); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}
	if _, ok := s.SubmittedOn("frontera", "hello", "dir0"); ok {
		t.Fatalf("entry should be gone after Forget()")
	}
}
