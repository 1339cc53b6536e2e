package rowlog

import (
	"path/filepath"
	"testing"
)

func TestInitConsole(t *testing.T) {
	if err := Init("debug", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Logger == nil {
		t.Fatal("Logger is nil after Init")
	}
	Logger.Info("test message")
}

func TestInitFileRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "row.log")
	if err := Init("info", path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Logger.Info("test message")
	if err := Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	if err := Init("not-a-level", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Logger.Core().Enabled(-1) { // DebugLevel
		t.Fatal("debug should not be enabled after falling back to info")
	}
}
