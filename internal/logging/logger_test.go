package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	logsDir = ""
	settingMu.Lock()
	settings = Settings{}
	logLevel = LevelInfo
	settingMu.Unlock()
}

func TestInitializeDisabledIsNoop(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	if err := Initialize(ws, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".drdoc", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not be created in production mode")
	}

	// Logging into a disabled system must not panic.
	Get(CategoryRouter).Info("dropped message")
}

func TestInitializeCreatesLogFiles(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	if err := Initialize(ws, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	Router("routing decision: %s", "hybrid")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".drdoc", "logs"))
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "router") {
			found = true
			data, _ := os.ReadFile(filepath.Join(ws, ".drdoc", "logs", e.Name()))
			if !strings.Contains(string(data), "routing decision: hybrid") {
				t.Errorf("router log missing message, got: %s", data)
			}
		}
	}
	if !found {
		t.Error("no router log file created")
	}
}

func TestCategoryFiltering(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	err := Initialize(ws, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"semantic": false},
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if IsCategoryEnabled(CategorySemantic) {
		t.Error("semantic category should be disabled")
	}
	if !IsCategoryEnabled(CategoryRouter) {
		t.Error("unlisted categories should default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	if err := Initialize(ws, Settings{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	l := Get(CategoryStore)
	l.Info("should be dropped")
	l.Warn("should be kept")
	CloseAll()

	entries, _ := os.ReadDir(filepath.Join(ws, ".drdoc", "logs"))
	for _, e := range entries {
		if !strings.Contains(e.Name(), "store") {
			continue
		}
		data, _ := os.ReadFile(filepath.Join(ws, ".drdoc", "logs", e.Name()))
		if strings.Contains(string(data), "should be dropped") {
			t.Error("info message leaked past warn level")
		}
		if !strings.Contains(string(data), "should be kept") {
			t.Error("warn message missing")
		}
	}
}
