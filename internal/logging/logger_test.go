package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func initDebugWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	dir := filepath.Join(ws, ".librarian")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := `{"logging": {"debug_mode": true, "level": "debug"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(ws); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(CloseAll)
	return ws
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize(""); err == nil {
		t.Error("Initialize accepted an empty workspace path")
	}
}

func TestInitializeProductionModeIsSilent(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize returned %v without a config file", err)
	}
	t.Cleanup(CloseAll)

	Search("this should go nowhere")
	if _, err := os.Stat(filepath.Join(ws, ".librarian", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory created in production mode")
	}
}

func TestDebugModeWritesCategoryFiles(t *testing.T) {
	ws := initDebugWorkspace(t)

	Search("orchestrator ran %d queries", 3)
	Assemble("bundle ready")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".librarian", "logs"))
	if err != nil {
		t.Fatalf("logs directory missing: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "search") {
		t.Errorf("no search log file in %v", names)
	}
	if !strings.Contains(joined, "assemble") {
		t.Errorf("no assemble log file in %v", names)
	}
}

func TestTimerStops(t *testing.T) {
	initDebugWorkspace(t)

	timer := StartTimer(CategorySearch, "test-op")
	timer.Stop()
}
