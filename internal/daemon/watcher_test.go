package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConfigWatcher(t *testing.T) {
	cw, err := NewConfigWatcher("config.toml")
	if err != nil {
		t.Fatalf("NewConfigWatcher() failed: %v", err)
	}
	defer cw.Stop()

	if !filepath.IsAbs(cw.Path()) {
		t.Errorf("Path() = %q, want absolute", cw.Path())
	}
	if cw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

func TestConfigWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !cw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := cw.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	if err := cw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if cw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
	if _, ok := <-cw.Changes(); ok {
		t.Error("Changes() should be closed after Stop()")
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	cw, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	defer cw.Stop()

	if err := cw.Start(); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}

func TestConfigWatcher_Events(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cw.Start(); err != nil {
		t.Fatal(err)
	}
	defer cw.Stop()

	// Other files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-cw.Changes():
		t.Fatal("unexpected change for unrelated file")
	case <-time.After(100 * time.Millisecond):
	}

	// Atomic replace, as config.Save does it.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("[sync]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-cw.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}
