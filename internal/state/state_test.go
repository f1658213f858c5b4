package state

import (
	"os"
	"path/filepath"
	"testing"

	"kasaio/internal/snapshot"
)

func TestLoadMissingFile(t *testing.T) {
	file := NewFile(filepath.Join(t.TempDir(), "state.json"))
	_, found, err := file.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	file := NewFile(filepath.Join(t.TempDir(), "state.json"))

	entry := NewHistoryEntry("install", "snap-1", snapshot.Diff{
		Env: []snapshot.Change{{Key: "KASPA_NETWORK", Type: snapshot.ChangeAdded}},
	})
	st := InstallationState{
		Mode:             ModeInitial,
		SelectedProfiles: []string{"kaspa-node", "postgres"},
		Configuration:    map[string]string{"KASPA_NETWORK": "mainnet"},
		Services:         []string{"kaspad", "postgres"},
		History:          []HistoryEntry{entry},
	}
	if err := file.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := file.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("found = false after save")
	}
	if got.Mode != ModeInitial {
		t.Errorf("mode = %q", got.Mode)
	}
	if len(got.SelectedProfiles) != 2 || got.SelectedProfiles[0] != "kaspa-node" {
		t.Errorf("profiles = %v", got.SelectedProfiles)
	}
	if got.Configuration["KASPA_NETWORK"] != "mainnet" {
		t.Errorf("configuration = %v", got.Configuration)
	}
	if len(got.History) != 1 {
		t.Fatalf("history = %v", got.History)
	}
	h := got.History[0]
	if h.ID != entry.ID || h.Action != "install" || h.SnapshotID != "snap-1" {
		t.Errorf("history entry = %+v", h)
	}
	if len(h.Diff.Env) != 1 || h.Diff.Env[0].Key != "KASPA_NETWORK" {
		t.Errorf("diff = %+v", h.Diff)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	file := NewFile(filepath.Join(dir, "state.json"))

	if err := file.Save(InstallationState{Mode: ModeInitial}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := file.Save(InstallationState{Mode: ModeReconfigure}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, _, err := file.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Mode != ModeReconfigure {
		t.Errorf("mode = %q", got.Mode)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFile(path).Load(); err == nil {
		t.Fatal("expected error for corrupt state")
	}
}
