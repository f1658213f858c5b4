// Package state persists the installation record: which profiles are
// selected, the effective configuration, and a history of every change.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kasaio/internal/fsx"
	"kasaio/internal/snapshot"
)

// Mode tells whether the next reconfiguration is a first install or a
// change to an existing one.
type Mode string

const (
	ModeInitial     Mode = "initial"
	ModeReconfigure Mode = "reconfigure"
)

// HistoryEntry records one completed action. Entries are append-only.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Action     string        `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Diff       snapshot.Diff `json:"diff"`
}

// NewHistoryEntry stamps a history entry with a fresh id and the current time.
func NewHistoryEntry(action, snapshotID string, diff snapshot.Diff) HistoryEntry {
	return HistoryEntry{
		ID:         uuid.NewString(),
		Action:     action,
		Timestamp:  time.Now().UTC(),
		SnapshotID: snapshotID,
		Diff:       diff,
	}
}

// InstallationState is the full persistent record of an installation.
type InstallationState struct {
	Mode             Mode              `json:"mode"`
	SelectedProfiles []string          `json:"selected_profiles"`
	Configuration    map[string]string `json:"configuration"`
	Services         []string          `json:"services"`
	History          []HistoryEntry    `json:"history"`
}

// File stores the installation state as a single JSON document.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads the installation state. found is false when no state file
// exists yet, which is the first-install case.
func (f *File) Load() (InstallationState, bool, error) {
	data, found, err := fsx.ReadIfExists(f.path)
	if err != nil {
		return InstallationState{}, false, fmt.Errorf("load state: %w", err)
	}
	if !found || len(data) == 0 {
		return InstallationState{}, false, nil
	}
	var st InstallationState
	if err := json.Unmarshal(data, &st); err != nil {
		return InstallationState{}, false, fmt.Errorf("load state: %w", err)
	}
	return st, true, nil
}

// Save writes the installation state atomically.
func (f *File) Save(st InstallationState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := fsx.WriteAtomic(f.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
