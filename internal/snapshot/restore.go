package snapshot

import (
	"context"
	"fmt"

	"kasaio/internal/fsx"
)

// Files names the live configuration files a restore writes back.
type Files struct {
	Compose string
	Env     string
	State   string
}

// RestoreOptions controls restore behavior.
type RestoreOptions struct {
	// BackupCurrent captures the live configuration as a safety snapshot
	// before it is overwritten.
	BackupCurrent bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	SnapshotID       string `json:"snapshot_id"`
	SafetySnapshotID string `json:"safety_snapshot_id,omitempty"`
	RestartRequired  bool   `json:"restart_required"`
	Diff             Diff   `json:"diff"`
}

// Restore writes a snapshot's captured configuration back over the live
// files. Each file is replaced atomically; the snapshot itself is never
// modified, so a failed restore can be retried.
func (s *Store) Restore(ctx context.Context, id string, files Files, opts RestoreOptions) (RestoreResult, error) {
	_, payload, err := s.Get(ctx, id)
	if err != nil {
		return RestoreResult{}, err
	}

	current, err := readCurrent(files)
	if err != nil {
		return RestoreResult{}, &StorageError{Op: "restore", Err: err}
	}

	result := RestoreResult{SnapshotID: id}

	if opts.BackupCurrent {
		safety, err := s.Create(ctx, current, "pre-restore safety backup", map[string]string{
			"restored_from": id,
		})
		if err != nil {
			return RestoreResult{}, err
		}
		result.SafetySnapshotID = safety.ID
	}

	diff, err := DiffSnapshots(ctx, current, payload)
	if err != nil {
		return RestoreResult{}, &StorageError{Op: "restore", Err: fmt.Errorf("diff: %w", err)}
	}
	result.Diff = diff
	result.RestartRequired = diff.ChangeCount() > 0

	for _, w := range []struct {
		path string
		data []byte
	}{
		{files.Compose, payload.ComposeYAML},
		{files.Env, payload.Env},
		{files.State, payload.State},
	} {
		if w.path == "" {
			continue
		}
		if err := fsx.WriteAtomic(w.path, w.data, 0o600); err != nil {
			return result, &StorageError{Op: "restore", Err: err}
		}
	}
	return result, nil
}

// CaptureFiles reads the live configuration files into a payload. Missing
// files read as empty.
func CaptureFiles(files Files) (Payload, error) {
	return readCurrent(files)
}

func readCurrent(files Files) (Payload, error) {
	var p Payload
	var err error
	if p.ComposeYAML, _, err = fsx.ReadIfExists(files.Compose); err != nil {
		return Payload{}, err
	}
	if p.Env, _, err = fsx.ReadIfExists(files.Env); err != nil {
		return Payload{}, err
	}
	if p.State, _, err = fsx.ReadIfExists(files.State); err != nil {
		return Payload{}, err
	}
	return p, nil
}
