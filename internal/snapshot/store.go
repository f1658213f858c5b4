package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultRetention is how many snapshots Prune keeps.
const DefaultRetention = 10

// StorageError wraps a failed snapshot store operation. A StorageError
// before any mutation means state is untouched; during restore it means the
// safety snapshot (if one was taken) is still available.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "snapshot " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ErrNotFound indicates an unknown snapshot id.
var ErrNotFound = errors.New("snapshot not found")

// createdAtFormat keeps the fractional seconds fixed width so the TEXT
// column sorts chronologically. RFC3339Nano truncates trailing zeros,
// which breaks string ordering for sub-second neighbors.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is the metadata handle of one stored configuration capture.
// The capture itself is immutable once created.
type Snapshot struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SizeBytes int64             `json:"size_bytes"`
}

// Payload is the captured configuration: compose document, env file and
// installation state, taken as one atomic unit.
type Payload struct {
	ComposeYAML []byte
	Env         []byte
	State       []byte
}

func (p Payload) size() int64 {
	return int64(len(p.ComposeYAML) + len(p.Env) + len(p.State))
}

// Store persists snapshots in a single SQLite database. One row per
// snapshot keeps capture and metadata atomic without a file-tree layout.
type Store struct {
	db        *sql.DB
	retention int
}

// Open creates or opens the snapshot database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	reason TEXT NOT NULL,
	metadata_json TEXT NOT NULL,
	compose_yaml BLOB NOT NULL,
	env_text BLOB NOT NULL,
	state_json BLOB NOT NULL,
	size_bytes INTEGER NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "initialize schema", Err: err}
	}
	return &Store{db: db, retention: DefaultRetention}, nil
}

// SetRetention overrides the prune retention count.
func (s *Store) SetRetention(n int) {
	if n > 0 {
		s.retention = n
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create stores a new snapshot and returns its handle.
func (s *Store) Create(ctx context.Context, payload Payload, reason string, metadata map[string]string) (Snapshot, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Snapshot{}, &StorageError{Op: "create", Err: err}
	}

	snap := Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Reason:    reason,
		Metadata:  metadata,
		SizeBytes: payload.size(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, reason, metadata_json, compose_yaml, env_text, state_json, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.CreatedAt.Format(createdAtFormat),
		reason,
		string(metadataJSON),
		payload.ComposeYAML,
		payload.Env,
		payload.State,
		snap.SizeBytes,
	)
	if err != nil {
		return Snapshot{}, &StorageError{Op: "create", Err: err}
	}
	return snap, nil
}

// Get returns a snapshot's handle and captured payload.
func (s *Store) Get(ctx context.Context, id string) (Snapshot, Payload, error) {
	var (
		snap         Snapshot
		payload      Payload
		createdAt    string
		metadataJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, reason, metadata_json, compose_yaml, env_text, state_json, size_bytes
		 FROM snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &createdAt, &snap.Reason, &metadataJSON,
		&payload.ComposeYAML, &payload.Env, &payload.State, &snap.SizeBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, Payload{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Snapshot{}, Payload{}, &StorageError{Op: "get", Err: err}
	}

	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Snapshot{}, Payload{}, &StorageError{Op: "get", Err: err}
	}
	if err := json.Unmarshal([]byte(metadataJSON), &snap.Metadata); err != nil {
		return Snapshot{}, Payload{}, &StorageError{Op: "get", Err: err}
	}
	return snap, payload, nil
}

// List returns all snapshot handles, newest first.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, reason, metadata_json, size_bytes FROM snapshots ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var createdAt, metadataJSON string
		if err := rows.Scan(&snap.ID, &createdAt, &snap.Reason, &metadataJSON, &snap.SizeBytes); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		if err := json.Unmarshal([]byte(metadataJSON), &snap.Metadata); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return out, nil
}

// Delete removes a snapshot permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Prune enforces the retention count, deleting oldest snapshots first, and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	snaps, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(snaps) <= s.retention {
		return 0, nil
	}

	doomed := snaps[s.retention:]
	sort.Slice(doomed, func(i, j int) bool { return doomed[i].CreatedAt.Before(doomed[j].CreatedAt) })
	removed := 0
	for _, snap := range doomed {
		if err := s.Delete(ctx, snap.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// StorageUsage reports the total captured bytes across all snapshots.
func (s *Store) StorageUsage(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(size_bytes) FROM snapshots`).Scan(&total); err != nil {
		return 0, &StorageError{Op: "storage usage", Err: err}
	}
	return total.Int64, nil
}
