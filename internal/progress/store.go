// Package progress persists pagination checkpoints so a multi-minute
// fetch survives a crash or restart. The checkpoint holds only fully
// merged pages; resuming re-issues at most one in-flight page, which
// the seen-id dedupe makes idempotent.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint is the durable snapshot of one fetch's progress
type Checkpoint struct {
	StartCursor    string   `json:"start_cursor"`
	TotalRetrieved int      `json:"total_retrieved"`
	QueriedPageIDs []string `json:"queried_page_ids"`
}

// Store reads and writes the checkpoint file. Single writer assumed;
// concurrent fetch runs racing on the same file are not defended
// against.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the checkpoint, returning a zero-value checkpoint when
// the file does not exist.
func (s *Store) Load() (Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("read progress file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("decode progress file: %w", err)
	}
	return cp, nil
}

// Save rewrites the checkpoint. The write goes through a temp file and
// rename so a crash mid-write leaves the previous checkpoint intact.
func (s *Store) Save(cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}

// Clear removes the checkpoint entirely, forcing the next run to fetch
// from the start.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress file: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint file is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}
