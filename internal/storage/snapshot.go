package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/fapiao-client/internal/models"
	"go.uber.org/zap"
)

// AuthSnapshot mirrors the browser client's single "auth" key: the logged-in
// identity, its session key, and the wall-clock write time in epoch
// milliseconds.
type AuthSnapshot struct {
	UserInfo   *models.UserInfo `json:"userInfo"`
	SessionKey string           `json:"sessionKey"`
	Timestamp  int64            `json:"timestamp"`
}

// SnapshotStore persists the auth snapshot across process runs
type SnapshotStore interface {
	Load() (*AuthSnapshot, error)
	Save(snap *AuthSnapshot) error
	Clear() error
}

const snapshotFile = "auth.json"

// FileSnapshotStore keeps the snapshot as a single JSON file. A later write
// wins; there is no locking across processes.
type FileSnapshotStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileSnapshotStore creates a snapshot store rooted at dir
func NewFileSnapshotStore(dir string, logger *zap.Logger) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir, logger: logger}
}

func (s *FileSnapshotStore) path() string {
	return filepath.Join(s.dir, snapshotFile)
}

// Load reads the stored snapshot. A missing file yields (nil, nil); a corrupt
// file is treated the same after a warning, never a hard error.
func (s *FileSnapshotStore) Load() (*AuthSnapshot, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth snapshot: %w", err)
	}

	var snap AuthSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("Auth snapshot is corrupt, treating as no session",
			zap.String("path", s.path()),
			zap.Error(err))
		return nil, nil
	}
	return &snap, nil
}

// Save writes the snapshot, creating the directory if needed
func (s *FileSnapshotStore) Save(snap *AuthSnapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal auth snapshot: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write auth snapshot: %w", err)
	}

	s.logger.Debug("Auth snapshot saved", zap.String("path", s.path()))
	return nil
}

// Clear removes the stored snapshot
func (s *FileSnapshotStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove auth snapshot: %w", err)
	}
	return nil
}
