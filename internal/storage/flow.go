package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/fapiao-client/internal/models"
	"go.uber.org/zap"
)

const flowFile = "flow.json"

// FlowStore persists the staged workflow state across process runs
type FlowStore interface {
	Load() (*models.FlowSnapshot, error)
	Save(snap *models.FlowSnapshot) error
	Clear() error
}

// FileFlowStore keeps the staged workflow as a single JSON file next to the
// auth snapshot.
type FileFlowStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileFlowStore creates a flow store rooted at dir
func NewFileFlowStore(dir string, logger *zap.Logger) *FileFlowStore {
	return &FileFlowStore{dir: dir, logger: logger}
}

func (s *FileFlowStore) path() string {
	return filepath.Join(s.dir, flowFile)
}

// Load reads the staged workflow. Missing and corrupt files both yield
// (nil, nil); a corrupt stage is dropped rather than blocking the user.
func (s *FileFlowStore) Load() (*models.FlowSnapshot, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read flow snapshot: %w", err)
	}

	var snap models.FlowSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("Flow snapshot is corrupt, discarding",
			zap.String("path", s.path()),
			zap.Error(err))
		return nil, nil
	}
	return &snap, nil
}

// Save writes the staged workflow, creating the directory if needed
func (s *FileFlowStore) Save(snap *models.FlowSnapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal flow snapshot: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write flow snapshot: %w", err)
	}
	return nil
}

// Clear removes the staged workflow
func (s *FileFlowStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove flow snapshot: %w", err)
	}
	return nil
}
