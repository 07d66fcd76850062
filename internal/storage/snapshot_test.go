package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/models"
)

func TestSaveLoadClear(t *testing.T) {
	s := NewFileSnapshotStore(filepath.Join(t.TempDir(), "nested"), zap.NewNop())

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	want := &AuthSnapshot{
		UserInfo:   &models.UserInfo{UserID: "u1", Name: "张三"},
		SessionKey: "key-1",
		Timestamp:  1700000000000,
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "key-1", got.SessionKey)
	assert.Equal(t, "张三", got.UserInfo.Name)
	assert.Equal(t, int64(1700000000000), got.Timestamp)

	require.NoError(t, s.Clear())
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// clearing twice is fine
	assert.NoError(t, s.Clear())
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{broken"), 0o600))

	s := NewFileSnapshotStore(dir, zap.NewNop())
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}
