package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/models"
)

func TestFlowStoreRoundTrip(t *testing.T) {
	s := NewFileFlowStore(filepath.Join(t.TempDir(), "data"), zap.NewNop())

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	want := &models.FlowSnapshot{
		FormType: "日常报销单",
		Invoices: []models.InvoiceInfo{{InvoiceNo: "N1", TotalAmount: "100"}},
		Validations: map[int]*models.ValidationResult{
			0: {Valid: false, Violations: []models.Violation{{Message: "v"}}},
		},
		MediaIDs: []string{"m1"},
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "日常报销单", got.FormType)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, "v", got.Validations[0].Violations[0].Message)
	assert.Equal(t, []string{"m1"}, got.MediaIDs)

	require.NoError(t, s.Clear())
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
