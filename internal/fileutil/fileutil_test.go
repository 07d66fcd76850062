package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"invoice.PDF", "pdf"},
		{"a.b.jpg", "jpg"},
		{"noext", ""},
		{"trailingdot.", ""},
		{"发票.png", "png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Extension(tt.filename), tt.filename)
	}
}

func TestIsAllowedType(t *testing.T) {
	assert.True(t, IsAllowedType("a.jpg"))
	assert.True(t, IsAllowedType("a.JPEG"))
	assert.True(t, IsAllowedType("a.png"))
	assert.True(t, IsAllowedType("a.pdf"))
	assert.False(t, IsAllowedType("a.gif"))
	assert.False(t, IsAllowedType("a.docx"))
	assert.False(t, IsAllowedType("a"))
}

func TestStatsCountsEverything(t *testing.T) {
	stats := Stats([]string{"a.jpg", "b.png", "c.pdf", "d.txt"})
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Images)
	assert.Equal(t, 1, stats.Documents)
}

func TestCheckSize(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.jpg")
	require.NoError(t, os.WriteFile(small, make([]byte, 1024), 0o644))

	assert.NoError(t, CheckSize(small, 1))

	big := filepath.Join(dir, "big.jpg")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024), 0o644))
	assert.Error(t, CheckSize(big, 1))
}

func TestValidatePDFRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(fake, []byte("not a pdf"), 0o644))

	assert.Error(t, ValidatePDF(fake))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.50 KB"},
		{1048576, "1 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.bytes))
	}
}

func TestUniqueFilenameKeepsExtension(t *testing.T) {
	a := UniqueFilename("invoice.pdf", "up")
	b := UniqueFilename("invoice.pdf", "up")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "pdf", Extension(a))
	assert.Contains(t, a, "up_")
}
