package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/models"
)

func TestUploadInvoiceFilesMultipartShape(t *testing.T) {
	var gotFiles []string
	var gotFormType, gotMessage string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		for _, fh := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, fh.Filename)
		}
		gotFormType = r.FormValue("formType")
		gotMessage = r.FormValue("message")

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": UploadResult{
				InvoiceInfos: []models.InvoiceInfo{{InvoiceNo: "N1"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y"), 0o644))

	uploads := NewUploadAPI(client.New(srv.URL, 5*time.Second, zap.NewNop()), 0, 0)
	result, err := uploads.UploadInvoiceFiles(context.Background(), []string{a, b}, "日常报销单", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.jpg", "b.pdf"}, gotFiles)
	assert.Equal(t, "日常报销单", gotFormType)
	// the message defaults when empty
	assert.Equal(t, "发票", gotMessage)
	require.Len(t, result.InvoiceInfos, 1)
	assert.Equal(t, "N1", result.InvoiceInfos[0].InvoiceNo)
}

func TestUploadSingleInvoiceFields(t *testing.T) {
	var gotSession, gotIsLast, gotFormType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		gotSession = r.FormValue("sessionId")
		gotIsLast = r.FormValue("isLast")
		gotFormType = r.FormValue("formType")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": UploadResult{}})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	uploads := NewUploadAPI(client.New(srv.URL, 5*time.Second, zap.NewNop()), 0, 0)
	_, err := uploads.UploadSingleInvoice(context.Background(), path, "sess-1", true, "日常报销单")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", gotSession)
	assert.Equal(t, "true", gotIsLast)
	assert.Equal(t, "日常报销单", gotFormType)
}
