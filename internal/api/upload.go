package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/models"
)

// ValidationEntry pairs one validation verdict with the batch-local index of
// the invoice it belongs to. InvoiceIndex may be absent, in which case the
// entry's position in the results slice is authoritative.
type ValidationEntry struct {
	ValidationResult *models.ValidationResult `json:"validationResult"`
	InvoiceIndex     *int                     `json:"invoiceIndex,omitempty"`
}

// BatchValidationResult carries the per-invoice verdicts of one upload
type BatchValidationResult struct {
	Results []ValidationEntry `json:"results"`
}

// UploadResult is the payload of a successful invoice upload
type UploadResult struct {
	InvoiceInfos       []models.InvoiceInfo   `json:"invoiceInfos"`
	MediaIDs           string                 `json:"mediaIds,omitempty"`
	ValidationResult   *BatchValidationResult `json:"validationResult,omitempty"`
	DailySubsidyAmount string                 `json:"dailySubsidyAmount,omitempty"`
}

// UploadAPI wraps the invoice OCR upload endpoints
type UploadAPI struct {
	client        *client.Client
	batchTimeout  time.Duration
	singleTimeout time.Duration
}

// NewUploadAPI creates a new upload API wrapper
func NewUploadAPI(c *client.Client, batchTimeout, singleTimeout time.Duration) *UploadAPI {
	if batchTimeout <= 0 {
		batchTimeout = 300 * time.Second
	}
	if singleTimeout <= 0 {
		singleTimeout = 120 * time.Second
	}
	return &UploadAPI{client: c, batchTimeout: batchTimeout, singleTimeout: singleTimeout}
}

// UploadInvoiceFiles posts a batch of invoice files for OCR and validation.
// Each file goes under the "files" form field alongside formType and message.
func (a *UploadAPI) UploadInvoiceFiles(ctx context.Context, paths []string, formType, message string) (*UploadResult, error) {
	if message == "" {
		message = "发票"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, path := range paths {
		if err := attachFile(writer, "files", path); err != nil {
			return nil, err
		}
	}
	if err := writer.WriteField("formType", formType); err != nil {
		return nil, fmt.Errorf("failed to write formType field: %w", err)
	}
	if err := writer.WriteField("message", message); err != nil {
		return nil, fmt.Errorf("failed to write message field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	var result UploadResult
	err := a.client.PostMultipart(ctx, "/upload/invoice", writer.FormDataContentType(), body, a.batchTimeout, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadSingleInvoice posts one file of a session-chunked upload. The server
// aggregates per sessionId and responds with the full result on isLast.
func (a *UploadAPI) UploadSingleInvoice(ctx context.Context, path, sessionID string, isLast bool, formType string) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := attachFile(writer, "file", path); err != nil {
		return nil, err
	}
	if err := writer.WriteField("sessionId", sessionID); err != nil {
		return nil, fmt.Errorf("failed to write sessionId field: %w", err)
	}
	if err := writer.WriteField("isLast", strconv.FormatBool(isLast)); err != nil {
		return nil, fmt.Errorf("failed to write isLast field: %w", err)
	}
	if err := writer.WriteField("formType", formType); err != nil {
		return nil, fmt.Errorf("failed to write formType field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	var result UploadResult
	err := a.client.PostMultipart(ctx, "/upload/invoice/single", writer.FormDataContentType(), body, a.singleTimeout, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadWedriveFiles submits drive-picker tickets for server-side fetching
func (a *UploadAPI) UploadWedriveFiles(ctx context.Context, sessionID string, tickets []string, message string) (*UploadResult, error) {
	payload := map[string]any{
		"sessionId": sessionID,
		"tickets":   tickets,
		"message":   message,
	}
	var result UploadResult
	if err := a.client.Post(ctx, "/upload/wedrive", payload, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file for %s: %w", path, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy %s into form: %w", path, err)
	}
	return nil
}
