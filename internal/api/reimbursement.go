package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/garyjia/fapiao-client/internal/client"
	"github.com/garyjia/fapiao-client/internal/models"
)

// ReimbursementRecord is one row of the submission history
type ReimbursementRecord struct {
	ID                string `json:"id"`
	FormType          string `json:"formType"`
	TotalAmount       string `json:"totalAmount"`
	Status            string `json:"status"`
	Reason            string `json:"formReimbursementReason,omitempty"`
	ReimbursementDate string `json:"reimbursementDate,omitempty"`
	SubmittedAt       string `json:"submittedAt,omitempty"`
}

// ReimbursementPage is a paged history listing
type ReimbursementPage struct {
	Records []ReimbursementRecord `json:"records"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	Size    int                   `json:"size"`
}

// ListParams filters the history listing
type ListParams struct {
	UserID string
	Status string
	Page   int
	Size   int
}

// ReimbursementAPI wraps the submission and history endpoints
type ReimbursementAPI struct {
	client *client.Client
}

// NewReimbursementAPI creates a new reimbursement API wrapper
func NewReimbursementAPI(c *client.Client) *ReimbursementAPI {
	return &ReimbursementAPI{client: c}
}

// Submit posts the final claim. userId and userName are duplicated in the
// query string for idempotency auditing on the server side.
func (a *ReimbursementAPI) Submit(ctx context.Context, data *models.ReimbursementSubmitData) (string, error) {
	query := url.Values{
		"userId":   {data.UserID},
		"userName": {data.UserName},
	}
	var receipt string
	if err := a.client.Post(ctx, "/reimbursement/submit", data, query, &receipt); err != nil {
		return "", err
	}
	return receipt, nil
}

// List fetches the submission history
func (a *ReimbursementAPI) List(ctx context.Context, params ListParams) (*ReimbursementPage, error) {
	query := url.Values{}
	if params.UserID != "" {
		query.Set("userId", params.UserID)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Size > 0 {
		query.Set("size", strconv.Itoa(params.Size))
	}

	var page ReimbursementPage
	if err := a.client.Get(ctx, "/reimbursement/list", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Detail fetches one submitted claim
func (a *ReimbursementAPI) Detail(ctx context.Context, id string) (*ReimbursementRecord, error) {
	var record ReimbursementRecord
	if err := a.client.Get(ctx, "/reimbursement/detail/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
