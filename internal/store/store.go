package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/models"
)

// Store owns the staged invoices, their per-index validation verdicts, the
// reimbursement form, and the submit progress log. All mutation goes through
// its methods; AddInvoices and DeleteInvoice are atomic with respect to each
// other, so no caller can observe a partially re-keyed validation map.
type Store struct {
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time

	currentStep   int
	formType      string
	selectedFiles []string
	uploading     bool
	uploadStats   models.UploadStats

	invoices           []models.InvoiceInfo
	validations        map[int]*models.ValidationResult
	activeInvoiceIndex int
	totalAmount        string

	form models.ReimbursementForm

	submitting bool
	progress   models.SubmitProgress
}

// New creates an initialized store with the default form
func New(logger *zap.Logger) *Store {
	s := &Store{
		logger:             logger,
		now:                time.Now,
		validations:        make(map[int]*models.ValidationResult),
		activeInvoiceIndex: -1,
		totalAmount:        "0.00",
	}
	s.form = defaultForm(s.now())
	return s
}

func defaultForm(now time.Time) models.ReimbursementForm {
	return models.ReimbursementForm{
		LegalEntity:       models.DefaultLegalEntity,
		ReimbursementDate: now.Format("2006-01-02"),
		TravelStartPeriod: models.PeriodMorning,
		TravelEndPeriod:   models.PeriodAfternoon,
		TravelDays:        "0",
	}
}

// SeedSubmitter records the identity and region resolved at login
func (s *Store) SeedSubmitter(name, region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Submitter = name
	if s.form.Region == "" {
		s.form.Region = region
	}
}

// AddInvoices appends a batch, assigning each element its final position as
// index. Validations arrive keyed by batch-local index and are re-keyed to
// the global index. The running total is recomputed.
func (s *Store) AddInvoices(batch []models.InvoiceInfo, validations map[int]*models.ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.invoices)
	for i, invoice := range batch {
		global := start + i
		invoice.Index = global
		s.invoices = append(s.invoices, invoice)
		if v, ok := validations[i]; ok && v != nil {
			s.validations[global] = v
		}
	}
	s.recomputeTotalLocked()

	s.logger.Debug("Invoices appended",
		zap.Int("batch", len(batch)),
		zap.Int("total", len(s.invoices)))
}

// DeleteInvoice removes the invoice at position i. Validation entries keyed
// above i shift down by one; the entry at i is dropped. Remaining invoices
// are re-indexed so index always equals position.
func (s *Store) DeleteInvoice(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.invoices) {
		return fmt.Errorf("invoice index %d out of range [0,%d)", i, len(s.invoices))
	}

	s.invoices = append(s.invoices[:i], s.invoices[i+1:]...)
	for k := range s.invoices {
		s.invoices[k].Index = k
	}

	rekeyed := make(map[int]*models.ValidationResult, len(s.validations))
	for k, v := range s.validations {
		switch {
		case k < i:
			rekeyed[k] = v
		case k > i:
			rekeyed[k-1] = v
		}
	}
	s.validations = rekeyed

	if s.activeInvoiceIndex >= len(s.invoices) {
		s.activeInvoiceIndex = len(s.invoices) - 1
	}
	s.recomputeTotalLocked()
	return nil
}

// UpdateInvoice applies user corrections to the invoice at position i
func (s *Store) UpdateInvoice(i int, fn func(*models.InvoiceInfo)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.invoices) {
		return fmt.Errorf("invoice index %d out of range [0,%d)", i, len(s.invoices))
	}
	fn(&s.invoices[i])
	s.invoices[i].Index = i
	s.recomputeTotalLocked()
	return nil
}

// CalculateTotalAmount recomputes and returns the running total
func (s *Store) CalculateTotalAmount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeTotalLocked()
	return s.totalAmount
}

// recomputeTotalLocked sums per-invoice amounts, stripping the 元 suffix and
// treating unparseable values as 0, rounded to two decimals.
func (s *Store) recomputeTotalLocked() {
	total := decimal.Zero
	for _, invoice := range s.invoices {
		amount := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(invoice.TotalAmount), "元"))
		if amount == "" {
			continue
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		total = total.Add(d)
	}
	s.totalAmount = total.Round(2).StringFixed(2)
}

// UpdateFileStats reclassifies the staged files
func (s *Store) UpdateFileStats(filenames []string, stats models.UploadStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedFiles = append([]string(nil), filenames...)
	s.uploadStats = stats
}

// Reset clears all per-transaction state. The default legal entity is kept
// and the reimbursement date snaps back to today.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentStep = 0
	s.formType = ""
	s.selectedFiles = nil
	s.uploading = false
	s.submitting = false
	s.invoices = nil
	s.validations = make(map[int]*models.ValidationResult)
	s.activeInvoiceIndex = -1
	s.totalAmount = "0.00"
	s.uploadStats = models.UploadStats{}
	s.progress = models.SubmitProgress{}
	s.form = defaultForm(s.now())

	s.logger.Debug("Store reset")
}

// Snapshot captures the staged workflow state for persistence
func (s *Store) Snapshot() models.FlowSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	validations := make(map[int]*models.ValidationResult, len(s.validations))
	for k, v := range s.validations {
		validations[k] = v
	}
	return models.FlowSnapshot{
		FormType:      s.formType,
		SelectedFiles: append([]string(nil), s.selectedFiles...),
		UploadStats:   s.uploadStats,
		Invoices:      append([]models.InvoiceInfo(nil), s.invoices...),
		Validations:   validations,
		Form:          s.form,
	}
}

// Restore replaces the staged workflow state with a persisted snapshot
func (s *Store) Restore(snap *models.FlowSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.formType = snap.FormType
	s.selectedFiles = append([]string(nil), snap.SelectedFiles...)
	s.uploadStats = snap.UploadStats
	s.invoices = append([]models.InvoiceInfo(nil), snap.Invoices...)
	s.validations = make(map[int]*models.ValidationResult, len(snap.Validations))
	for k, v := range snap.Validations {
		s.validations[k] = v
	}
	s.form = snap.Form
	s.recomputeTotalLocked()
}

// Invoices returns a copy of the staged invoices
func (s *Store) Invoices() []models.InvoiceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InvoiceInfo(nil), s.invoices...)
}

// InvoiceCount returns the number of staged invoices
func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// Validation returns the verdict for position i, nil when absent
func (s *Store) Validation(i int) *models.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validations[i]
}

// Validations returns a copy of the validation map
func (s *Store) Validations() map[int]*models.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]*models.ValidationResult, len(s.validations))
	for k, v := range s.validations {
		out[k] = v
	}
	return out
}

// TotalAmount returns the current running total as a 2-decimal string
func (s *Store) TotalAmount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAmount
}

// UploadStats returns the current file statistics
func (s *Store) UploadStats() models.UploadStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadStats
}

// SelectedFiles returns the staged file paths
func (s *Store) SelectedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selectedFiles...)
}

// Form returns a copy of the reimbursement form
func (s *Store) Form() models.ReimbursementForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// UpdateForm mutates the form under the store lock
func (s *Store) UpdateForm(fn func(*models.ReimbursementForm)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.form)
}

// SetFormType records the selected form type on both the flow state and form
func (s *Store) SetFormType(formType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formType = formType
	s.form.FormType = formType
}

// SetUploading flags an in-flight upload
func (s *Store) SetUploading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = v
}

// SetSubmitting flags an in-flight submit
func (s *Store) SetSubmitting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = v
}

// BeginProgress starts a fresh submit progress log with the named stages
func (s *Store) BeginProgress(stages []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]models.SubmitStep, len(stages))
	for i, name := range stages {
		steps[i] = models.SubmitStep{Name: name}
	}
	s.progress = models.SubmitProgress{
		TotalSteps: len(stages),
		Steps:      steps,
	}
}

// CompleteStage marks the next pending stage as completed. The log only
// moves forward.
func (s *Store) CompleteStage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.progress.CurrentStep >= s.progress.TotalSteps {
		return
	}
	s.progress.Steps[s.progress.CurrentStep].Completed = true
	s.progress.CurrentStep++
	s.progress.Message = message
}

// Progress returns a copy of the submit progress log
func (s *Store) Progress() models.SubmitProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.progress
	out.Steps = append([]models.SubmitStep(nil), s.progress.Steps...)
	return out
}
