package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/api"
	"github.com/garyjia/fapiao-client/internal/auth"
	"github.com/garyjia/fapiao-client/internal/fileutil"
	"github.com/garyjia/fapiao-client/internal/history"
	"github.com/garyjia/fapiao-client/internal/models"
	"github.com/garyjia/fapiao-client/internal/store"
	"github.com/garyjia/fapiao-client/internal/traveldate"
	"github.com/garyjia/fapiao-client/internal/validation"
	"github.com/garyjia/fapiao-client/internal/voucher"
)

// submitStages are the five pipeline stages, in order
var submitStages = []string{
	"校验表单",
	"核对附件",
	"查重检查",
	"提交单据",
	"记录凭证",
}

// Coordinator drives the upload and submit workflow: staging files, pushing
// them through OCR, keeping the invoice store in sync with the results, and
// running the five-stage submit pipeline.
type Coordinator struct {
	uploads        *api.UploadAPI
	reimbursements *api.ReimbursementAPI
	session        *auth.Store
	state          *store.Store
	history        *history.Repository
	voucher        *voucher.Exporter
	logger         *zap.Logger

	maxFileSizeMB int

	mediaIDs           []string
	dailySubsidyAmount string
}

// New wires the coordinator
func New(
	uploads *api.UploadAPI,
	reimbursements *api.ReimbursementAPI,
	session *auth.Store,
	state *store.Store,
	hist *history.Repository,
	exporter *voucher.Exporter,
	maxFileSizeMB int,
	logger *zap.Logger,
) *Coordinator {
	if maxFileSizeMB <= 0 {
		maxFileSizeMB = fileutil.DefaultMaxFileSizeMB
	}
	return &Coordinator{
		uploads:        uploads,
		reimbursements: reimbursements,
		session:        session,
		state:          state,
		history:        hist,
		voucher:        exporter,
		maxFileSizeMB:  maxFileSizeMB,
		logger:         logger,
	}
}

// StageFiles gates the selected files and records them in the store. Every
// file must pass the type and size gates; PDFs must additionally parse.
func (c *Coordinator) StageFiles(paths []string) error {
	for _, path := range paths {
		if !fileutil.IsAllowedType(path) {
			return fmt.Errorf("不支持的文件类型: %s (仅支持 jpg/jpeg/png/pdf)", path)
		}
		if err := fileutil.CheckSize(path, c.maxFileSizeMB); err != nil {
			return err
		}
		if fileutil.KindOf(path) == fileutil.KindDocument {
			if err := fileutil.ValidatePDF(path); err != nil {
				return err
			}
		}
	}

	c.state.UpdateFileStats(paths, fileutil.Stats(paths))
	c.logger.Info("Files staged", zap.Int("count", len(paths)))
	return nil
}

// Upload posts the staged files as one batch and folds the OCR results into
// the store.
func (c *Coordinator) Upload(ctx context.Context) (*models.UploadStats, error) {
	paths := c.state.SelectedFiles()
	if len(paths) == 0 {
		return nil, fmt.Errorf("请先选择要上传的发票文件")
	}

	c.state.SetUploading(true)
	defer c.state.SetUploading(false)

	result, err := c.uploads.UploadInvoiceFiles(ctx, paths, c.state.Form().FormType, "")
	if err != nil {
		return nil, err
	}
	c.adoptUploadResult(result)

	stats := c.state.UploadStats()
	return &stats, nil
}

// UploadChunked posts the staged files one at a time under a shared session
// id. The server replies with the aggregated result on the last chunk.
func (c *Coordinator) UploadChunked(ctx context.Context) (*models.UploadStats, error) {
	paths := c.state.SelectedFiles()
	if len(paths) == 0 {
		return nil, fmt.Errorf("请先选择要上传的发票文件")
	}

	c.state.SetUploading(true)
	defer c.state.SetUploading(false)

	sessionID := uuid.NewString()
	formType := c.state.Form().FormType
	for i, path := range paths {
		isLast := i == len(paths)-1
		result, err := c.uploads.UploadSingleInvoice(ctx, path, sessionID, isLast, formType)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个文件上传失败: %w", i+1, err)
		}
		if isLast {
			c.adoptUploadResult(result)
		}
	}

	stats := c.state.UploadStats()
	return &stats, nil
}

// UploadWedrive submits drive-picker tickets for server-side fetching
func (c *Coordinator) UploadWedrive(ctx context.Context, tickets []string) error {
	if len(tickets) == 0 {
		return fmt.Errorf("请先选择微盘文件")
	}

	c.state.SetUploading(true)
	defer c.state.SetUploading(false)

	result, err := c.uploads.UploadWedriveFiles(ctx, uuid.NewString(), tickets, "发票")
	if err != nil {
		return err
	}
	c.adoptUploadResult(result)
	return nil
}

// adoptUploadResult re-keys the batch validations by invoiceIndex (falling
// back to slice position) and appends the invoices to the store.
func (c *Coordinator) adoptUploadResult(result *api.UploadResult) {
	validations := make(map[int]*models.ValidationResult)
	if result.ValidationResult != nil {
		for k, entry := range result.ValidationResult.Results {
			idx := k
			if entry.InvoiceIndex != nil {
				idx = *entry.InvoiceIndex
			}
			validations[idx] = entry.ValidationResult
		}
	}

	c.state.AddInvoices(result.InvoiceInfos, validations)
	if result.MediaIDs != "" {
		c.mediaIDs = append(c.mediaIDs, result.MediaIDs)
	}
	if result.DailySubsidyAmount != "" {
		c.dailySubsidyAmount = result.DailySubsidyAmount
	}

	c.logger.Info("Upload result adopted",
		zap.Int("invoices", len(result.InvoiceInfos)),
		zap.Int("validations", len(validations)))
}

// DailySubsidyAmount returns the server-suggested daily subsidy. It is shown
// to the submitter but never written into the form automatically.
func (c *Coordinator) DailySubsidyAmount() string {
	return c.dailySubsidyAmount
}

// Snapshot captures the staged workflow, including the media ids the store
// does not track.
func (c *Coordinator) Snapshot() models.FlowSnapshot {
	snap := c.state.Snapshot()
	snap.MediaIDs = append([]string(nil), c.mediaIDs...)
	snap.DailySubsidyAmount = c.dailySubsidyAmount
	return snap
}

// Restore replaces the staged workflow with a persisted snapshot
func (c *Coordinator) Restore(snap *models.FlowSnapshot) {
	c.state.Restore(snap)
	c.mediaIDs = append([]string(nil), snap.MediaIDs...)
	c.dailySubsidyAmount = snap.DailySubsidyAmount
}

// PrefillTravelDates extracts trip dates from the reimbursement reason and
// fills the travel fields, but only when both are still blank. Extracted
// trips are anchored to the morning on both ends.
func (c *Coordinator) PrefillTravelDates() {
	form := c.state.Form()
	if form.FormType != models.FormTypeCustomerTravel {
		return
	}
	if form.TravelStartDate != "" || form.TravelEndDate != "" {
		return
	}

	result := traveldate.Extract(form.FormReimbursementReason)
	if result.StartDate == "" || result.EndDate == "" {
		return
	}

	c.state.UpdateForm(func(f *models.ReimbursementForm) {
		f.TravelStartDate = result.StartDate
		f.TravelStartPeriod = models.PeriodMorning
		f.TravelEndDate = result.EndDate
		f.TravelEndPeriod = models.PeriodMorning
		f.TravelDays = ComputeTravelDays(result.StartDate, models.PeriodMorning, result.EndDate, models.PeriodMorning)
	})

	c.logger.Info("Travel dates prefilled",
		zap.String("start", result.StartDate),
		zap.String("end", result.EndDate))
}

// RecomputeTravelDays refreshes the travel-day count from the current form
func (c *Coordinator) RecomputeTravelDays() {
	form := c.state.Form()
	if form.TravelStartDate == "" || form.TravelEndDate == "" {
		return
	}
	days := ComputeTravelDays(form.TravelStartDate, form.TravelStartPeriod, form.TravelEndDate, form.TravelEndPeriod)
	c.state.UpdateForm(func(f *models.ReimbursementForm) {
		f.TravelDays = days
	})
}

// ComputeTravelDays counts calendar days inclusive of both ends, with a
// half-day deduction for an afternoon departure and another for a morning
// return. Unparseable input yields "0".
func ComputeTravelDays(startDate, startPeriod, endDate, endPeriod string) string {
	start, errStart := time.Parse("2006-01-02", startDate)
	end, errEnd := time.Parse("2006-01-02", endDate)
	if errStart != nil || errEnd != nil || end.Before(start) {
		return "0"
	}

	days := decimal.NewFromInt(int64(end.Sub(start).Hours()/24) + 1)
	if startPeriod == models.PeriodAfternoon {
		days = days.Sub(decimal.NewFromFloat(0.5))
	}
	if endPeriod == models.PeriodMorning {
		days = days.Sub(decimal.NewFromFloat(0.5))
	}
	if days.IsNegative() {
		return "0"
	}
	return days.String()
}

// SubmitResult is the outcome of a successful submission
type SubmitResult struct {
	ReceiptID   string
	VoucherPath string
}

// Submit runs the five-stage pipeline: form and invoice validation, media
// verification, local duplicate check, server submission, and local
// record-keeping. force skips the local duplicate gate.
func (c *Coordinator) Submit(ctx context.Context, force bool) (*SubmitResult, error) {
	if !c.session.IsLoggedIn() {
		return nil, fmt.Errorf("请先登录")
	}

	c.state.SetSubmitting(true)
	defer c.state.SetSubmitting(false)
	c.state.BeginProgress(submitStages)

	form := c.state.Form()
	invoices := c.state.Invoices()

	// stage 1: form and invoice validation
	if errs := c.validateAll(&form, invoices); len(errs) > 0 {
		return nil, fmt.Errorf("提交校验未通过:\n%s", strings.Join(errs, "\n"))
	}
	c.state.CompleteStage("表单校验通过")

	// stage 2: media verification
	for i, invoice := range invoices {
		if invoice.MediaID == "" {
			return nil, fmt.Errorf("第 %d 张发票缺少附件，请重新上传", i+1)
		}
	}
	c.state.CompleteStage("附件核对完成")

	// stage 3: local duplicate check
	if !force {
		dupes, err := c.history.LocalDuplicates(invoices)
		if err != nil {
			c.logger.Warn("Local duplicate check failed", zap.Error(err))
		} else if len(dupes) > 0 {
			var hints []string
			for _, i := range dupes {
				hints = append(hints, fmt.Sprintf("第 %d 张发票疑似重复提交", i+1))
			}
			return nil, fmt.Errorf("%s", strings.Join(hints, "\n"))
		}
	}
	c.state.CompleteStage("查重检查完成")

	// stage 4: server submission
	data := c.buildSubmitData(&form, invoices)
	receiptID, err := c.reimbursements.Submit(ctx, data)
	if err != nil {
		return nil, err
	}
	c.state.CompleteStage("单据提交成功")

	// stage 5: local record and voucher; failures here never undo the
	// submission, they only lose the local copy
	result := &SubmitResult{ReceiptID: receiptID}
	if err := c.history.Record(&history.Submission{
		ReceiptID:      receiptID,
		FormType:       data.FormType,
		TotalAmount:    data.TotalAmount,
		Reason:         data.FormReimbursementReason,
		Region:         data.Region,
		CostDepartment: data.CostDepartment,
		SubmittedAt:    time.Now(),
	}, invoices); err != nil {
		c.logger.Warn("Failed to record submission locally", zap.Error(err))
	}
	if path, err := c.voucher.Export(data, receiptID); err != nil {
		c.logger.Warn("Failed to export voucher", zap.Error(err))
	} else {
		result.VoucherPath = path
	}
	c.state.CompleteStage("凭证已记录")

	c.logger.Info("Reimbursement submitted",
		zap.String("receipt_id", receiptID),
		zap.String("total_amount", data.TotalAmount),
		zap.Int("invoices", len(invoices)))

	c.state.Reset()
	c.mediaIDs = nil
	c.dailySubsidyAmount = ""
	return result, nil
}

// validateAll aggregates every submission blocker
func (c *Coordinator) validateAll(form *models.ReimbursementForm, invoices []models.InvoiceInfo) []string {
	errs := validation.ValidateReimbursementForm(form, invoices)

	for i, invoice := range invoices {
		v := c.state.Validation(i)
		if validation.HasSevereValidationError(v) && !validation.IsSpecialInvoice(v, &invoice) {
			errs = append(errs, fmt.Sprintf("第 %d 张发票存在严重校验错误，无法提交", i+1))
			continue
		}
		reason := validation.GetConsumptionReasonValidation(v, invoice.ConsumptionReason)
		if reason.Required {
			errs = append(errs, fmt.Sprintf("第 %d 张发票: %s", i+1, reason.Message))
		}
	}
	return errs
}

func (c *Coordinator) buildSubmitData(form *models.ReimbursementForm, invoices []models.InvoiceInfo) *models.ReimbursementSubmitData {
	return &models.ReimbursementSubmitData{
		Invoices:                invoices,
		TotalAmount:             c.state.TotalAmount(),
		MediaIDs:                strings.Join(c.mediaIDs, ","),
		FormType:                form.FormType,
		FormReimbursementReason: form.FormReimbursementReason,
		LegalEntity:             form.LegalEntity,
		Region:                  form.Region,
		CostDepartment:          form.CostDepartment,
		UserID:                  c.session.UserID(),
		UserName:                c.session.UserName(),
		ReimbursementDate:       form.ReimbursementDate,
		CustomerName:            form.CustomerName,
		UnsignedCustomer:        form.UnsignedCustomer,
		TravelStartDate:         form.TravelStartDate,
		TravelStartPeriod:       form.TravelStartPeriod,
		TravelEndDate:           form.TravelEndDate,
		TravelEndPeriod:         form.TravelEndPeriod,
		TravelDays:              form.TravelDays,
		SubmitTravelSubsidy:     form.SubmitTravelSubsidy,
	}
}
