package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/fapiao-client/internal/models"
)

// Canonical buyer identity every company invoice must carry
const (
	CompanyName  = "杭州飞致云信息科技有限公司"
	CompanyTaxID = "91330106311245339J"
)

// VerificationStatus is the authenticity verdict derived from violations
type VerificationStatus string

const (
	VerificationSuccess VerificationStatus = "SUCCESS"
	VerificationFailed  VerificationStatus = "FAILED"
	VerificationSkipped VerificationStatus = "SKIPPED"
	VerificationError   VerificationStatus = "ERROR"
)

// FieldValidation is the per-field UI severity derived from a violation
type FieldValidation struct {
	Severity string // "error", "warning", or ""
	Message  string
}

// ConsumptionReasonValidation flags the reason field as required when
// warnings demand an explanation.
type ConsumptionReasonValidation struct {
	Required bool
	Message  string
}

// fieldLabels maps UI-side field names to the validator's Chinese labels
var fieldLabels = map[string]string{
	"buyerName":         "购买方名称",
	"buyerCode":         "购买方代码",
	"invoiceDate":       "开票日期",
	"reimbursementType": "费用类型",
	"totalAmount":       "金额",
	"consumptionDate":   "日期",
}

var specialTicketNo = regexp.MustCompile(`^\d{8}$`)

// HasSevereValidationError reports whether the invoice carries an error that
// blocks submission outright: failed authenticity verification, a buyer name
// or tax code that is not the company's, or a personal buyer.
func HasSevereValidationError(validation *models.ValidationResult) bool {
	if validation == nil || validation.Valid {
		return false
	}
	for _, v := range validation.Violations {
		if v.Field == "verification_status" && strings.Contains(v.Message, "真伪验证失败") {
			return true
		}
		if v.AffectedField == "购买方名称" && v.Severity == models.SeverityError &&
			strings.Contains(v.Message, CompanyName) {
			return true
		}
		if v.AffectedField == "购买方代码" && v.Severity == models.SeverityError &&
			strings.Contains(v.Message, CompanyTaxID) {
			return true
		}
		if v.AffectedField == "购买方名称" && v.Severity == models.SeverityError &&
			strings.Contains(v.Message, "不属于公司") {
			return true
		}
	}
	return false
}

// IsSpecialInvoice reports whether this is a paper-style ticket (train,
// flight, ...) the authenticity service cannot validate.
func IsSpecialInvoice(validation *models.ValidationResult, invoice *models.InvoiceInfo) bool {
	if invoice != nil && specialTicketNo.MatchString(invoice.InvoiceNo) {
		return true
	}
	if validation == nil {
		return false
	}
	for _, v := range validation.Violations {
		if v.Field == "invoice_verification" && strings.Contains(v.Message, "发票号码不正确") {
			return true
		}
		if v.Field == "invoice_type" && strings.Contains(v.Message, "特殊票据") {
			return true
		}
	}
	return false
}

// IsVerificationLimitExceeded reports whether the tax authority refused
// further authenticity checks today.
func IsVerificationLimitExceeded(validation *models.ValidationResult) bool {
	if validation == nil || validation.Valid {
		return false
	}
	for _, v := range validation.Violations {
		if v.Field == "invoice_verification" && strings.Contains(v.Message, "超过该张发票当日查验次数") {
			return true
		}
	}
	return false
}

// IsInvoiceDateExpired reports whether the invoice date is older than a year
func IsInvoiceDateExpired(validation *models.ValidationResult) bool {
	if validation == nil || validation.Valid {
		return false
	}
	for _, v := range validation.Violations {
		if v.AffectedField == "开票日期" && v.Severity == models.SeverityWarning &&
			strings.Contains(v.Message, "超过1年") {
			return true
		}
	}
	return false
}

// GetVerificationStatus derives the authenticity verdict. A missing
// validation means the check never ran.
func GetVerificationStatus(validation *models.ValidationResult) VerificationStatus {
	if validation == nil {
		return VerificationSkipped
	}

	failed, skipped, errored := false, false, false
	for _, v := range validation.Violations {
		if v.Field != "verification_status" {
			continue
		}
		switch {
		case strings.Contains(v.Message, "真伪验证失败"):
			failed = true
		case strings.Contains(v.Message, "验证跳过"):
			skipped = true
		case strings.Contains(v.Message, "验证异常"):
			errored = true
		}
	}

	switch {
	case failed:
		return VerificationFailed
	case skipped:
		return VerificationSkipped
	case errored:
		return VerificationError
	default:
		return VerificationSuccess
	}
}

// GetFieldValidation maps a UI field name onto the first matching violation.
// Unknown fields and valid results yield the empty validation.
func GetFieldValidation(validation *models.ValidationResult, fieldName string) FieldValidation {
	if validation == nil || validation.Valid {
		return FieldValidation{}
	}
	label, ok := fieldLabels[fieldName]
	if !ok {
		return FieldValidation{}
	}
	for _, v := range validation.Violations {
		if v.AffectedField == label {
			return FieldValidation{
				Severity: strings.ToLower(v.Severity),
				Message:  v.Message,
			}
		}
	}
	return FieldValidation{}
}

// GetConsumptionReasonValidation requires an explanation when warnings exist
// and the reason is blank.
func GetConsumptionReasonValidation(validation *models.ValidationResult, consumptionReason string) ConsumptionReasonValidation {
	if validation == nil || validation.Valid {
		return ConsumptionReasonValidation{}
	}

	hasWarning := false
	for _, v := range validation.Violations {
		if v.Severity == models.SeverityWarning {
			hasWarning = true
			break
		}
	}
	if hasWarning && strings.TrimSpace(consumptionReason) == "" {
		return ConsumptionReasonValidation{
			Required: true,
			Message:  "请填写解释说明以继续提交",
		}
	}
	return ConsumptionReasonValidation{}
}

// GetValidationMessages aggregates the user-facing hints for one invoice
func GetValidationMessages(validation *models.ValidationResult) []string {
	if validation == nil || validation.Valid {
		return nil
	}

	var messages []string
	appended := map[string]bool{}
	appendOnce := func(msg string) {
		if !appended[msg] {
			appended[msg] = true
			messages = append(messages, msg)
		}
	}

	for _, v := range validation.Violations {
		switch {
		case v.Field == "verification_status" && strings.Contains(v.Message, "真伪验证失败"):
			appendOnce("发票真伪验证失败，请检查发票真实性")
		case v.Field == "invoice_verification" && strings.Contains(v.Message, "超过该张发票当日查验次数"):
			appendOnce("该发票本日验证次数超过五次，无法验证，将在提交后人工验证")
		case v.AffectedField == "开票日期" && v.Severity == models.SeverityWarning && strings.Contains(v.Message, "超过1年"):
			appendOnce("开票日期不符合要求，请在下方\"消费事由\"中说明原因")
		case v.Field == "invoice_type" && strings.Contains(v.Message, "特殊票据"):
			appendOnce("此为特殊票据（如飞机票、火车票等），系统无法自动验证真伪，需要提交后人工验证。")
		}
	}
	return messages
}

// ValidateReimbursementForm enforces the cross-field submission rules and
// returns every failure, not just the first.
func ValidateReimbursementForm(form *models.ReimbursementForm, invoices []models.InvoiceInfo) []string {
	var errors []string

	if form.LegalEntity == "" {
		errors = append(errors, "请选择法人实体")
	}
	if form.ReimbursementDate == "" {
		errors = append(errors, "请选择报销日期")
	}
	if form.Region == "" {
		errors = append(errors, "请选择区域")
	}
	if form.CostDepartment == "" {
		errors = append(errors, "请选择费用承担部门")
	}
	if strings.TrimSpace(form.FormReimbursementReason) == "" {
		errors = append(errors, "请填写报销事由")
	}

	if form.FormType == models.FormTypeCustomerTravel {
		if form.TravelStartDate == "" {
			errors = append(errors, "请选择出差开始日期")
		}
		if form.TravelEndDate == "" {
			errors = append(errors, "请选择出差结束日期")
		}
		if form.TravelStartDate != "" && form.TravelEndDate != "" {
			start, errStart := time.Parse("2006-01-02", form.TravelStartDate)
			end, errEnd := time.Parse("2006-01-02", form.TravelEndDate)
			if errStart == nil && errEnd == nil && end.Before(start) {
				errors = append(errors, "出差结束日期不能早于开始日期")
			}
		}
	}

	if len(invoices) == 0 {
		errors = append(errors, "请至少上传一张发票")
	} else {
		for i, invoice := range invoices {
			if invoice.ReimbursementType == "" {
				errors = append(errors, formatInvoiceError(i, "缺少费用类型"))
			}
			if invoice.TotalAmount == "" {
				errors = append(errors, formatInvoiceError(i, "缺少金额"))
			}
		}
	}

	return errors
}

func formatInvoiceError(index int, problem string) string {
	return fmt.Sprintf("第 %d 张发票%s", index+1, problem)
}
