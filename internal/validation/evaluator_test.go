package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/fapiao-client/internal/models"
)

func result(violations ...models.Violation) *models.ValidationResult {
	return &models.ValidationResult{Valid: false, Violations: violations}
}

func TestHasSevereValidationError(t *testing.T) {
	tests := []struct {
		name       string
		validation *models.ValidationResult
		want       bool
	}{
		{name: "nil validation", validation: nil, want: false},
		{name: "valid result", validation: &models.ValidationResult{Valid: true}, want: false},
		{
			name: "verification failed",
			validation: result(models.Violation{
				Field: "verification_status", Message: "真伪验证失败",
			}),
			want: true,
		},
		{
			name: "wrong buyer name",
			validation: result(models.Violation{
				AffectedField: "购买方名称",
				Severity:      models.SeverityError,
				Message:       "购买方名称应为" + CompanyName,
			}),
			want: true,
		},
		{
			name: "wrong buyer code",
			validation: result(models.Violation{
				AffectedField: "购买方代码",
				Severity:      models.SeverityError,
				Message:       "购买方代码应为" + CompanyTaxID,
			}),
			want: true,
		},
		{
			name: "personal buyer",
			validation: result(models.Violation{
				AffectedField: "购买方名称",
				Severity:      models.SeverityError,
				Message:       "发票抬头不属于公司",
			}),
			want: true,
		},
		{
			name: "buyer name warning is not severe",
			validation: result(models.Violation{
				AffectedField: "购买方名称",
				Severity:      models.SeverityWarning,
				Message:       "购买方名称应为" + CompanyName,
			}),
			want: false,
		},
		{
			name: "unrelated error",
			validation: result(models.Violation{
				AffectedField: "金额",
				Severity:      models.SeverityError,
				Message:       "金额不一致",
			}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasSevereValidationError(tt.validation))
		})
	}
}

func TestIsSpecialInvoice(t *testing.T) {
	t.Run("eight digit number", func(t *testing.T) {
		assert.True(t, IsSpecialInvoice(nil, &models.InvoiceInfo{InvoiceNo: "12345678"}))
	})
	t.Run("twenty digit number", func(t *testing.T) {
		assert.False(t, IsSpecialInvoice(nil, &models.InvoiceInfo{InvoiceNo: "24312000000012345678"}))
	})
	t.Run("invalid number violation", func(t *testing.T) {
		v := result(models.Violation{Field: "invoice_verification", Message: "发票号码不正确"})
		assert.True(t, IsSpecialInvoice(v, &models.InvoiceInfo{}))
	})
	t.Run("special ticket violation", func(t *testing.T) {
		v := result(models.Violation{Field: "invoice_type", Message: "特殊票据无法验证"})
		assert.True(t, IsSpecialInvoice(v, &models.InvoiceInfo{}))
	})
	t.Run("ordinary invoice", func(t *testing.T) {
		assert.False(t, IsSpecialInvoice(nil, &models.InvoiceInfo{InvoiceNo: "123"}))
	})
}

func TestIsVerificationLimitExceeded(t *testing.T) {
	v := result(models.Violation{Field: "invoice_verification", Message: "超过该张发票当日查验次数"})
	assert.True(t, IsVerificationLimitExceeded(v))
	assert.False(t, IsVerificationLimitExceeded(nil))
}

func TestIsInvoiceDateExpired(t *testing.T) {
	v := result(models.Violation{
		AffectedField: "开票日期",
		Severity:      models.SeverityWarning,
		Message:       "开票日期超过1年",
	})
	assert.True(t, IsInvoiceDateExpired(v))

	errSeverity := result(models.Violation{
		AffectedField: "开票日期",
		Severity:      models.SeverityError,
		Message:       "开票日期超过1年",
	})
	assert.False(t, IsInvoiceDateExpired(errSeverity))
}

func TestGetVerificationStatus(t *testing.T) {
	tests := []struct {
		name       string
		validation *models.ValidationResult
		want       VerificationStatus
	}{
		{name: "nil means never ran", validation: nil, want: VerificationSkipped},
		{name: "no verification violations", validation: result(), want: VerificationSuccess},
		{
			name:       "failed",
			validation: result(models.Violation{Field: "verification_status", Message: "真伪验证失败"}),
			want:       VerificationFailed,
		},
		{
			name:       "skipped",
			validation: result(models.Violation{Field: "verification_status", Message: "验证跳过"}),
			want:       VerificationSkipped,
		},
		{
			name:       "errored",
			validation: result(models.Violation{Field: "verification_status", Message: "验证异常"}),
			want:       VerificationError,
		},
		{
			name: "failed wins over skipped",
			validation: result(
				models.Violation{Field: "verification_status", Message: "验证跳过"},
				models.Violation{Field: "verification_status", Message: "真伪验证失败"},
			),
			want: VerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetVerificationStatus(tt.validation))
		})
	}
}

func TestGetFieldValidation(t *testing.T) {
	v := result(models.Violation{
		AffectedField: "开票日期",
		Severity:      models.SeverityWarning,
		Message:       "开票日期超过1年",
	})

	fv := GetFieldValidation(v, "invoiceDate")
	assert.Equal(t, "warning", fv.Severity)
	assert.Equal(t, "开票日期超过1年", fv.Message)

	assert.Empty(t, GetFieldValidation(v, "buyerName").Severity)
	assert.Empty(t, GetFieldValidation(v, "noSuchField").Severity)
	assert.Empty(t, GetFieldValidation(nil, "invoiceDate").Severity)
}

func TestGetConsumptionReasonValidation(t *testing.T) {
	warn := result(models.Violation{Severity: models.SeverityWarning, Message: "w"})

	required := GetConsumptionReasonValidation(warn, "")
	assert.True(t, required.Required)
	assert.Equal(t, "请填写解释说明以继续提交", required.Message)

	assert.False(t, GetConsumptionReasonValidation(warn, "已说明原因").Required)
	assert.True(t, GetConsumptionReasonValidation(warn, "   ").Required)

	errOnly := result(models.Violation{Severity: models.SeverityError, Message: "e"})
	assert.False(t, GetConsumptionReasonValidation(errOnly, "").Required)
	assert.False(t, GetConsumptionReasonValidation(nil, "").Required)
}

func TestGetValidationMessagesDedupes(t *testing.T) {
	v := result(
		models.Violation{Field: "verification_status", Message: "真伪验证失败"},
		models.Violation{Field: "verification_status", Message: "真伪验证失败"},
		models.Violation{Field: "invoice_verification", Message: "超过该张发票当日查验次数"},
		models.Violation{AffectedField: "开票日期", Severity: models.SeverityWarning, Message: "开票日期超过1年"},
		models.Violation{Field: "invoice_type", Message: "特殊票据"},
	)

	messages := GetValidationMessages(v)
	assert.Len(t, messages, 4)
	assert.Contains(t, messages, "发票真伪验证失败，请检查发票真实性")
}

func TestValidateReimbursementForm(t *testing.T) {
	validForm := models.ReimbursementForm{
		LegalEntity:             models.DefaultLegalEntity,
		ReimbursementDate:       "2025-06-10",
		Region:                  "华东",
		CostDepartment:          "客户成功部",
		FormReimbursementReason: "出差",
	}
	oneInvoice := []models.InvoiceInfo{{ReimbursementType: "交通", TotalAmount: "100"}}

	t.Run("valid daily form", func(t *testing.T) {
		assert.Empty(t, ValidateReimbursementForm(&validForm, oneInvoice))
	})

	t.Run("missing required fields", func(t *testing.T) {
		errs := ValidateReimbursementForm(&models.ReimbursementForm{}, nil)
		assert.Contains(t, errs, "请选择法人实体")
		assert.Contains(t, errs, "请选择报销日期")
		assert.Contains(t, errs, "请选择区域")
		assert.Contains(t, errs, "请选择费用承担部门")
		assert.Contains(t, errs, "请填写报销事由")
		assert.Contains(t, errs, "请至少上传一张发票")
	})

	t.Run("travel end before start", func(t *testing.T) {
		form := validForm
		form.FormType = models.FormTypeCustomerTravel
		form.TravelStartDate = "2025-06-10"
		form.TravelEndDate = "2025-06-05"
		errs := ValidateReimbursementForm(&form, oneInvoice)
		assert.Contains(t, errs, "出差结束日期不能早于开始日期")
	})

	t.Run("travel dates required for travel form", func(t *testing.T) {
		form := validForm
		form.FormType = models.FormTypeCustomerTravel
		errs := ValidateReimbursementForm(&form, oneInvoice)
		assert.Contains(t, errs, "请选择出差开始日期")
		assert.Contains(t, errs, "请选择出差结束日期")
	})

	t.Run("incomplete invoices reported by position", func(t *testing.T) {
		invoices := []models.InvoiceInfo{
			{ReimbursementType: "交通", TotalAmount: "100"},
			{TotalAmount: "50"},
			{ReimbursementType: "餐饮"},
		}
		errs := ValidateReimbursementForm(&validForm, invoices)
		assert.Contains(t, errs, "第 2 张发票缺少费用类型")
		assert.Contains(t, errs, "第 3 张发票缺少金额")
	})
}
