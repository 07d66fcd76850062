package models

// InvoiceInfo represents a single recognized invoice (发票) returned by the
// OCR upload endpoint, as corrected by the user before submission.
type InvoiceInfo struct {
	ID                   string                `json:"id,omitempty"`
	BuyerName            string                `json:"buyerName,omitempty"`            // 购买方名称
	BuyerCode            string                `json:"buyerCode,omitempty"`            // 购买方税号
	InvoiceNo            string                `json:"invoiceNo,omitempty"`            // 发票号码
	InvoiceDate          string                `json:"invoiceDate,omitempty"`          // 开票日期 YYYY-MM-DD
	SellerName           string                `json:"sellerName,omitempty"`           // 销售方名称
	TotalAmount          string                `json:"totalAmount,omitempty"`          // 金额, may carry the "元" suffix
	ReimbursementType    string                `json:"reimbursementType,omitempty"`    // 费用类型
	SubReimbursementType string                `json:"subReimbursementType,omitempty"` // 费用子类型
	ConsumptionDate      string                `json:"consumptionDate,omitempty"`      // 消费日期
	Remark               string                `json:"remark,omitempty"`               // 备注
	ConsumptionReason    string                `json:"consumptionReason,omitempty"`    // 消费事由
	MediaID              string                `json:"mediaId,omitempty"`
	Index                int                   `json:"index"`
	DuplicateCheckResult *DuplicateCheckResult `json:"duplicateCheckResult,omitempty"`
}

// DuplicateCheckResult is the server-side duplicate check verdict for one invoice
type DuplicateCheckResult struct {
	Duplicate       bool   `json:"duplicate"`
	DuplicateReason string `json:"duplicateReason"`
	InvoiceNumber   string `json:"invoiceNumber"`
	InvoiceDate     string `json:"invoiceDate"`
	UserID          string `json:"userId"`
	CheckStrategy   string `json:"checkStrategy"`
}

// Severity levels reported by the server-side rule validator
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

// Violation is a single diagnostic from the server-side rule validator
type Violation struct {
	Severity string `json:"severity"` // ERROR or WARNING
	// Field is the internal rule tag, e.g. verification_status, invoice_verification, invoice_type
	Field   string `json:"field"`
	Message string `json:"message"`
	// AffectedField is the human-readable label, e.g. 购买方名称
	AffectedField string `json:"affectedField,omitempty"`
}

// ValidationResult is the per-invoice validation verdict.
// valid=true implies no ERROR violations; WARNING violations may coexist
// with valid=false.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// HasViolations reports whether any violations were recorded
func (v *ValidationResult) HasViolations() bool {
	return v != nil && len(v.Violations) > 0
}
