package models

// Form type sentinel for customer-success travel reimbursement (客成差旅报销单)
const FormTypeCustomerTravel = "客成差旅报销单"

// DefaultLegalEntity is the canonical invoiced corporate body
const DefaultLegalEntity = "杭州飞致云信息科技有限公司（CODE1）"

// Travel period discriminators for half-day accounting
const (
	PeriodMorning   = "上午"
	PeriodAfternoon = "下午"
)

// ReimbursementForm is the claim-level form filled in by the submitter
type ReimbursementForm struct {
	FormType          string `json:"formType"`
	Submitter         string `json:"submitter"`
	LegalEntity       string `json:"legalEntity"`
	ReimbursementDate string `json:"reimbursementDate"`
	Region            string `json:"region"`
	CostDepartment    string `json:"costDepartment"`
	// FormReimbursementReason is the free-text reason; for travel forms it
	// often encodes the trip dates (see traveldate.Extract)
	FormReimbursementReason string `json:"formReimbursementReason"`
	CustomerName            string `json:"customerName,omitempty"`
	UnsignedCustomer        string `json:"unsignedCustomer,omitempty"`
	TravelStartDate         string `json:"travelStartDate,omitempty"`
	TravelStartPeriod       string `json:"travelStartPeriod,omitempty"`
	TravelEndDate           string `json:"travelEndDate,omitempty"`
	TravelEndPeriod         string `json:"travelEndPeriod,omitempty"`
	TravelDays              string `json:"travelDays,omitempty"` // decimal string, 0.5 increments
	SubmitTravelSubsidy     bool   `json:"submitTravelSubsidy,omitempty"`
}

// ReimbursementSubmitData is the final submission payload
type ReimbursementSubmitData struct {
	Invoices                []InvoiceInfo `json:"invoices"`
	TotalAmount             string        `json:"totalAmount"`
	MediaIDs                string        `json:"mediaIds,omitempty"`
	FormType                string        `json:"formType"`
	FormReimbursementReason string        `json:"formReimbursementReason"`
	LegalEntity             string        `json:"legalEntity"`
	Region                  string        `json:"region"`
	CostDepartment          string        `json:"costDepartment"`
	UserID                  string        `json:"userId"`
	UserName                string        `json:"userName"`
	ReimbursementDate       string        `json:"reimbursementDate"`
	CustomerName            string        `json:"customerName,omitempty"`
	UnsignedCustomer        string        `json:"unsignedCustomer,omitempty"`
	TravelStartDate         string        `json:"travelStartDate,omitempty"`
	TravelStartPeriod       string        `json:"travelStartPeriod,omitempty"`
	TravelEndDate           string        `json:"travelEndDate,omitempty"`
	TravelEndPeriod         string        `json:"travelEndPeriod,omitempty"`
	TravelDays              string        `json:"travelDays,omitempty"`
	SubmitTravelSubsidy     bool          `json:"submitTravelSubsidy,omitempty"`
}

// FlowSnapshot is the staged workflow state persisted between process runs,
// so uploading and submitting can happen in separate invocations.
type FlowSnapshot struct {
	FormType           string                    `json:"formType,omitempty"`
	SelectedFiles      []string                  `json:"selectedFiles,omitempty"`
	UploadStats        UploadStats               `json:"uploadStats"`
	Invoices           []InvoiceInfo             `json:"invoices,omitempty"`
	Validations        map[int]*ValidationResult `json:"validations,omitempty"`
	Form               ReimbursementForm         `json:"form"`
	MediaIDs           []string                  `json:"mediaIds,omitempty"`
	DailySubsidyAmount string                    `json:"dailySubsidyAmount,omitempty"`
}

// UploadStats counts staged files by kind
type UploadStats struct {
	Images    int `json:"images"`
	Documents int `json:"documents"`
	Total     int `json:"total"`
}

// SubmitStep is one named stage of the submit pipeline
type SubmitStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// SubmitProgress is a forward-only log of submit pipeline stages
type SubmitProgress struct {
	CurrentStep int          `json:"currentStep"`
	TotalSteps  int          `json:"totalSteps"`
	Message     string       `json:"message"`
	Steps       []SubmitStep `json:"steps"`
}
