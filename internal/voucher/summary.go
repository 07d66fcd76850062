package voucher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/models"
)

const sheetName = "报销单"

// Exporter writes a claim summary workbook after a successful submission, so
// the submitter has an offline record matching what went to the server.
type Exporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExporter creates a voucher exporter writing under outputDir
func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	if outputDir == "" {
		outputDir = "vouchers"
	}
	return &Exporter{outputDir: outputDir, logger: logger}
}

// Export renders the submitted claim into an xlsx file and returns its path
func (e *Exporter) Export(data *models.ReimbursementSubmitData, receiptID string) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create voucher directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := [][2]string{
		{"单据编号", receiptID},
		{"单据类型", data.FormType},
		{"提交人", data.UserName},
		{"法人实体", data.LegalEntity},
		{"区域", data.Region},
		{"费用承担部门", data.CostDepartment},
		{"报销日期", data.ReimbursementDate},
		{"报销事由", data.FormReimbursementReason},
		{"报销总金额", data.TotalAmount},
	}
	if data.FormType == models.FormTypeCustomerTravel {
		header = append(header,
			[2]string{"出差开始", fmt.Sprintf("%s %s", data.TravelStartDate, data.TravelStartPeriod)},
			[2]string{"出差结束", fmt.Sprintf("%s %s", data.TravelEndDate, data.TravelEndPeriod)},
			[2]string{"出差天数", data.TravelDays},
		)
	}

	row := 1
	for _, pair := range header {
		if err := e.setCell(f, row, 1, pair[0]); err != nil {
			return "", err
		}
		if err := e.setCell(f, row, 2, pair[1]); err != nil {
			return "", err
		}
		row++
	}

	row++
	columns := []string{"序号", "发票号码", "开票日期", "销售方", "费用类型", "金额", "消费日期", "备注"}
	for col, title := range columns {
		if err := e.setCell(f, row, col+1, title); err != nil {
			return "", err
		}
	}
	row++

	for i, invoice := range data.Invoices {
		values := []string{
			fmt.Sprintf("%d", i+1),
			invoice.InvoiceNo,
			invoice.InvoiceDate,
			invoice.SellerName,
			invoice.ReimbursementType,
			invoice.TotalAmount,
			invoice.ConsumptionDate,
			invoice.Remark,
		}
		for col, value := range values {
			if err := e.setCell(f, row, col+1, value); err != nil {
				return "", err
			}
		}
		row++
	}

	outputPath := filepath.Join(e.outputDir,
		fmt.Sprintf("报销单_%s_%s.xlsx", receiptID, time.Now().Format("20060102_150405")))
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save voucher: %w", err)
	}

	e.logger.Info("Voucher exported",
		zap.String("path", outputPath),
		zap.Int("invoices", len(data.Invoices)))
	return outputPath, nil
}

func (e *Exporter) setCell(f *excelize.File, row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
