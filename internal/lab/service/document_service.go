package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/tooth"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DocumentService renders bills and order lists as xlsx.
type DocumentService struct {
	repos     *repository.Repositories
	billing   *BillingService
	batchSize int
}

func NewDocumentService(repos *repository.Repositories, billing *BillingService, batchSize int) *DocumentService {
	return &DocumentService{repos: repos, billing: billing, batchSize: batchSize}
}

var billItemHeaders = []string{"Serial", "Patient", "Quality", "Shade", "Teeth", "Qty", "Unit price", "Total", "Notes"}

var workOrderExportHeaders = []string{
	"Serial", "Doctor", "Patient", "Quality", "Shade", "Teeth", "Status",
	"Order date", "Completion date", "Expected date", "Revisions", "Batch", "Amount",
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	return style
}

// ExportBill builds the print document of a bill: header block, the 2×2
// tooth chart, one row per work order and the total.
func (s *DocumentService) ExportBill(ctx context.Context, billID string) (*excelize.File, string, error) {
	detail, err := s.billing.Detail(ctx, billID)
	if err != nil {
		return nil, "", err
	}
	bill := detail.Bill

	f := excelize.NewFile()
	sheet := "Bill"
	f.SetSheetName("Sheet1", sheet)
	bold := headerStyle(f)

	header := [][2]string{
		{"Bill", bill.SerialNumber},
		{"Doctor", bill.DoctorName},
		{"Patient", bill.PatientName},
		{"Bill date", bill.BillDate.Format("2006-01-02")},
		{"Completion date", formatDate(bill.CompletionDate)},
		{"Status", bill.Status},
		{"Work", bill.WorkDescription},
	}
	for i, kv := range header {
		row := i + 1
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), kv[0])
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), kv[1])
	}

	// tooth chart, viewer orientation: UL UR over LL LR
	row := len(header) + 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Teeth")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
	if len(bill.ToothNumbers) == 0 {
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), tooth.NoTeeth)
		row++
	} else {
		for _, line := range detail.Grid {
			for col, cell := range line {
				name, _ := excelize.ColumnNumberToName(col + 2)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", name, row), cell.Label)
			}
			row++
		}
	}

	row++
	for i, h := range billItemHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, bold)
	}
	row++

	if bill.IsGrouped {
		orders := make(map[string]entity.WorkOrder, len(detail.WorkOrders))
		for _, wo := range detail.WorkOrders {
			orders[wo.ID] = wo
		}
		for _, item := range bill.Items {
			wo := orders[item.WorkOrderID]
			notes := ""
			if item.Notes != nil {
				notes = *item.Notes
			}
			writeBillRow(f, sheet, row, item.SerialNumber, wo.PatientName, item.ProductQuality, item.ProductShade,
				tooth.Describe(wo.ToothNumbers), item.Quantity, item.UnitPrice.InexactFloat64(), item.TotalPrice.InexactFloat64(), notes)
			row++
		}
	} else {
		for _, wo := range detail.WorkOrders {
			writeBillRow(f, sheet, row, wo.SerialNumber, wo.PatientName, wo.ProductQuality, wo.ProductShade,
				tooth.Describe(bill.ToothNumbers), 1, bill.Amount.InexactFloat64(), bill.Amount.InexactFloat64(), bill.Notes)
			row++
		}
	}

	total := bill.Amount
	if bill.ItemsTotal != nil && bill.Amount.IsZero() {
		total = *bill.ItemsTotal
	}
	f.SetCellValue(sheet, fmt.Sprintf("G%d", row), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("H%d", row), total.InexactFloat64())
	f.SetCellStyle(sheet, fmt.Sprintf("G%d", row), fmt.Sprintf("H%d", row), bold)

	colWidths := []float64{18, 20, 16, 10, 28, 6, 12, 12, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("bill_%s.xlsx", safeName(firstSerial(bill.SerialNumber)))
	return f, filename, nil
}

func writeBillRow(f *excelize.File, sheet string, row int, serial, patient, quality, shade, teeth string, qty int, unit, total float64, notes string) {
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), serial)
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), patient)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), quality)
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), shade)
	f.SetCellValue(sheet, fmt.Sprintf("E%d", row), teeth)
	f.SetCellValue(sheet, fmt.Sprintf("F%d", row), qty)
	f.SetCellValue(sheet, fmt.Sprintf("G%d", row), unit)
	f.SetCellValue(sheet, fmt.Sprintf("H%d", row), total)
	f.SetCellValue(sheet, fmt.Sprintf("I%d", row), notes)
}

// RenderBill ExportBill as bytes, for archiving.
func (s *DocumentService) RenderBill(ctx context.Context, billID string) ([]byte, string, error) {
	f, filename, err := s.ExportBill(ctx, billID)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write bill document: %w", err)
	}
	return buf.Bytes(), filename, nil
}

// ExportWorkOrders every work order, read in batches, as one sheet.
func (s *DocumentService) ExportWorkOrders(ctx context.Context) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "Work Orders"
	f.SetSheetName("Sheet1", sheet)
	bold := headerStyle(f)

	for i, h := range workOrderExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, bold)
	}

	row := 2
	err := s.repos.WorkOrder.FindInBatches(ctx, s.batchSize, func(batch []entity.WorkOrder) error {
		for _, wo := range batch {
			batchID := ""
			if wo.BatchID != nil {
				batchID = *wo.BatchID
			}
			values := []interface{}{
				wo.SerialNumber, wo.DoctorName, wo.PatientName, wo.ProductQuality, wo.ProductShade,
				tooth.Describe(wo.ToothNumbers), entity.StatusLabel(wo.Status, wo.RevisionCount),
				wo.OrderDate.Format("2006-01-02"), formatDate(wo.CompletionDate), formatDate(wo.ExpectedCompleteDate),
				wo.RevisionCount, batchID,
			}
			if wo.Amount.Valid {
				values = append(values, wo.Amount.Decimal.InexactFloat64())
			}
			for i, v := range values {
				col, _ := excelize.ColumnNumberToName(i + 1)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
			}
			row++
		}
		return nil
	})
	if err != nil {
		f.Close()
		return nil, "", storageErr(err, "Work orders", "")
	}

	colWidths := []float64{16, 20, 20, 16, 10, 28, 20, 12, 14, 14, 10, 34, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("work_orders_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

func firstSerial(serials string) string {
	if i := strings.Index(serials, ","); i >= 0 {
		return strings.TrimSpace(serials[:i])
	}
	return serials
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
