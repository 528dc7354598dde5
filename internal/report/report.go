package report

import (
	"bytes"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
)

const (
	SalesSheet = "Sales"
	StockSheet = "Stock"
)

// Workbook writes recent sales and stock levels into an .xlsx file.
func Workbook(sales []domain.SaleSummary, stock []domain.StockReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(StockSheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	salesRows := [][]any{{"Sale ID", "Customer", "Items", "Total (Rs)", "Paid (Rs)", "Branch", "Date"}}
	for _, s := range sales {
		customer := s.CustomerName
		if customer == "" {
			customer = "Walk-in"
		}
		salesRows = append(salesRows, []any{s.ID, customer, s.LineCount, s.TotalAmount, s.PaidAmount, s.BranchID, s.CreatedAt.Format(time.DateTime)})
	}
	if err := writeRows(f, SalesSheet, salesRows, header); err != nil {
		return nil, err
	}
	if len(sales) > 0 {
		last, _ := excelize.CoordinatesToCellName(5, len(sales)+1)
		if err := f.SetCellStyle(SalesSheet, "D2", last, amount); err != nil {
			return nil, err
		}
	}

	stockRows := [][]any{{"Product", "SKU", "Branch", "Qty", "Updated"}}
	for _, r := range stock {
		name := r.ProductName
		if name == "" {
			name = "N/A"
		}
		branch := r.BranchName
		if branch == "" {
			branch = r.BranchID
		}
		stockRows = append(stockRows, []any{name, r.SKU, branch, r.Qty, r.UpdatedAt.Format(time.DateTime)})
	}
	if err := writeRows(f, StockSheet, stockRows, header); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(SalesSheet, "A", "A", 44); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(StockSheet, "A", "A", 28); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}
