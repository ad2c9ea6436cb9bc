// Package reports renders retailer sales for download.
package reports

import (
	"fmt"
	"io"

	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	salesSheet = "Sales"
	itemsSheet = "Items"

	ContentTypeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var salesHeadings = []string{"Date", "Sale", "Customer", "Phone", "Items", "Total", "Status", "Receipt"}
var itemHeadings = []string{"Sale", "Item", "Unit Price", "Quantity", "Amount"}

// ExportSales builds a workbook with one row per sale and one row per sold item.
func ExportSales(sales []models.Sale) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", salesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, salesSheet, 1, toRow(salesHeadings)); err != nil {
		return nil, err
	}
	if err := writeRow(f, itemsSheet, 1, toRow(itemHeadings)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, s := range sales {
		summary := models.SaleSummaryFromSale(s)
		row := []interface{}{
			utils.FormatReceiptTime(summary.Timestamp),
			summary.ClientRef,
			summary.CustomerName,
			summary.CustomerPhone,
			summary.ItemCount,
			summary.Total.InexactFloat64(),
			string(summary.Status),
			string(summary.ReceiptStatus),
		}
		if err := writeRow(f, salesSheet, i+2, row); err != nil {
			return nil, err
		}
		for _, it := range s.Items {
			if err := writeRow(f, itemsSheet, itemRow, []interface{}{
				summary.ClientRef,
				it.Name,
				it.UnitPrice.InexactFloat64(),
				it.Quantity,
				it.LineAmount.InexactFloat64(),
			}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}
	return f, nil
}

// WriteSalesExport streams the workbook to w.
func WriteSalesExport(w io.Writer, sales []models.Sale) error {
	f, err := ExportSales(sales)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, rowNo, err)
	}
	return nil
}

func toRow(headings []string) []interface{} {
	out := make([]interface{}, len(headings))
	for i, h := range headings {
		out[i] = h
	}
	return out
}
