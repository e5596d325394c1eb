package utils

import (
	"fmt"

	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"github.com/xuri/excelize/v2"
)

// InventoryWorkbook builds an .xlsx with two sheets: the current inventory
// view and the raw ledger it was derived from. Ledger columns follow the
// fixed 13-column order of the spreadsheet exports.
func InventoryWorkbook(items []models.InventoryItem, rows []models.LedgerRecord) (*excelize.File, error) {
	f := excelize.NewFile()

	inventorySheet := "Inventory"
	f.SetSheetName("Sheet1", inventorySheet)

	inventoryHeaders := []string{"Serial", "Name", "Model", "Spec", "Unit", "Quantity"}
	for i, h := range inventoryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(inventorySheet, cell, h)
	}
	models.SortItems(items)
	for i, item := range items {
		row := i + 2
		f.SetCellValue(inventorySheet, "A"+fmt.Sprint(row), item.CompositeKey())
		f.SetCellValue(inventorySheet, "B"+fmt.Sprint(row), item.Name)
		f.SetCellValue(inventorySheet, "C"+fmt.Sprint(row), item.Model)
		f.SetCellValue(inventorySheet, "D"+fmt.Sprint(row), item.Spec)
		f.SetCellValue(inventorySheet, "E"+fmt.Sprint(row), item.Unit)
		f.SetCellValue(inventorySheet, "F"+fmt.Sprint(row), item.Quantity)
	}

	ledgerSheet := "Ledger"
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return nil, err
	}
	ledgerHeaders := []string{
		"Category", "Serial", "Name", "Model", "Spec", "Unit", "Quantity",
		"Type", "Status", "VoidReason", "Actor", "Timestamp", "Photo",
	}
	for i, h := range ledgerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ledgerSheet, cell, h)
	}
	for i, r := range rows {
		row := i + 2
		values := []interface{}{
			r.Category, r.Serial, r.Name, r.Model, r.Spec, r.Unit, r.SignedQuantity,
			string(r.TransactionType), string(r.Status), r.VoidReason, r.SourceActorName,
			r.Timestamp.Format("2006-01-02 15:04:05"), r.PhotoRef,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(ledgerSheet, cell, v)
		}
	}

	return f, nil
}
