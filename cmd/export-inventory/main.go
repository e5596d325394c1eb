package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/utils"
)

// Exports the current inventory view and the raw ledger to an .xlsx file,
// either locally or uploaded to the configured GCS bucket.
func main() {
	outFile := flag.String("out", "inventory.xlsx", "Output file path")
	toGCS := flag.Bool("gcs", false, "Upload to GCS instead of writing locally")
	flag.Parse()

	if _, err := config.LoadSettings(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ledger := models.NewLedgerStore(db, logger)
	view, err := ledger.GetInventoryView()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read inventory: %v\n", err)
		os.Exit(1)
	}
	items := make([]models.InventoryItem, 0, len(view))
	for _, item := range view {
		items = append(items, item)
	}

	var rows []models.LedgerRecord
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "read ledger: %v\n", err)
		os.Exit(1)
	}

	f, err := utils.InventoryWorkbook(items, rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
		os.Exit(1)
	}

	if *toGCS {
		buf, err := f.WriteToBuffer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "serialize workbook: %v\n", err)
			os.Exit(1)
		}
		objectName := "exports/inventory-" + time.Now().Format("20060102-150405") + ".xlsx"
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := utils.UploadBytesToGCS(ctx, objectName, buf.Bytes(),
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); err != nil {
			fmt.Fprintf(os.Stderr, "upload workbook: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("uploaded %s (%d items, %d ledger rows)\n", objectName, len(items), len(rows))
		return
	}

	if strings.TrimSpace(*outFile) == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}
	if err := f.SaveAs(*outFile); err != nil {
		fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d items, %d ledger rows)\n", *outFile, len(items), len(rows))
}
