package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/flows"
)

// Runs the monthly close once, outside the in-process scheduler. Intended for
// manual catch-up after a missed schedule or for running archival as an
// external cron job with the scheduler disabled.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Optional: overall timeout for the close")
	dryRun := flag.Bool("dry-run", false, "Report the period label and row count without writing")
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *dryRun {
		label := flows.PeriodLabel(time.Now(), settings.Timezone)
		var rowCount int64
		if err := db.Table("ledger_records").Count(&rowCount).Error; err != nil {
			fmt.Fprintf(os.Stderr, "count ledger rows: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("would close period %s over %d ledger rows\n", label, rowCount)
		return
	}

	if err := flows.NewArchivalJob(db, logger, settings).RunOnce(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "archival failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("archival completed")
}
