package flows_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/flows"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"github.com/sirupsen/logrus"
)

// fakeArchive stands in for the close persistence, applying the same save
// hook gorm runs on insert.
type fakeArchive struct {
	rows      []models.LedgerRecord
	snapshots []string
}

func (f *fakeArchive) SnapshotExists(periodLabel string) (bool, error) {
	for _, label := range f.snapshots {
		if label == periodLabel {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeArchive) LedgerRows() ([]models.LedgerRecord, error) {
	out := make([]models.LedgerRecord, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeArchive) CloseOut(periodLabel string, rows, openingRows []models.LedgerRecord) error {
	f.snapshots = append(f.snapshots, periodLabel)
	next := make([]models.LedgerRecord, 0, len(openingRows))
	for _, row := range openingRows {
		_ = row.BeforeSave(nil)
		next = append(next, row)
	}
	f.rows = next
	return nil
}

func TestPeriodLabelNamesPreviousMonth(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	cases := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 3, 1, 2, 0, 0, 0, taipei), "2026-02"},
		{time.Date(2026, 1, 1, 2, 0, 0, 0, taipei), "2025-12"},
		{time.Date(2026, 7, 15, 12, 0, 0, 0, taipei), "2026-06"},
	}
	for _, tc := range cases {
		if got := flows.PeriodLabel(tc.now, taipei); got != tc.want {
			t.Errorf("PeriodLabel(%s) = %q, want %q", tc.now, got, tc.want)
		}
	}
}

func TestPeriodLabelUsesConfiguredTimezone(t *testing.T) {
	taipei, _ := time.LoadLocation("Asia/Taipei")
	// 2026-03-31 20:00 UTC is already April 1st in Taipei.
	now := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)
	if got := flows.PeriodLabel(now, taipei); got != "2026-03" {
		t.Errorf("PeriodLabel = %q, want 2026-03", got)
	}
	if got := flows.PeriodLabel(now, time.UTC); got != "2026-02" {
		t.Errorf("PeriodLabel in UTC = %q, want 2026-02", got)
	}
}

func TestRunOnceClosesThePeriodExactlyOnce(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := &fakeArchive{rows: []models.LedgerRecord{
		{ID: 1, Category: "A", Serial: "001", Name: "Widget", Unit: "pcs",
			SignedQuantity: 5, TransactionType: models.TransactionTypeNew, Status: models.RecordStatusValid},
		{ID: 2, Category: "A", Serial: "001", Name: "Widget", Unit: "pcs",
			SignedQuantity: -8, TransactionType: models.TransactionTypeOutbound, Status: models.RecordStatusValid},
	}}
	job := &flows.ArchivalJob{
		Store:    store,
		Logger:   logger,
		Settings: &config.Settings{Timezone: time.UTC},
	}
	ctx := context.Background()

	if err := job.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if len(store.snapshots) != 1 {
		t.Fatalf("snapshots after first run = %d, want 1", len(store.snapshots))
	}
	if len(store.rows) != 1 {
		t.Fatalf("ledger after close has %d rows, want 1 opening row", len(store.rows))
	}
	opening := store.rows[0]
	if opening.TransactionType != models.TransactionTypeOpeningBalance {
		t.Errorf("reseeded row type = %s, want OpeningBalance", opening.TransactionType)
	}
	if opening.SignedQuantity != -3 {
		t.Errorf("opening balance = %d, want -3 (negative closing balance must carry through)", opening.SignedQuantity)
	}
	if opening.Timestamp.IsZero() {
		t.Error("opening row must carry an explicit timestamp")
	}

	if err := job.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if len(store.snapshots) != 1 {
		t.Errorf("second run for the same period archived again: %d snapshots", len(store.snapshots))
	}
	if len(store.rows) != 1 || store.rows[0].SignedQuantity != -3 {
		t.Errorf("second run must leave the ledger untouched: %+v", store.rows)
	}
}

func TestNextArchiveTime(t *testing.T) {
	loc := time.UTC

	after := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	got := flows.NextArchiveTime(after, 1, 2, 30, loc)
	want := time.Date(2026, 4, 1, 2, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextArchiveTime past this month's slot = %s, want %s", got, want)
	}

	after = time.Date(2026, 3, 1, 1, 0, 0, 0, loc)
	got = flows.NextArchiveTime(after, 1, 2, 30, loc)
	want = time.Date(2026, 3, 1, 2, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextArchiveTime before this month's slot = %s, want %s", got, want)
	}

	// Exactly at the slot: the next one is a month away, never now.
	after = time.Date(2026, 3, 1, 2, 30, 0, 0, loc)
	got = flows.NextArchiveTime(after, 1, 2, 30, loc)
	want = time.Date(2026, 4, 1, 2, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextArchiveTime at the slot = %s, want %s", got, want)
	}

	// December rolls into the next year.
	after = time.Date(2026, 12, 20, 0, 0, 0, 0, loc)
	got = flows.NextArchiveTime(after, 1, 2, 30, loc)
	want = time.Date(2027, 1, 1, 2, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextArchiveTime year rollover = %s, want %s", got, want)
	}
}
