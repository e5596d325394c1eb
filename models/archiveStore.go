package models

import (
	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const archiveBatchSize = 200

// ArchiveStore owns the persistence side of a period close. The archival job
// drives the sequence; everything that touches tables lives here so the job
// logic stays testable against an in-memory double.
type ArchiveStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewArchiveStore(db *gorm.DB, logger *logrus.Logger) *ArchiveStore {
	return &ArchiveStore{DB: db, Logger: logger}
}

// SnapshotExists reports whether the period was already closed. The unique
// period label is the idempotency guard against a double-run.
func (s *ArchiveStore) SnapshotExists(periodLabel string) (bool, error) {
	var count int64
	if err := s.DB.Model(&ArchiveSnapshot{}).Where("period_label = ?", periodLabel).Count(&count).Error; err != nil {
		config.LogError(s.Logger, "models", "SnapshotExists", "checking archive snapshot", periodLabel, err)
		return false, err
	}
	return count > 0, nil
}

// LedgerRows reads the full live ledger in append order.
func (s *ArchiveStore) LedgerRows() ([]LedgerRecord, error) {
	var rows []LedgerRecord
	if err := s.DB.Order("id ASC").Find(&rows).Error; err != nil {
		config.LogError(s.Logger, "models", "LedgerRows", "scanning ledger for close", nil, err)
		return nil, err
	}
	return rows, nil
}

// CloseOut commits one period close atomically: snapshot header, verbatim
// archive copies, truncation of the closed rows, and the opening-balance
// seed. The delete is bounded by the highest row id in the read set, so a
// row appended while the close runs survives into the new period.
func (s *ArchiveStore) CloseOut(periodLabel string, rows, openingRows []LedgerRecord) error {
	if len(rows) == 0 {
		return nil
	}
	maxRowID := rows[len(rows)-1].ID

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		snapshot := ArchiveSnapshot{
			PeriodLabel: periodLabel,
			RowCount:    len(rows),
			ItemCount:   len(openingRows),
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		archived := make([]ArchivedLedgerRecord, 0, len(rows))
		for _, row := range rows {
			archived = append(archived, ArchivedFromLedger(snapshot.ID, row))
		}
		if err := tx.CreateInBatches(archived, archiveBatchSize).Error; err != nil {
			return err
		}

		if err := tx.Where("id <= ?", maxRowID).Delete(&LedgerRecord{}).Error; err != nil {
			return err
		}

		if len(openingRows) > 0 {
			if err := tx.CreateInBatches(openingRows, archiveBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(s.Logger, "models", "CloseOut", "committing period close", periodLabel, err)
		return err
	}

	InvalidateInventoryCache()
	return nil
}
