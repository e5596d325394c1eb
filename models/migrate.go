package models

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LedgerRecord{},
		&ArchiveSnapshot{},
		&ArchivedLedgerRecord{},
		&DirectoryUser{},
	)
}
