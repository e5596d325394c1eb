package models

import "time"

// ArchiveSnapshot labels one immutable full copy of the ledger taken at
// period close. The unique period label doubles as the idempotency guard
// against a double-run of the archival job.
type ArchiveSnapshot struct {
	ID          int       `gorm:"primary_key" json:"id"`
	PeriodLabel string    `gorm:"size:20;uniqueIndex;not null" json:"period_label"`
	RowCount    int       `gorm:"not null;default:0" json:"row_count"`
	ItemCount   int       `gorm:"not null;default:0" json:"item_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ArchivedLedgerRecord is a verbatim copy of one ledger row at close time.
// Read-only history; never touched after the snapshot transaction commits.
type ArchivedLedgerRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SnapshotID      int             `gorm:"index;not null" json:"snapshot_id"`
	OriginalRowID   int             `gorm:"index;not null" json:"original_row_id"`
	Category        string          `gorm:"size:20" json:"category"`
	Serial          string          `gorm:"size:20" json:"serial"`
	Name            string          `gorm:"size:200" json:"name"`
	Model           string          `gorm:"size:200" json:"model"`
	Spec            string          `gorm:"size:200" json:"spec"`
	Unit            string          `gorm:"size:50" json:"unit"`
	SignedQuantity  int             `json:"signed_quantity"`
	TransactionType TransactionType `gorm:"size:20" json:"transaction_type"`
	Status          RecordStatus    `gorm:"size:10" json:"status"`
	VoidReason      string          `gorm:"type:text" json:"void_reason"`
	SourceActorName string          `gorm:"size:100" json:"source_actor_name"`
	Timestamp       time.Time       `json:"timestamp"`
	PhotoRef        string          `gorm:"size:500" json:"photo_ref"`
}

// ArchivedFromLedger copies one ledger row into snapshot form, keeping the
// original row id so archived history can still be traced to the references
// that circulated in old postbacks.
func ArchivedFromLedger(snapshotID int, r LedgerRecord) ArchivedLedgerRecord {
	return ArchivedLedgerRecord{
		SnapshotID:      snapshotID,
		OriginalRowID:   r.ID,
		Category:        r.Category,
		Serial:          r.Serial,
		Name:            r.Name,
		Model:           r.Model,
		Spec:            r.Spec,
		Unit:            r.Unit,
		SignedQuantity:  r.SignedQuantity,
		TransactionType: r.TransactionType,
		Status:          r.Status,
		VoidReason:      r.VoidReason,
		SourceActorName: r.SourceActorName,
		Timestamp:       r.Timestamp,
		PhotoRef:        r.PhotoRef,
	}
}
