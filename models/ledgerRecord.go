package models

import (
	"time"

	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeNew            TransactionType = "New"
	TransactionTypeInbound        TransactionType = "Inbound"
	TransactionTypeOutbound       TransactionType = "Outbound"
	TransactionTypeOpeningBalance TransactionType = "OpeningBalance"
)

type RecordStatus string

const (
	RecordStatusValid RecordStatus = "Valid"
	RecordStatusVoid  RecordStatus = "Void"
)

// LedgerRecord is one row of the append-only transaction ledger. The column
// order is compatibility-critical (fixed 13-column layout shared with the
// spreadsheet exports): category, serial, name, model, spec, unit,
// signed_quantity, transaction_type, status, void_reason, source_actor_name,
// timestamp, photo_ref.
//
// Business fields (everything except status/void_reason/source_actor_name/
// timestamp) are immutable once appended. Corrections are expressed as
// void-original + append-corrected, never as in-place edits. The row id is
// append-ordered and is the stable external reference carried inside
// edit/delete postback data; it is never reassigned or reused.
type LedgerRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Category        string          `gorm:"size:20;index;not null" json:"category"`
	Serial          string          `gorm:"size:20;index;not null" json:"serial"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	Model           string          `gorm:"size:200" json:"model"`
	Spec            string          `gorm:"size:200" json:"spec"`
	Unit            string          `gorm:"size:50" json:"unit"`
	SignedQuantity  int             `gorm:"not null;default:0" json:"signed_quantity"`
	TransactionType TransactionType `gorm:"type:enum('New','Inbound','Outbound','OpeningBalance');not null" json:"transaction_type"`
	Status          RecordStatus    `gorm:"type:enum('Valid','Void');default:'Valid';index" json:"status"`
	VoidReason      string          `gorm:"type:text" json:"void_reason"`
	SourceActorName string          `gorm:"size:100;index" json:"source_actor_name"`
	Timestamp       time.Time       `gorm:"index" json:"timestamp"`
	PhotoRef        string          `gorm:"size:500" json:"photo_ref"`
}

// CompositeKey identifies the material this row belongs to. Shared by the
// whole transaction history of one item, not unique per row.
func (r *LedgerRecord) CompositeKey() string {
	return r.Category + r.Serial
}

func (r *LedgerRecord) IsVoid() bool {
	return r.Status == RecordStatusVoid
}

// BeforeSave enforces the sign-vs-type invariant for the ledger.
//
// Inventory is derived as a plain sum over valid rows, so a mis-signed
// quantity silently corrupts every downstream view. We ensure:
// - Outbound rows always carry a negative quantity
// - New and Inbound rows always carry a non-negative quantity
// - OpeningBalance rows pass through untouched: they carry the previous
//   period's closing balance verbatim, and that balance is legitimately
//   negative after an edit shrank a New row below what was already issued
func (r *LedgerRecord) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if r == nil || r.SignedQuantity == 0 {
		return nil
	}
	switch r.TransactionType {
	case TransactionTypeOutbound:
		if r.SignedQuantity > 0 {
			r.SignedQuantity = -r.SignedQuantity
		}
	case TransactionTypeOpeningBalance:
		// carry-forward, any sign
	default:
		if r.SignedQuantity < 0 {
			r.SignedQuantity = -r.SignedQuantity
		}
	}
	return nil
}
