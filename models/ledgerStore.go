package models

import (
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// LedgerStore owns all reads and writes of the transaction ledger. It has no
// knowledge of conversation state. Every operation returns an explicit error;
// the workflow layer decides how failure degrades into the conversation.
type LedgerStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewLedgerStore(db *gorm.DB, logger *logrus.Logger) *LedgerStore {
	return &LedgerStore{DB: db, Logger: logger}
}

func (s *LedgerStore) loadAll() ([]LedgerRecord, error) {
	var rows []LedgerRecord
	if err := s.DB.Order("id ASC").Find(&rows).Error; err != nil {
		config.LogError(s.Logger, "models", "loadAll", "scanning ledger", nil, err)
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) inventoryCacheTTL() time.Duration {
	if settings := config.GetSettings(); settings != nil {
		return settings.InventoryCacheTTL
	}
	return 5 * time.Minute
}

// GetInventoryView returns the materialized CompositeKey -> InventoryItem
// mapping, from cache when fresh, otherwise from a full ledger scan.
func (s *LedgerStore) GetInventoryView() (map[string]InventoryItem, error) {
	if view, ok := getCachedInventory(); ok {
		return view, nil
	}
	rows, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	view := BuildInventoryView(rows)
	setCachedInventory(view, s.inventoryCacheTTL())
	return view, nil
}

// SearchByName matches case/space-insensitively on item names. No ordering
// guarantee; callers sort for display.
func (s *LedgerStore) SearchByName(query string) ([]InventoryItem, error) {
	view, err := s.GetInventoryView()
	if err != nil {
		return nil, err
	}
	return MatchByName(view, query), nil
}

// GetByKey looks up one item by its composite key, case-normalized.
// Returns nil with no error when the key has no current entry.
func (s *LedgerStore) GetByKey(compositeKey string) (*InventoryItem, error) {
	view, err := s.GetInventoryView()
	if err != nil {
		return nil, err
	}
	item, ok := view[strings.ToUpper(strings.TrimSpace(compositeKey))]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Exists reports whether a current entry matches name/model/spec exactly.
func (s *LedgerStore) Exists(name, model, spec string) (bool, error) {
	view, err := s.GetInventoryView()
	if err != nil {
		return false, err
	}
	return ItemExists(view, name, model, spec), nil
}

// AllocateSerial returns the next serial for the category.
//
// Known race, accepted: allocation is read-then-append without a reservation,
// so two concurrent confirmations in the same category can draw the same
// serial. Per-user event serialization keeps the window to the width of one
// ledger round trip; see DESIGN.md.
func (s *LedgerStore) AllocateSerial(category string) (string, error) {
	rows, err := s.loadAll()
	if err != nil {
		return "", err
	}
	width := 3
	if settings := config.GetSettings(); settings != nil {
		width = settings.SerialWidth
	}
	return NextSerial(rows, category, width), nil
}

// Append adds one valid row and invalidates the inventory cache.
func (s *LedgerStore) Append(record *LedgerRecord, actor string) error {
	record.ID = 0
	record.Status = RecordStatusValid
	record.SourceActorName = actor
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := s.DB.Create(record).Error; err != nil {
		config.LogError(s.Logger, "models", "Append", "appending ledger row", record, err)
		return err
	}
	InvalidateInventoryCache()
	return nil
}

// Void marks a row void. Only status, void_reason, source_actor_name and
// timestamp are touched; business fields stay byte-identical. Irreversible,
// and never deletes the row.
func (s *LedgerStore) Void(rowID int, reason, actor string) error {
	result := s.DB.Model(&LedgerRecord{}).Where("id = ?", rowID).Updates(map[string]interface{}{
		"status":            RecordStatusVoid,
		"void_reason":       reason,
		"source_actor_name": actor,
		"timestamp":         time.Now(),
	})
	if result.Error != nil {
		config.LogError(s.Logger, "models", "Void", "voiding ledger row", rowID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrorRecordNotFound
	}
	InvalidateInventoryCache()
	return nil
}

// PatchCells updates arbitrary columns of one row. Used to attach a derived
// correction reason after a void; it never touches quantity columns and so
// does not invalidate inventory semantics.
func (s *LedgerStore) PatchCells(rowID int, columnUpdates map[string]string) error {
	if len(columnUpdates) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(columnUpdates))
	for col, val := range columnUpdates {
		updates[col] = val
	}
	result := s.DB.Model(&LedgerRecord{}).Where("id = ?", rowID).Updates(updates)
	if result.Error != nil {
		config.LogError(s.Logger, "models", "PatchCells", "patching ledger row", rowID, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// GetRecord reads one row by id, fresh from the ledger. Edit and delete
// re-read their target instead of trusting anything carried in a postback.
func (s *LedgerStore) GetRecord(rowID int) (*LedgerRecord, error) {
	var record LedgerRecord
	if err := s.DB.First(&record, rowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		config.LogError(s.Logger, "models", "GetRecord", "reading ledger row", rowID, err)
		return nil, err
	}
	return &record, nil
}

// RecentRecordsByActor returns the actor's latest rows, newest first, for the
// "my records" listing that seeds the edit and delete workflows.
func (s *LedgerStore) RecentRecordsByActor(actorName string, limit int) ([]LedgerRecord, error) {
	var rows []LedgerRecord
	err := s.DB.Where("source_actor_name = ?", actorName).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		config.LogError(s.Logger, "models", "RecentRecordsByActor", "reading actor rows", actorName, err)
		return nil, err
	}
	return rows, nil
}
