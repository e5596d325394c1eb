package models

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// InventoryItem is the derived current-state projection of one material:
// quantity summed over valid ledger rows, descriptive fields taken from the
// first valid row observed for the key.
type InventoryItem struct {
	Category string `json:"category"`
	Serial   string `json:"serial"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Spec     string `json:"spec"`
	Unit     string `json:"unit"`
	Quantity int    `json:"quantity"`
	PhotoRef string `json:"photo_ref"`
}

func (i InventoryItem) CompositeKey() string {
	return i.Category + i.Serial
}

// BuildInventoryView materializes the inventory projection from a full ledger
// scan. Rows must be in append order so "first valid row wins" is stable.
func BuildInventoryView(rows []LedgerRecord) map[string]InventoryItem {
	view := make(map[string]InventoryItem)
	for _, row := range rows {
		if row.Status != RecordStatusValid {
			continue
		}
		key := row.CompositeKey()
		item, ok := view[key]
		if !ok {
			item = InventoryItem{
				Category: row.Category,
				Serial:   row.Serial,
				Name:     row.Name,
				Model:    row.Model,
				Spec:     row.Spec,
				Unit:     row.Unit,
				PhotoRef: row.PhotoRef,
			}
		}
		item.Quantity += row.SignedQuantity
		view[key] = item
	}
	return view
}

// NormalizeQuery lowercases and strips all whitespace. Name search is
// case/space-insensitive on both sides.
func NormalizeQuery(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchByName returns the view entries whose normalized name contains the
// normalized query. No ordering guarantee; callers sort.
func MatchByName(view map[string]InventoryItem, query string) []InventoryItem {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil
	}
	var results []InventoryItem
	for _, item := range view {
		if strings.Contains(NormalizeQuery(item.Name), normalized) {
			results = append(results, item)
		}
	}
	return results
}

// SortItems orders by category then serial, the display order used for
// carousels and summary lists.
func SortItems(items []InventoryItem) {
	sort.Slice(items, func(a, b int) bool {
		if items[a].Category != items[b].Category {
			return items[a].Category < items[b].Category
		}
		return items[a].Serial < items[b].Serial
	})
}

// ItemExists reports whether any current view entry matches name, model and
// spec exactly, with empty-string normalization for absent model/spec.
func ItemExists(view map[string]InventoryItem, name, model, spec string) bool {
	for _, item := range view {
		if item.Name == name && item.Model == model && item.Spec == spec {
			return true
		}
	}
	return false
}

// NextSerial allocates the next serial for a category: one past the highest
// serial among non-void rows of that category, zero-padded to width. Serials
// of voided rows are skipped when scanning but their values are never reused
// for a different item, because voiding a row never removes the other,
// still-valid rows carrying the same serial.
func NextSerial(rows []LedgerRecord, category string, width int) string {
	maxSerial := 0
	for _, row := range rows {
		if row.Category != category || row.Status == RecordStatusVoid {
			continue
		}
		n, err := strconv.Atoi(row.Serial)
		if err != nil {
			continue
		}
		if n > maxSerial {
			maxSerial = n
		}
	}
	return PadSerial(maxSerial+1, width)
}

func PadSerial(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// OpeningRows derives the opening-balance rows for a new period from the rows
// of the one just closed: one OpeningBalance row per item with a nonzero
// closing quantity, carrying the descriptive fields forward.
func OpeningRows(closedRows []LedgerRecord, actor string) []LedgerRecord {
	view := BuildInventoryView(closedRows)
	items := make([]InventoryItem, 0, len(view))
	for _, item := range view {
		if item.Quantity != 0 {
			items = append(items, item)
		}
	}
	SortItems(items)

	rows := make([]LedgerRecord, 0, len(items))
	for _, item := range items {
		rows = append(rows, LedgerRecord{
			Category:        item.Category,
			Serial:          item.Serial,
			Name:            item.Name,
			Model:           item.Model,
			Spec:            item.Spec,
			Unit:            item.Unit,
			SignedQuantity:  item.Quantity,
			TransactionType: TransactionTypeOpeningBalance,
			Status:          RecordStatusValid,
			SourceActorName: actor,
			PhotoRef:        item.PhotoRef,
		})
	}
	return rows
}
