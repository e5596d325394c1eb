// Package flows contains the conversation state machines: the router that
// assigns each inbound event to a workflow, the five workflow handlers
// (query, add, stock movement, edit, delete), and the monthly archival job.
package flows

import (
	"context"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
	"github.com/sirupsen/logrus"
)

// Ledger is the store surface the workflows consume. models.LedgerStore is
// the production implementation; tests use an in-memory fake.
type Ledger interface {
	GetInventoryView() (map[string]models.InventoryItem, error)
	SearchByName(query string) ([]models.InventoryItem, error)
	GetByKey(compositeKey string) (*models.InventoryItem, error)
	Exists(name, model, spec string) (bool, error)
	AllocateSerial(category string) (string, error)
	Append(record *models.LedgerRecord, actor string) error
	Void(rowID int, reason, actor string) error
	PatchCells(rowID int, columnUpdates map[string]string) error
	GetRecord(rowID int) (*models.LedgerRecord, error)
	RecentRecordsByActor(actorName string, limit int) ([]models.LedgerRecord, error)
}

// Profiles resolves a platform user id to the display name written into
// ledger rows. Implementations must degrade internally; the returned name is
// always usable.
type Profiles interface {
	DisplayName(ctx context.Context, userID string) string
}

// Engine routes inbound events through the workflow handlers. Handlers read
// and write the user's session and the ledger, and return outbound message
// descriptors; no failure propagates past Handle.
type Engine struct {
	Ledger   Ledger
	Sessions *session.Store
	Profiles Profiles
	Photos   Photos
	Settings *config.Settings
	Logger   *logrus.Logger
}

func NewEngine(ledger Ledger, sessions *session.Store, profiles Profiles, photos Photos, settings *config.Settings, logger *logrus.Logger) *Engine {
	return &Engine{
		Ledger:   ledger,
		Sessions: sessions,
		Profiles: profiles,
		Photos:   photos,
		Settings: settings,
		Logger:   logger,
	}
}

// Workflow sub-state labels. The label's first segment names the owning
// workflow; the router derives the flow type from it.
const (
	StateQueryAwaitingName   = "query_awaiting_name"
	StateQueryAwaitingSerial = "query_awaiting_serial"

	StateAddAwaitingCategory = "add_awaiting_category"
	StateAddAwaitingName     = "add_awaiting_name"
	StateAddAwaitingModel    = "add_awaiting_model"
	StateAddAwaitingSpec     = "add_awaiting_spec"
	StateAddAwaitingUnit     = "add_awaiting_unit"
	StateAddTypingUnit       = "add_typing_unit"
	StateAddAwaitingQuantity = "add_awaiting_quantity"
	StateAddAwaitingPhoto    = "add_awaiting_photo"
	StateAddAwaitingConfirm  = "add_awaiting_confirmation"

	StateEditNewAwaitingChoice     = "edit_new_awaiting_choice"
	StateEditNewAwaitingUnitChoice = "edit_new_awaiting_unit_choice"
	StateEditNewAwaitingManualUnit = "edit_new_awaiting_manual_unit"
	StateEditNewAwaitingNewValue   = "edit_new_awaiting_new_value"
	StateEditStockAwaitingChoice   = "edit_stock_awaiting_choice"
	StateEditStockAwaitingQuantity = "edit_stock_awaiting_quantity"
	StateEditStockAwaitingType     = "edit_stock_awaiting_type"

	StateDeleteAwaitingConfirm = "delete_awaiting_confirmation"
)

// stockState composes the movement workflow's labels:
// stock_<inbound|outbound>_awaiting_<step>.
func stockState(action, step string) string {
	return "stock_" + action + "_awaiting_" + step
}

// Workflow-private session payloads. The router guarantees a handler only
// ever sees states it owns; handlers still type-assert and treat a mismatch
// as an inconsistency that clears the session.

// AddDraft is the record under construction in the add wizard.
type AddDraft struct {
	Category string
	Name     string
	Model    string
	Spec     string
	Unit     string
	Quantity int
	PhotoRef string
}

// StockDraft is an in-flight inbound/outbound movement.
type StockDraft struct {
	Action   string // "inbound" or "outbound"
	Item     models.InventoryItem
	Quantity int
}

// EditDraft carries the original row and the corrected row being assembled.
// Corrected.SignedQuantity holds the magnitude while editing; the sign is
// applied at finalization from the corrected transaction type.
type EditDraft struct {
	RowID       int
	Original    models.LedgerRecord
	Corrected   models.LedgerRecord
	FieldToEdit string
}

// DeleteDraft identifies the row awaiting delete confirmation.
type DeleteDraft struct {
	RowID int
	Name  string
	Type  models.TransactionType
}

// degraded reports a generic failure to the user and terminates the
// workflow. Used whenever a lower layer fails; raw diagnostics were already
// logged at the store boundary.
func (e *Engine) degraded(sess *session.Session) []line.Message {
	sess.Clear()
	return []line.Message{line.NewText(msgSomethingWrong)}
}

// cancelled terminates the workflow with the cancellation confirmation.
func (e *Engine) cancelled(sess *session.Session) []line.Message {
	sess.Clear()
	return []line.Message{line.NewText(msgCancelled)}
}
