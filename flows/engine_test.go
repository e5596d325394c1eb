package flows_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/flows"
	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
	"github.com/sirupsen/logrus"
)

// fakeLedger keeps the ledger in memory and derives views through the same
// pure functions the real store uses.
type fakeLedger struct {
	rows   []models.LedgerRecord
	nextID int
}

func (f *fakeLedger) view() map[string]models.InventoryItem {
	return models.BuildInventoryView(f.rows)
}

func (f *fakeLedger) GetInventoryView() (map[string]models.InventoryItem, error) {
	return f.view(), nil
}

func (f *fakeLedger) SearchByName(query string) ([]models.InventoryItem, error) {
	return models.MatchByName(f.view(), query), nil
}

func (f *fakeLedger) GetByKey(compositeKey string) (*models.InventoryItem, error) {
	item, ok := f.view()[strings.ToUpper(strings.TrimSpace(compositeKey))]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeLedger) Exists(name, model, spec string) (bool, error) {
	return models.ItemExists(f.view(), name, model, spec), nil
}

func (f *fakeLedger) AllocateSerial(category string) (string, error) {
	return models.NextSerial(f.rows, category, 3), nil
}

func (f *fakeLedger) Append(record *models.LedgerRecord, actor string) error {
	f.nextID++
	record.ID = f.nextID
	record.Status = models.RecordStatusValid
	record.SourceActorName = actor
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_ = record.BeforeSave(nil)
	f.rows = append(f.rows, *record)
	return nil
}

func (f *fakeLedger) Void(rowID int, reason, actor string) error {
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			f.rows[i].Status = models.RecordStatusVoid
			f.rows[i].VoidReason = reason
			f.rows[i].SourceActorName = actor
			f.rows[i].Timestamp = time.Now()
			return nil
		}
	}
	return models.ErrorRecordNotFound
}

func (f *fakeLedger) PatchCells(rowID int, columnUpdates map[string]string) error {
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			if reason, ok := columnUpdates["void_reason"]; ok {
				f.rows[i].VoidReason = reason
			}
			return nil
		}
	}
	return models.ErrorRecordNotFound
}

func (f *fakeLedger) GetRecord(rowID int) (*models.LedgerRecord, error) {
	for i := range f.rows {
		if f.rows[i].ID == rowID {
			record := f.rows[i]
			return &record, nil
		}
	}
	return nil, models.ErrorRecordNotFound
}

func (f *fakeLedger) RecentRecordsByActor(actorName string, limit int) ([]models.LedgerRecord, error) {
	var out []models.LedgerRecord
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].SourceActorName == actorName {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

type fakeProfiles struct{ name string }

func (p fakeProfiles) DisplayName(ctx context.Context, userID string) string { return p.name }

type fakePhotos struct {
	ref string
	err error
}

func (p fakePhotos) Ingest(ctx context.Context, messageID string) (string, error) {
	return p.ref, p.err
}

func newTestEngine(ledger *fakeLedger) *flows.Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	settings := &config.Settings{
		SerialWidth:       3,
		RecordsFetchLimit: 5,
		DefaultImageURL:   "https://example.com/none.png",
		Categories:        []config.MenuOption{{Key: "A", Label: "Tools"}},
		Units:             []string{"pcs", "box"},
	}
	photos := fakePhotos{ref: "https://storage.googleapis.com/bucket/items/test.jpg"}
	return flows.NewEngine(ledger, session.NewStore(), fakeProfiles{name: "Tester"}, photos, settings, logger)
}

func postback(data string) line.Event {
	return line.Event{Kind: line.EventKindPostback, UserID: "U1", ReplyToken: "rt", PostbackData: data}
}

func message(text string) line.Event {
	return line.Event{Kind: line.EventKindMessage, UserID: "U1", ReplyToken: "rt", Text: text}
}

func image(messageID string) line.Event {
	return line.Event{Kind: line.EventKindImage, UserID: "U1", ReplyToken: "rt", MessageID: messageID}
}

func textOf(t *testing.T, msgs []line.Message) string {
	t.Helper()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	tm, ok := msgs[0].(line.TextMessage)
	if !ok {
		t.Fatalf("expected TextMessage, got %T", msgs[0])
	}
	return tm.Text
}

func seedItem(ledger *fakeLedger, category, serial, name string, qty int) {
	ledger.Append(&models.LedgerRecord{
		Category:        category,
		Serial:          serial,
		Name:            name,
		Unit:            "pcs",
		SignedQuantity:  qty,
		TransactionType: models.TransactionTypeNew,
	}, "Seeder")
}

func TestAddWizardEndToEnd(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, message("Widget"))
	engine.Handle(ctx, postback("add_model="))
	engine.Handle(ctx, postback("add_spec="))
	engine.Handle(ctx, postback("add_unit=pcs"))
	engine.Handle(ctx, message("10"))
	engine.Handle(ctx, postback("add_photo="))
	reply := engine.Handle(ctx, postback("add_confirm=yes"))

	if !strings.Contains(textOf(t, reply), "A001") {
		t.Errorf("success reply should name the new serial, got %q", textOf(t, reply))
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(ledger.rows))
	}
	row := ledger.rows[0]
	if row.TransactionType != models.TransactionTypeNew || row.Serial != "001" || row.SignedQuantity != 10 {
		t.Errorf("unexpected appended row: %+v", row)
	}
	if row.SourceActorName != "Tester" {
		t.Errorf("actor = %q, want the resolved display name", row.SourceActorName)
	}
	if engine.Sessions.Get("U1").State() != "" {
		t.Error("session should be cleared after finish")
	}
}

func TestAddWizardRejectsDuplicate(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, message("Widget"))
	engine.Handle(ctx, postback("add_model="))
	engine.Handle(ctx, postback("add_spec="))
	engine.Handle(ctx, postback("add_unit=pcs"))
	engine.Handle(ctx, message("3"))
	engine.Handle(ctx, postback("add_photo="))
	reply := engine.Handle(ctx, postback("add_confirm=yes"))

	if !strings.Contains(textOf(t, reply), "already exists") {
		t.Errorf("expected duplicate message, got %q", textOf(t, reply))
	}
	if len(ledger.rows) != 1 {
		t.Errorf("duplicate confirm must not append, rows = %d", len(ledger.rows))
	}
}

func TestAddWizardRepromptsOnInvalidQuantity(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, message("Widget"))
	engine.Handle(ctx, postback("add_model="))
	engine.Handle(ctx, postback("add_spec="))
	engine.Handle(ctx, postback("add_unit=pcs"))

	engine.Handle(ctx, message("lots"))
	if got := engine.Sessions.Get("U1").State(); got != flows.StateAddAwaitingQuantity {
		t.Errorf("state = %q, want to stay on quantity step", got)
	}
	engine.Handle(ctx, message("-4"))
	if got := engine.Sessions.Get("U1").State(); got != flows.StateAddAwaitingQuantity {
		t.Errorf("state = %q, negative quantity must re-prompt", got)
	}
}

func TestAddWizardStoresItemPhoto(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, message("Widget"))
	engine.Handle(ctx, postback("add_model="))
	engine.Handle(ctx, postback("add_spec="))
	engine.Handle(ctx, postback("add_unit=pcs"))
	engine.Handle(ctx, message("10"))

	reply := engine.Handle(ctx, image("m42"))
	if !strings.Contains(textOf(t, reply), "confirm") {
		t.Errorf("photo upload should advance to confirmation, got %q", textOf(t, reply))
	}
	engine.Handle(ctx, postback("add_confirm=yes"))

	if len(ledger.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(ledger.rows))
	}
	if got := ledger.rows[0].PhotoRef; got != "https://storage.googleapis.com/bucket/items/test.jpg" {
		t.Errorf("photo ref = %q, want the stored object URL", got)
	}
}

func TestAddWizardRepromptsOnFailedPhotoUpload(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)
	engine.Photos = fakePhotos{err: context.DeadlineExceeded}
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, message("Widget"))
	engine.Handle(ctx, postback("add_model="))
	engine.Handle(ctx, postback("add_spec="))
	engine.Handle(ctx, postback("add_unit=pcs"))
	engine.Handle(ctx, message("10"))

	reply := engine.Handle(ctx, image("m42"))
	if !strings.Contains(textOf(t, reply), "could not be saved") {
		t.Errorf("failed upload reply = %q", textOf(t, reply))
	}
	if got := engine.Sessions.Get("U1").State(); got != flows.StateAddAwaitingPhoto {
		t.Errorf("state = %q, want to stay on the photo step", got)
	}

	// Skipping after the failure still completes the wizard, photo-less.
	engine.Handle(ctx, postback("add_photo="))
	engine.Handle(ctx, postback("add_confirm=yes"))
	if len(ledger.rows) != 1 || ledger.rows[0].PhotoRef != "" {
		t.Errorf("skip after failure should append without a photo: %+v", ledger.rows)
	}
}

func TestMenuCommandAbandonsInFlightWizard(t *testing.T) {
	ledger := &fakeLedger{}
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("action=add"))
	engine.Handle(ctx, postback("add_category=A"))
	engine.Handle(ctx, postback("action=query"))

	state := engine.Sessions.Get("U1").State()
	if strings.HasPrefix(state, "add_") {
		t.Errorf("menu command must reset the wizard, state = %q", state)
	}
	if len(ledger.rows) != 0 {
		t.Error("abandoned wizard must leave no rows")
	}
}

func TestStockOutboundRejectsInsufficientStock(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("stock_select&action=outbound&key=A001"))
	reply := engine.Handle(ctx, message("10"))

	if !strings.Contains(textOf(t, reply), "Not enough stock") {
		t.Errorf("expected insufficiency message, got %q", textOf(t, reply))
	}
	if engine.Sessions.Get("U1").State() != "" {
		t.Error("insufficient stock must terminate the workflow")
	}
	if len(ledger.rows) != 1 {
		t.Errorf("no movement row may be appended, rows = %d", len(ledger.rows))
	}
}

func TestStockInboundAppendsSignedRow(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("stock_select&action=inbound&key=A001"))
	engine.Handle(ctx, message("3"))
	reply := engine.Handle(ctx, postback("stock_confirm=yes"))

	if !strings.Contains(textOf(t, reply), "8 pcs") {
		t.Errorf("reply should report new stock 8 pcs, got %q", textOf(t, reply))
	}
	if len(ledger.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(ledger.rows))
	}
	movement := ledger.rows[1]
	if movement.TransactionType != models.TransactionTypeInbound || movement.SignedQuantity != 3 {
		t.Errorf("unexpected movement row: %+v", movement)
	}
}

func TestStockOutboundAppendsNegativeRow(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("stock_select&action=outbound&key=A001"))
	engine.Handle(ctx, message("2"))
	engine.Handle(ctx, postback("stock_confirm=yes"))

	if len(ledger.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(ledger.rows))
	}
	movement := ledger.rows[1]
	if movement.SignedQuantity != -2 || movement.TransactionType != models.TransactionTypeOutbound {
		t.Errorf("outbound row must carry a negative quantity: %+v", movement)
	}
	if got := ledger.view()["A001"].Quantity; got != 3 {
		t.Errorf("stock after outbound = %d, want 3", got)
	}
}

func TestStockConfirmNoCancels(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("stock_select&action=outbound&key=A001"))
	engine.Handle(ctx, message("2"))
	engine.Handle(ctx, postback("stock_confirm=no"))

	if len(ledger.rows) != 1 {
		t.Errorf("cancelled movement must not append, rows = %d", len(ledger.rows))
	}
	if engine.Sessions.Get("U1").State() != "" {
		t.Error("session should be cleared after cancel")
	}
}

func TestEditProducesExactlyOneVoidAndOneCorrectedRow(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 4)
	ledger.rows[0].SourceActorName = "Tester"
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("edit_start&type=new&row=1"))
	engine.Handle(ctx, postback("edit_field=name"))
	engine.Handle(ctx, message("Better Widget"))
	reply := engine.Handle(ctx, postback("edit_field=finish"))

	if !strings.Contains(textOf(t, reply), "corrected") {
		t.Errorf("unexpected finish reply %q", textOf(t, reply))
	}
	if len(ledger.rows) != 2 {
		t.Fatalf("rows = %d, want original + corrected", len(ledger.rows))
	}

	original := ledger.rows[0]
	if original.Status != models.RecordStatusVoid {
		t.Error("original row must be voided, not removed")
	}
	if original.Name != "Widget" {
		t.Error("void must not rewrite business fields")
	}
	if original.VoidReason != "corrected fields: name" {
		t.Errorf("void reason = %q", original.VoidReason)
	}

	corrected := ledger.rows[1]
	if corrected.Name != "Better Widget" || corrected.SignedQuantity != 4 {
		t.Errorf("unexpected corrected row: %+v", corrected)
	}
	if corrected.Serial != "001" || corrected.Category != "A" {
		t.Error("correction must keep the item identity")
	}
	if corrected.Status != models.RecordStatusValid {
		t.Error("corrected row must be valid")
	}
}

func TestEditStockRevalidatesOutboundAgainstVoidAdjustedStock(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 5)
	// Outbound of 2 by the same user, leaving stock 3.
	engine := newTestEngine(ledger)
	ctx := context.Background()
	engine.Handle(ctx, postback("stock_select&action=outbound&key=A001"))
	engine.Handle(ctx, message("2"))
	engine.Handle(ctx, postback("stock_confirm=yes"))

	// Editing that outbound to 5 is fine: voiding the original frees its 2.
	engine.Handle(ctx, postback("edit_start&type=stock&row=2"))
	engine.Handle(ctx, postback("edit_stock_choice=quantity"))
	engine.Handle(ctx, message("5"))
	engine.Handle(ctx, postback("edit_stock_choice=finish"))

	if got := ledger.view()["A001"].Quantity; got != 0 {
		t.Errorf("stock after corrected outbound = %d, want 0", got)
	}

	// A second edit demanding 6 must fail: only 5 exist once the row is voided.
	engine2 := newTestEngine(ledger)
	lastID := ledger.rows[len(ledger.rows)-1].ID
	engine2.Handle(ctx, postback("edit_start&type=stock&row="+itoa(lastID)))
	engine2.Handle(ctx, postback("edit_stock_choice=quantity"))
	engine2.Handle(ctx, message("6"))
	reply := engine2.Handle(ctx, postback("edit_stock_choice=finish"))

	if !strings.Contains(textOf(t, reply), "Not enough stock") {
		t.Errorf("expected insufficiency, got %q", textOf(t, reply))
	}
	if got := engine2.Sessions.Get("U1").State(); got != flows.StateEditStockAwaitingChoice {
		t.Errorf("state = %q, want to return to the edit menu", got)
	}
}

func TestDeleteVoidsWithDataEntryErrorReason(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 4)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("delete_record&row=1"))
	reply := engine.Handle(ctx, postback("delete_confirm=yes"))

	if !strings.Contains(textOf(t, reply), "voided") {
		t.Errorf("unexpected delete reply %q", textOf(t, reply))
	}
	if len(ledger.rows) != 1 {
		t.Fatal("delete must never remove the row")
	}
	row := ledger.rows[0]
	if row.Status != models.RecordStatusVoid || row.VoidReason != "data entry error" {
		t.Errorf("unexpected voided row: %+v", row)
	}
}

func TestDeleteConfirmNoLeavesRowValid(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 4)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("delete_record&row=1"))
	engine.Handle(ctx, postback("delete_confirm=no"))

	if ledger.rows[0].Status != models.RecordStatusValid {
		t.Error("declined delete must leave the row valid")
	}
}

func TestQueryResultCardinality(t *testing.T) {
	ctx := context.Background()

	// Empty inventory: plain not-found text.
	engine := newTestEngine(&fakeLedger{})
	reply := engine.Handle(ctx, postback("query_type=all"))
	if !strings.Contains(textOf(t, reply), "No matching item") {
		t.Errorf("empty inventory reply = %q", textOf(t, reply))
	}

	// One item: a single flex card.
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Widget", 4)
	engine = newTestEngine(ledger)
	reply = engine.Handle(ctx, postback("query_type=all"))
	if len(reply) != 1 {
		t.Fatalf("expected one message, got %d", len(reply))
	}
	flex, ok := reply[0].(line.FlexMessage)
	if !ok {
		t.Fatalf("expected FlexMessage, got %T", reply[0])
	}
	if _, ok := flex.Contents.(*line.Bubble); !ok {
		t.Errorf("single result should be a bubble, got %T", flex.Contents)
	}

	// A few items: a carousel.
	seedItem(ledger, "A", "002", "Gadget", 1)
	engine = newTestEngine(ledger)
	reply = engine.Handle(ctx, postback("query_type=all"))
	flex = reply[0].(line.FlexMessage)
	if _, ok := flex.Contents.(*line.Carousel); !ok {
		t.Errorf("multiple results should be a carousel, got %T", flex.Contents)
	}

	// Above the carousel limit: text summary.
	big := &fakeLedger{}
	for i := 0; i < line.MaxCarouselCards+1; i++ {
		seedItem(big, "A", models.PadSerial(i+1, 3), "Item", 1)
	}
	engine = newTestEngine(big)
	reply = engine.Handle(ctx, postback("query_type=all"))
	if _, ok := reply[0].(line.TextMessage); !ok {
		t.Errorf("oversize result should degrade to text, got %T", reply[0])
	}
}

func TestQueryByNameFlow(t *testing.T) {
	ledger := &fakeLedger{}
	seedItem(ledger, "A", "001", "Big Widget", 4)
	engine := newTestEngine(ledger)
	ctx := context.Background()

	engine.Handle(ctx, postback("query_type=by_name"))
	reply := engine.Handle(ctx, message(" WID get "))

	if len(reply) != 1 {
		t.Fatalf("expected one message, got %d", len(reply))
	}
	if _, ok := reply[0].(line.FlexMessage); !ok {
		t.Errorf("expected a card for the single match, got %T", reply[0])
	}
	if engine.Sessions.Get("U1").State() != "" {
		t.Error("query session must not outlive the result")
	}
}

func TestRouterDropsUnclaimedEvents(t *testing.T) {
	engine := newTestEngine(&fakeLedger{})
	ctx := context.Background()

	if reply := engine.Handle(ctx, message("hello")); reply != nil {
		t.Errorf("free text with no state must be dropped, got %v", reply)
	}
	if reply := engine.Handle(ctx, postback("bogus=1")); reply != nil {
		t.Errorf("unknown postback must be dropped, got %v", reply)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
