package flows

import (
	"context"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

// handleEdit corrects a past ledger row through the append-only protocol:
// the user adjusts a working copy, and finalization voids the original row,
// annotates the derived change reason, and appends the corrected row. New
// rows get a full field editor; movement rows only expose quantity and type.
func (e *Engine) handleEdit(ctx context.Context, ev line.Event, sess *session.Session) []line.Message {
	state := sess.State()

	if state == "" {
		cmd, ok := line.ParseCommand(ev.Data()).(line.EditStartCommand)
		if !ok || ev.Kind != line.EventKindPostback {
			return nil
		}
		return e.startEdit(sess, cmd)
	}

	draft, ok := sess.Payload().(*EditDraft)
	if !ok {
		return e.cancelled(sess)
	}

	switch state {
	case StateEditStockAwaitingChoice:
		cmd, ok := line.ParseCommand(ev.Data()).(line.EditStockChoiceCommand)
		if !ok || ev.Kind != line.EventKindPostback {
			return nil
		}
		switch cmd.Choice {
		case "finish":
			return e.finalizeEdit(ctx, ev, sess, draft)
		case "quantity":
			sess.SetState(StateEditStockAwaitingQuantity)
			return []line.Message{line.NewText(formatMessage(msgPromptEditNewValue, map[string]string{"field": "quantity"}))}
		case "type":
			sess.SetState(StateEditStockAwaitingType)
			return []line.Message{line.NewTextWithButtons(msgPromptEditType,
				line.NewPostbackButton(labelInbound, "edit_type=Inbound"),
				line.NewPostbackButton(labelOutbound, "edit_type=Outbound"),
			)}
		}
		return nil

	case StateEditStockAwaitingQuantity:
		if ev.Kind != line.EventKindMessage {
			return nil
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(ev.Text))
		if err != nil || quantity < 0 {
			return []line.Message{line.NewText(msgErrorInvalidQuantity)}
		}
		draft.Corrected.SignedQuantity = quantity
		sess.SetState(StateEditStockAwaitingChoice)
		return []line.Message{e.stockEditMenu(draft, "Updated.\n\n")}

	case StateEditStockAwaitingType:
		cmd, ok := line.ParseCommand(ev.Data()).(line.EditTypeCommand)
		if !ok || ev.Kind != line.EventKindPostback {
			return nil
		}
		switch models.TransactionType(cmd.Type) {
		case models.TransactionTypeInbound, models.TransactionTypeOutbound:
			draft.Corrected.TransactionType = models.TransactionType(cmd.Type)
		default:
			return nil
		}
		sess.SetState(StateEditStockAwaitingChoice)
		return []line.Message{e.stockEditMenu(draft, "Updated.\n\n")}

	case StateEditNewAwaitingChoice:
		cmd, ok := line.ParseCommand(ev.Data()).(line.EditFieldCommand)
		if !ok || ev.Kind != line.EventKindPostback {
			return nil
		}
		switch cmd.Field {
		case "finish":
			return e.finalizeEdit(ctx, ev, sess, draft)
		case "unit":
			sess.SetState(StateEditNewAwaitingUnitChoice)
			return []line.Message{line.NewTextWithButtons(
				formatMessage(msgPromptEditNewValue, map[string]string{"field": "unit"}),
				e.unitButtons("edit_unit=")...,
			)}
		case "name", "model", "spec", "quantity":
			draft.FieldToEdit = cmd.Field
			sess.SetState(StateEditNewAwaitingNewValue)
			return []line.Message{line.NewText(formatMessage(msgPromptEditNewValue, map[string]string{"field": cmd.Field}))}
		}
		return nil

	case StateEditNewAwaitingUnitChoice:
		cmd, ok := line.ParseCommand(ev.Data()).(line.EditUnitCommand)
		if !ok || ev.Kind != line.EventKindPostback {
			return nil
		}
		if cmd.Value == manualUnitValue {
			sess.SetState(StateEditNewAwaitingManualUnit)
			return []line.Message{line.NewText(msgPromptManualUnit)}
		}
		draft.Corrected.Unit = cmd.Value
		sess.SetState(StateEditNewAwaitingChoice)
		return []line.Message{e.newItemEditMenu(draft, "\"unit\" updated.\n\n")}

	case StateEditNewAwaitingManualUnit:
		if ev.Kind != line.EventKindMessage {
			return nil
		}
		draft.Corrected.Unit = strings.TrimSpace(ev.Text)
		sess.SetState(StateEditNewAwaitingChoice)
		return []line.Message{e.newItemEditMenu(draft, "\"unit\" updated.\n\n")}

	case StateEditNewAwaitingNewValue:
		if ev.Kind != line.EventKindMessage {
			return nil
		}
		value := strings.TrimSpace(ev.Text)
		field := draft.FieldToEdit
		switch field {
		case "name":
			draft.Corrected.Name = value
		case "model":
			draft.Corrected.Model = value
		case "spec":
			draft.Corrected.Spec = value
		case "quantity":
			quantity, err := strconv.Atoi(value)
			if err != nil || quantity < 0 {
				return []line.Message{line.NewText(msgErrorInvalidQuantity)}
			}
			draft.Corrected.SignedQuantity = quantity
		default:
			return e.cancelled(sess)
		}
		draft.FieldToEdit = ""
		sess.SetState(StateEditNewAwaitingChoice)
		return []line.Message{e.newItemEditMenu(draft, "\""+field+"\" updated.\n\n")}
	}

	return nil
}

// startEdit re-reads the target row fresh from the ledger instead of
// trusting anything carried in the postback, then opens the matching editor.
func (e *Engine) startEdit(sess *session.Session, cmd line.EditStartCommand) []line.Message {
	record, err := e.Ledger.GetRecord(cmd.Row)
	if err != nil {
		if err == models.ErrorRecordNotFound {
			sess.Clear()
			return []line.Message{line.NewText(msgQueryNotFound)}
		}
		return e.degraded(sess)
	}

	corrected := *record
	if corrected.SignedQuantity < 0 {
		corrected.SignedQuantity = -corrected.SignedQuantity
	}
	draft := &EditDraft{RowID: cmd.Row, Original: *record, Corrected: corrected}
	sess.SetPayload(draft)

	switch cmd.TargetType {
	case "new":
		sess.SetState(StateEditNewAwaitingChoice)
		return []line.Message{e.newItemEditMenu(draft, "")}
	case "stock":
		sess.SetState(StateEditStockAwaitingChoice)
		return []line.Message{e.stockEditMenu(draft, "")}
	}
	sess.Clear()
	return nil
}

func (e *Engine) newItemEditMenu(draft *EditDraft, leading string) line.Message {
	text := formatMessage(msgPromptNewItemChoice, map[string]string{
		"leading":  leading,
		"name":     draft.Corrected.Name,
		"model":    orDash(draft.Corrected.Model),
		"spec":     orDash(draft.Corrected.Spec),
		"unit":     draft.Corrected.Unit,
		"quantity": strconv.Itoa(draft.Corrected.SignedQuantity),
	})
	return line.NewTextWithButtons(text,
		line.NewPostbackButton("Change name", "edit_field=name"),
		line.NewPostbackButton("Change model", "edit_field=model"),
		line.NewPostbackButton("Change spec", "edit_field=spec"),
		line.NewPostbackButton("Change unit", "edit_field=unit"),
		line.NewPostbackButton("Change quantity", "edit_field=quantity"),
		line.NewPostbackButton(labelSaveEdit, "edit_field=finish"),
	)
}

func (e *Engine) stockEditMenu(draft *EditDraft, leading string) line.Message {
	text := formatMessage(msgPromptEditStockChoice, map[string]string{
		"leading":  leading,
		"name":     draft.Corrected.Name,
		"type":     string(draft.Corrected.TransactionType),
		"quantity": strconv.Itoa(draft.Corrected.SignedQuantity),
	})
	return line.NewTextWithButtons(text,
		line.NewPostbackButton("Change quantity", "edit_stock_choice=quantity"),
		line.NewPostbackButton("Change type", "edit_stock_choice=type"),
		line.NewPostbackButton(labelSaveEdit, "edit_stock_choice=finish"),
	)
}

// changedFields lists the business fields that differ between the original
// row and the corrected draft, for the derived void reason.
func changedFields(original models.LedgerRecord, corrected models.LedgerRecord) []string {
	var changed []string
	originalQuantity := original.SignedQuantity
	if originalQuantity < 0 {
		originalQuantity = -originalQuantity
	}
	if original.Name != corrected.Name {
		changed = append(changed, "name")
	}
	if original.Model != corrected.Model {
		changed = append(changed, "model")
	}
	if original.Spec != corrected.Spec {
		changed = append(changed, "spec")
	}
	if original.Unit != corrected.Unit {
		changed = append(changed, "unit")
	}
	if originalQuantity != corrected.SignedQuantity {
		changed = append(changed, "quantity")
	}
	if original.TransactionType != corrected.TransactionType {
		changed = append(changed, "type")
	}
	return changed
}

// finalizeEdit applies the correction protocol: re-validate outbound stock
// with the original row's effect excluded, void the original, patch the
// derived reason into the void reason column, append the corrected row.
func (e *Engine) finalizeEdit(ctx context.Context, ev line.Event, sess *session.Session, draft *EditDraft) []line.Message {
	actor := e.Profiles.DisplayName(ctx, ev.UserID)

	if draft.Corrected.TransactionType == models.TransactionTypeOutbound {
		item, err := e.Ledger.GetByKey(draft.Corrected.CompositeKey())
		if err != nil {
			return e.degraded(sess)
		}
		currentStock := 0
		if item != nil {
			currentStock = item.Quantity
		}
		// The original row will be voided, so its signed effect must be
		// backed out of current stock before checking the corrected demand.
		stockAfterVoid := currentStock - draft.Original.SignedQuantity
		if stockAfterVoid < draft.Corrected.SignedQuantity {
			sess.SetState(StateEditStockAwaitingChoice)
			return []line.Message{line.NewText(formatMessage(msgStockInsufficient, map[string]string{
				"name":         draft.Corrected.Name,
				"currentStock": strconv.Itoa(stockAfterVoid),
				"unit":         draft.Corrected.Unit,
			}))}
		}
	}

	reason := "edited with no field changes"
	if changed := changedFields(draft.Original, draft.Corrected); len(changed) > 0 {
		reason = "corrected fields: " + strings.Join(changed, ", ")
	}

	corrected := draft.Corrected
	corrected.ID = 0
	corrected.VoidReason = ""
	if corrected.TransactionType == models.TransactionTypeOutbound {
		if corrected.SignedQuantity > 0 {
			corrected.SignedQuantity = -corrected.SignedQuantity
		}
	} else if corrected.SignedQuantity < 0 {
		corrected.SignedQuantity = -corrected.SignedQuantity
	}

	if err := e.Ledger.Void(draft.RowID, "modified by "+actor, actor); err != nil {
		return e.degraded(sess)
	}
	if err := e.Ledger.PatchCells(draft.RowID, map[string]string{"void_reason": reason}); err != nil {
		return e.degraded(sess)
	}
	if err := e.Ledger.Append(&corrected, actor); err != nil {
		return e.degraded(sess)
	}

	sess.Clear()
	return []line.Message{line.NewText(msgEditSuccess)}
}
