package flows

import (
	"context"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

// stockActionFromState extracts the movement direction from a
// stock_<action>_awaiting_<step> label.
func stockActionFromState(state string) string {
	parts := strings.SplitN(state, "_", 3)
	if len(parts) < 3 || parts[0] != "stock" {
		return ""
	}
	return parts[1]
}

// handleStock is the inbound/outbound movement workflow: pick a search
// method, find the item, pick it from a card, enter a quantity (outbound is
// capped at current stock), confirm, append the signed movement row.
func (e *Engine) handleStock(ctx context.Context, ev line.Event, sess *session.Session) []line.Message {
	state := sess.State()

	if ev.Kind == line.EventKindPostback {
		switch cmd := line.ParseCommand(ev.PostbackData).(type) {
		case line.StockSearchTypeCommand:
			action := stockActionFromState(state)
			if action == "" || !strings.HasSuffix(state, "_search_type") {
				return nil
			}
			if cmd.Method != "by_name" && cmd.Method != "by_serial" {
				return nil
			}
			sess.SetState(stockState(action, cmd.Method+"_search"))
			if cmd.Method == "by_name" {
				return []line.Message{line.NewText(msgPromptQueryByName)}
			}
			return []line.Message{line.NewText(msgPromptQueryBySerial)}

		case line.StockSelectCommand:
			// Selection arrives from a result card; the search step already
			// dropped the session, so the card's own data names the action.
			if cmd.Action != "inbound" && cmd.Action != "outbound" {
				return nil
			}
			item, err := e.Ledger.GetByKey(cmd.Key)
			if err != nil {
				return e.degraded(sess)
			}
			if item == nil {
				sess.Clear()
				return []line.Message{line.NewText(msgQueryNotFound)}
			}
			sess.SetPayload(&StockDraft{Action: cmd.Action, Item: *item})
			sess.SetState(stockState(cmd.Action, "quantity"))
			return []line.Message{line.NewText(formatMessage(msgPromptStockQuantity, map[string]string{
				"name":   item.Name,
				"action": movementLabel(cmd.Action),
			}))}

		case line.StockConfirmCommand:
			if !strings.HasSuffix(state, "_confirmation") {
				return nil
			}
			draft, ok := sess.Payload().(*StockDraft)
			if !ok {
				return e.cancelled(sess)
			}
			if !cmd.Confirmed {
				return e.cancelled(sess)
			}
			return e.finalizeStock(ctx, ev, sess, draft)
		}
		return nil
	}

	if ev.Kind != line.EventKindMessage || state == "" {
		return nil
	}

	action := stockActionFromState(state)

	switch {
	case strings.HasSuffix(state, "_by_name_search"):
		results, err := e.Ledger.SearchByName(ev.Text)
		if err != nil {
			return e.degraded(sess)
		}
		sess.Clear()
		return []line.Message{e.formatSearchResults(results)}

	case strings.HasSuffix(state, "_by_serial_search"):
		item, err := e.Ledger.GetByKey(ev.Text)
		if err != nil {
			return e.degraded(sess)
		}
		sess.Clear()
		if item == nil {
			return []line.Message{line.NewText(msgQueryNotFound)}
		}
		return []line.Message{e.formatSearchResults([]models.InventoryItem{*item})}

	case strings.HasSuffix(state, "_quantity"):
		draft, ok := sess.Payload().(*StockDraft)
		if !ok {
			return e.cancelled(sess)
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(ev.Text))
		if err != nil || quantity <= 0 {
			return []line.Message{line.NewText(msgErrorInvalidQuantity)}
		}
		if action == "outbound" && draft.Item.Quantity < quantity {
			sess.Clear()
			return []line.Message{line.NewText(formatMessage(msgStockInsufficient, map[string]string{
				"name":         draft.Item.Name,
				"currentStock": strconv.Itoa(draft.Item.Quantity),
				"unit":         draft.Item.Unit,
			}))}
		}
		draft.Quantity = quantity
		sess.SetState(stockState(action, "confirmation"))
		confirmText := formatMessage(msgPromptStockConfirm, map[string]string{
			"action":   movementLabel(action),
			"name":     draft.Item.Name,
			"quantity": strconv.Itoa(quantity),
			"unit":     draft.Item.Unit,
		})
		return []line.Message{line.NewTextWithButtons(confirmText,
			line.NewPostbackButton(labelConfirm, "stock_confirm=yes"),
			line.NewPostbackButton(labelCancel, "stock_confirm=no"),
		)}
	}

	return nil
}

func (e *Engine) finalizeStock(ctx context.Context, ev line.Event, sess *session.Session, draft *StockDraft) []line.Message {
	defer sess.Clear()

	transactionType := models.TransactionTypeInbound
	signedQuantity := draft.Quantity
	icon := "✅"
	if draft.Action == "outbound" {
		transactionType = models.TransactionTypeOutbound
		signedQuantity = -draft.Quantity
		icon = "➡️"
	}

	record := &models.LedgerRecord{
		Category:        draft.Item.Category,
		Serial:          draft.Item.Serial,
		Name:            draft.Item.Name,
		Model:           draft.Item.Model,
		Spec:            draft.Item.Spec,
		Unit:            draft.Item.Unit,
		SignedQuantity:  signedQuantity,
		TransactionType: transactionType,
		PhotoRef:        draft.Item.PhotoRef,
	}
	actor := e.Profiles.DisplayName(ctx, ev.UserID)
	if err := e.Ledger.Append(record, actor); err != nil {
		return e.degraded(sess)
	}

	newStock := strconv.Itoa(draft.Item.Quantity + signedQuantity)
	if item, err := e.Ledger.GetByKey(draft.Item.CompositeKey()); err == nil && item != nil {
		newStock = strconv.Itoa(item.Quantity)
	}

	return []line.Message{line.NewText(formatMessage(msgStockSuccess, map[string]string{
		"icon":     icon,
		"action":   movementLabel(draft.Action),
		"name":     draft.Item.Name,
		"newStock": newStock,
		"unit":     draft.Item.Unit,
	}))}
}
