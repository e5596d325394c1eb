package flows

import (
	"context"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

// handleQuery is the lookup workflow: a method choice, then at most one text
// turn, then a terminal result message. The session never outlives the
// result.
func (e *Engine) handleQuery(ctx context.Context, ev line.Event, sess *session.Session) []line.Message {
	state := sess.State()

	if state == "" && ev.Kind == line.EventKindPostback {
		cmd, ok := line.ParseCommand(ev.PostbackData).(line.QueryTypeCommand)
		if !ok {
			return nil
		}
		switch cmd.Type {
		case "by_name":
			sess.SetState(StateQueryAwaitingName)
			return []line.Message{line.NewText(msgPromptQueryByName)}
		case "by_serial":
			sess.SetState(StateQueryAwaitingSerial)
			return []line.Message{line.NewText(msgPromptQueryBySerial)}
		case "all":
			view, err := e.Ledger.GetInventoryView()
			if err != nil {
				return e.degraded(sess)
			}
			items := make([]models.InventoryItem, 0, len(view))
			for _, item := range view {
				items = append(items, item)
			}
			return []line.Message{e.formatSearchResults(items)}
		case "mine":
			actor := e.Profiles.DisplayName(ctx, ev.UserID)
			records, err := e.Ledger.RecentRecordsByActor(actor, e.Settings.RecordsFetchLimit)
			if err != nil {
				return e.degraded(sess)
			}
			return []line.Message{e.formatUserRecords(records)}
		}
		return nil
	}

	if state != "" && ev.Kind == line.EventKindMessage {
		defer sess.Clear()
		switch state {
		case StateQueryAwaitingName:
			results, err := e.Ledger.SearchByName(ev.Text)
			if err != nil {
				return e.degraded(sess)
			}
			return []line.Message{e.formatSearchResults(results)}
		case StateQueryAwaitingSerial:
			item, err := e.Ledger.GetByKey(ev.Text)
			if err != nil {
				return e.degraded(sess)
			}
			if item == nil {
				return []line.Message{line.NewText(msgQueryNotFound)}
			}
			return []line.Message{line.NewBubbleMessage("Result: "+item.Name, e.itemBubble(*item))}
		}
	}

	return nil
}
