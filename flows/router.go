package flows

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"github.com/sirupsen/logrus"
)

// Handle routes one inbound event to its workflow and returns the outbound
// messages. Top-level menu commands always reset the session first; otherwise
// the session's current state decides the owning workflow, falling back to
// the postback verb prefix for flows entered by button (stock select, edit
// start, delete). Events no workflow claims are dropped without a reply.
func (e *Engine) Handle(ctx context.Context, ev line.Event) []line.Message {
	sess := e.Sessions.Get(ev.UserID)

	if ev.Kind == line.EventKindPostback {
		if menu, ok := line.ParseCommand(ev.PostbackData).(line.MenuCommand); ok {
			sess.Clear()
			return e.startFlow(ctx, ev, menu.Action)
		}
	}

	flowType := ""
	if state := sess.State(); state != "" {
		flowType, _, _ = strings.Cut(state, "_")
	} else if ev.Kind == line.EventKindPostback {
		flowType = line.FlowPrefix(ev.PostbackData)
	}

	switch flowType {
	case "query":
		return e.handleQuery(ctx, ev, sess)
	case "add":
		return e.handleAdd(ctx, ev, sess)
	case "stock":
		return e.handleStock(ctx, ev, sess)
	case "edit":
		return e.handleEdit(ctx, ev, sess)
	case "delete":
		return e.handleDelete(ctx, ev, sess)
	default:
		e.Logger.WithFields(logrus.Fields{
			"module": "flows",
			"userId": ev.UserID,
			"kind":   ev.Kind,
		}).Debug("no workflow claimed the event; dropping")
		return nil
	}
}

// startFlow produces the first prompt of the requested workflow.
func (e *Engine) startFlow(ctx context.Context, ev line.Event, action string) []line.Message {
	sess := e.Sessions.Get(ev.UserID)

	switch action {
	case "query":
		return []line.Message{line.NewTextWithButtons(msgPromptQueryType,
			line.NewPostbackButton("By name", "query_type=by_name"),
			line.NewPostbackButton("By serial", "query_type=by_serial"),
			line.NewPostbackButton("All inventory", "query_type=all"),
			line.NewPostbackButton("My records", "query_type=mine"),
		)}

	case "add":
		if len(e.Settings.Categories) == 0 {
			return []line.Message{line.NewText(msgErrorNoCategories)}
		}
		sess.SetState(StateAddAwaitingCategory)
		sess.SetPayload(&AddDraft{})
		buttons := make([]line.QuickReplyItem, 0, len(e.Settings.Categories))
		for _, category := range e.Settings.Categories {
			buttons = append(buttons, line.NewPostbackButton(category.Label, "add_category="+category.Key))
		}
		return []line.Message{line.NewTextWithButtons(msgPromptAddCategory, buttons...)}

	case "inbound", "outbound":
		sess.SetState(stockState(action, "search_type"))
		sess.SetPayload(&StockDraft{Action: action})
		prompt := formatMessage(msgPromptStockSearch, map[string]string{"action": movementLabel(action)})
		return []line.Message{line.NewTextWithButtons(prompt,
			line.NewPostbackButton("By name", "stock_search_type=by_name"),
			line.NewPostbackButton("By serial", "stock_search_type=by_serial"),
			line.NewPostbackButton(labelCancel, "action=cancel"),
		)}

	case "edit":
		actor := e.Profiles.DisplayName(ctx, ev.UserID)
		records, err := e.Ledger.RecentRecordsByActor(actor, e.Settings.RecordsFetchLimit)
		if err != nil {
			return e.degraded(sess)
		}
		return []line.Message{e.formatUserRecords(records)}

	case "help":
		return []line.Message{line.NewText(msgHelp)}

	case "cancel":
		return e.cancelled(sess)
	}

	return nil
}
