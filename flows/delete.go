package flows

import (
	"context"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

// deleteVoidReason is written into voided rows produced by this workflow.
const deleteVoidReason = "data entry error"

// handleDelete is the two-step void workflow: a delete button on a record
// card, then an explicit confirmation. The row is never removed from the
// ledger, only marked void.
func (e *Engine) handleDelete(ctx context.Context, ev line.Event, sess *session.Session) []line.Message {
	if ev.Kind != line.EventKindPostback {
		return nil
	}

	switch cmd := line.ParseCommand(ev.PostbackData).(type) {
	case line.DeleteRecordCommand:
		record, err := e.Ledger.GetRecord(cmd.Row)
		if err != nil {
			if err == models.ErrorRecordNotFound {
				sess.Clear()
				return []line.Message{line.NewText(msgQueryNotFound)}
			}
			return e.degraded(sess)
		}
		sess.SetPayload(&DeleteDraft{RowID: cmd.Row, Name: record.Name, Type: record.TransactionType})
		sess.SetState(StateDeleteAwaitingConfirm)
		confirmText := formatMessage(msgPromptDeleteConfirm, map[string]string{
			"name": record.Name,
			"type": string(record.TransactionType),
		})
		return []line.Message{line.NewTextWithButtons(confirmText,
			line.NewPostbackButton(labelDeleteYes, "delete_confirm=yes"),
			line.NewPostbackButton(labelCancel, "delete_confirm=no"),
		)}

	case line.DeleteConfirmCommand:
		if sess.State() != StateDeleteAwaitingConfirm {
			return nil
		}
		draft, ok := sess.Payload().(*DeleteDraft)
		if !ok {
			return e.cancelled(sess)
		}
		if !cmd.Confirmed {
			return e.cancelled(sess)
		}
		actor := e.Profiles.DisplayName(ctx, ev.UserID)
		if err := e.Ledger.Void(draft.RowID, deleteVoidReason, actor); err != nil {
			if err == models.ErrorRecordNotFound {
				sess.Clear()
				return []line.Message{line.NewText(msgQueryNotFound)}
			}
			return e.degraded(sess)
		}
		sess.Clear()
		return []line.Message{line.NewText(msgDeleteSuccess)}
	}

	return nil
}
