package flows

import (
	"context"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/stockbot_backend/config"
	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/session"
)

// manualUnitValue is the sentinel button value that switches the unit step to
// free-text entry.
const manualUnitValue = "manual"

// handleAdd is the wizard collecting a draft item: category, name, model
// (skippable), spec (skippable), unit (menu or manual), quantity, photo
// (skippable), then a confirmation that checks for duplicates, allocates a
// serial and appends the New row. Events of the wrong kind for the current
// step are ignored; invalid quantities and failed photo uploads re-prompt
// the same step.
func (e *Engine) handleAdd(ctx context.Context, ev line.Event, sess *session.Session) []line.Message {
	draft, ok := sess.Payload().(*AddDraft)
	if !ok {
		return e.cancelled(sess)
	}

	var step *line.AddStepCommand
	if ev.Kind == line.EventKindPostback {
		if cmd, isStep := line.ParseCommand(ev.PostbackData).(line.AddStepCommand); isStep {
			step = &cmd
		}
	}

	switch sess.State() {
	case StateAddAwaitingCategory:
		if step == nil || step.Step != "category" {
			return nil
		}
		draft.Category = step.Value
		sess.SetState(StateAddAwaitingName)
		return []line.Message{line.NewText(formatMessage(msgPromptAddName, map[string]string{"category": draft.Category}))}

	case StateAddAwaitingName:
		if ev.Kind != line.EventKindMessage {
			return nil
		}
		draft.Name = strings.TrimSpace(ev.Text)
		sess.SetState(StateAddAwaitingModel)
		return []line.Message{line.NewTextWithButtons(
			formatMessage(msgPromptAddModel, map[string]string{"name": draft.Name}),
			line.NewPostbackButton(labelSkipModel, "add_model="),
		)}

	case StateAddAwaitingModel:
		if step != nil && step.Step == "model" {
			draft.Model = step.Value
		} else if ev.Kind == line.EventKindMessage {
			draft.Model = strings.TrimSpace(ev.Text)
		} else {
			return nil
		}
		sess.SetState(StateAddAwaitingSpec)
		return []line.Message{line.NewTextWithButtons(
			formatMessage(msgPromptAddSpec, map[string]string{"model": orDash(draft.Model)}),
			line.NewPostbackButton(labelSkipSpec, "add_spec="),
		)}

	case StateAddAwaitingSpec:
		if step != nil && step.Step == "spec" {
			draft.Spec = step.Value
		} else if ev.Kind == line.EventKindMessage {
			draft.Spec = strings.TrimSpace(ev.Text)
		} else {
			return nil
		}
		sess.SetState(StateAddAwaitingUnit)
		return []line.Message{line.NewTextWithButtons(
			formatMessage(msgPromptAddUnit, map[string]string{"spec": orDash(draft.Spec)}),
			e.unitButtons("add_unit=")...,
		)}

	case StateAddAwaitingUnit:
		if step == nil || step.Step != "unit" {
			return nil
		}
		if step.Value == manualUnitValue {
			sess.SetState(StateAddTypingUnit)
			return []line.Message{line.NewText(msgPromptManualUnit)}
		}
		draft.Unit = step.Value
		sess.SetState(StateAddAwaitingQuantity)
		return []line.Message{line.NewText(formatMessage(msgPromptAddQuantity, map[string]string{"unit": draft.Unit}))}

	case StateAddTypingUnit:
		if ev.Kind != line.EventKindMessage || strings.TrimSpace(ev.Text) == "" {
			return nil
		}
		draft.Unit = strings.TrimSpace(ev.Text)
		sess.SetState(StateAddAwaitingQuantity)
		return []line.Message{line.NewText(formatMessage(msgPromptAddQuantity, map[string]string{"unit": draft.Unit}))}

	case StateAddAwaitingQuantity:
		if ev.Kind != line.EventKindMessage {
			return nil
		}
		quantity, err := strconv.Atoi(strings.TrimSpace(ev.Text))
		if err != nil || quantity < 0 {
			return []line.Message{line.NewText(msgErrorInvalidQuantity)}
		}
		draft.Quantity = quantity
		sess.SetState(StateAddAwaitingPhoto)
		return []line.Message{line.NewTextWithButtons(
			formatMessage(msgPromptAddPhoto, map[string]string{"quantity": strconv.Itoa(draft.Quantity)}),
			line.NewPostbackButton(labelSkipPhoto, "add_photo="),
		)}

	case StateAddAwaitingPhoto:
		if step != nil && step.Step == "photo" {
			return e.addConfirmPrompt(sess, draft)
		}
		if ev.Kind != line.EventKindImage {
			return nil
		}
		photoRef, err := e.Photos.Ingest(ctx, ev.MessageID)
		if err != nil {
			config.LogError(e.Logger, "flows", "handleAdd", "storing item photo", ev.UserID, err)
			return []line.Message{line.NewTextWithButtons(msgErrorPhotoUpload,
				line.NewPostbackButton(labelSkipPhoto, "add_photo="),
			)}
		}
		draft.PhotoRef = photoRef
		return e.addConfirmPrompt(sess, draft)

	case StateAddAwaitingConfirm:
		if step == nil || step.Step != "confirm" {
			return nil
		}
		if step.Value != "yes" {
			return e.cancelled(sess)
		}
		return e.finalizeAdd(ctx, ev, sess, draft)
	}

	return nil
}

// addConfirmPrompt summarizes the draft and asks for the final yes/no.
func (e *Engine) addConfirmPrompt(sess *session.Session, draft *AddDraft) []line.Message {
	sess.SetState(StateAddAwaitingConfirm)
	confirmText := formatMessage(msgPromptAddConfirm, map[string]string{
		"category": draft.Category,
		"name":     draft.Name,
		"model":    orDash(draft.Model),
		"spec":     orDash(draft.Spec),
		"unit":     draft.Unit,
		"quantity": strconv.Itoa(draft.Quantity),
	})
	return []line.Message{line.NewTextWithButtons(confirmText,
		line.NewPostbackButton(labelConfirm, "add_confirm=yes"),
		line.NewPostbackButton(labelCancel, "add_confirm=no"),
	)}
}

func (e *Engine) finalizeAdd(ctx context.Context, ev line.Event, sess *session.Session, draft *AddDraft) []line.Message {
	defer sess.Clear()

	duplicate, err := e.Ledger.Exists(draft.Name, draft.Model, draft.Spec)
	if err != nil {
		return e.degraded(sess)
	}
	if duplicate {
		return []line.Message{line.NewText(formatMessage(msgErrorDuplicateItem, map[string]string{
			"name":  draft.Name,
			"model": orDash(draft.Model),
			"spec":  orDash(draft.Spec),
		}))}
	}

	serial, err := e.Ledger.AllocateSerial(draft.Category)
	if err != nil {
		return e.degraded(sess)
	}

	actor := e.Profiles.DisplayName(ctx, ev.UserID)
	record := &models.LedgerRecord{
		Category:        draft.Category,
		Serial:          serial,
		Name:            draft.Name,
		Model:           draft.Model,
		Spec:            draft.Spec,
		Unit:            draft.Unit,
		SignedQuantity:  draft.Quantity,
		TransactionType: models.TransactionTypeNew,
		PhotoRef:        draft.PhotoRef,
	}
	if err := e.Ledger.Append(record, actor); err != nil {
		return e.degraded(sess)
	}

	return []line.Message{line.NewText(formatMessage(msgAddSuccess, map[string]string{
		"id": draft.Category + serial,
	}))}
}

// unitButtons builds the configured unit menu plus the manual-entry escape,
// with the given postback verb prefix (add_unit= or edit_unit=).
func (e *Engine) unitButtons(verbPrefix string) []line.QuickReplyItem {
	buttons := make([]line.QuickReplyItem, 0, len(e.Settings.Units)+1)
	for _, unit := range e.Settings.Units {
		buttons = append(buttons, line.NewPostbackButton(unit, verbPrefix+unit))
	}
	buttons = append(buttons, line.NewPostbackButton(labelManualUnit, verbPrefix+manualUnitValue))
	return buttons
}
