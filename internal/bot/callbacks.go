package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

// Callback data of task buttons ends with the id of the task the card shows,
// so a button on an older card acts on its own task:
//
//	open:<id> fav:<id> done:<id> del:<id> close:<id>
//	panel:<field>:<id> clear:<field>:<id>
//	set:<field>:<preset>:<id> file:<n>:<id>
//
// With uuid ids every form fits Telegram's 64 byte limit.
const (
	actionOpen     = "open"
	actionFavorite = "fav"
	actionComplete = "done"
	actionDelete   = "del"
	actionClose    = "close"
	actionPanel    = "panel"
	actionSet      = "set"
	actionClear    = "clear"
	actionFile     = "file"

	fieldReminder = "reminder"
	fieldDue      = "due"
	fieldRepeat   = "repeat"

	maxFileButtons = 5
)

// Presets offered by the reminder and due date pickers.
var (
	reminderPresets = []string{"Today, 7:00 PM", "Tomorrow, 9:00 AM", "Next week, 9:00 AM"}
	duePresets      = []string{model.TokenToday, model.TokenTomorrow, model.TokenNextWeek}
)

type cardAction struct {
	name  string
	field string
	index int
	id    string
}

func cardData(name, id string) string { return name + ":" + id }

func fieldData(name, field, id string) string { return name + ":" + field + ":" + id }

func presetData(field string, index int, id string) string {
	return actionSet + ":" + field + ":" + strconv.Itoa(index) + ":" + id
}

func fileData(index int, id string) string {
	return actionFile + ":" + strconv.Itoa(index) + ":" + id
}

func parseCardAction(data string) (cardAction, error) {
	parts := strings.Split(data, ":")
	malformed := fmt.Errorf("malformed action %q", data)
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return cardAction{}, malformed
	}

	act := cardAction{name: parts[0], id: parts[len(parts)-1]}
	var err error
	switch act.name {
	case actionOpen, actionFavorite, actionComplete, actionDelete, actionClose:
		if len(parts) != 2 {
			return cardAction{}, malformed
		}
	case actionPanel, actionClear:
		if len(parts) != 3 {
			return cardAction{}, malformed
		}
		act.field = parts[1]
	case actionSet:
		if len(parts) != 4 {
			return cardAction{}, malformed
		}
		act.field = parts[1]
		act.index, err = strconv.Atoi(parts[2])
	case actionFile:
		if len(parts) != 3 {
			return cardAction{}, malformed
		}
		act.index, err = strconv.Atoi(parts[1])
	default:
		return cardAction{}, malformed
	}
	if err != nil {
		return cardAction{}, malformed
	}
	return act, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	log.Printf("[info] callback %q from %d", cb.Data, cb.From.ID)

	sess, err := b.sessionFor(ctx, cb.From, chatID)
	if err != nil {
		b.ack(cb, "")
		return err
	}

	if cb.Data == cbPermGranted || cb.Data == cbPermDenied {
		return b.answerPermission(cb, sess)
	}

	act, err := parseCardAction(cb.Data)
	if err != nil {
		b.ack(cb, "")
		return err
	}
	detail := sess.board.Detail()

	switch act.name {
	case actionOpen:
		b.ack(cb, "")
		if _, err := detail.Open(act.id); err != nil {
			return b.sendError(chatID, err)
		}
		return b.sendDetail(chatID, sess)
	case actionDelete:
		b.ack(cb, "")
		return b.deleteTask(ctx, chatID, sess, act.id)
	case actionClose:
		b.ack(cb, "")
		if detail.IsOpen(act.id) {
			detail.Close()
		}
		return b.editClosed(chatID, messageID)
	case actionFile:
		b.ack(cb, "")
		return b.sendAttachment(chatID, sess, act.id, act.index)
	}

	var panel service.Panel
	if act.name == actionPanel {
		if panel, err = service.ParsePanel(act.field); err != nil {
			b.ack(cb, "")
			return err
		}
	}

	// Everything below edits the card's task, which may no longer be the
	// open one.
	if !detail.IsOpen(act.id) {
		if _, err := detail.Open(act.id); err != nil {
			b.ack(cb, "")
			return b.sendError(chatID, err)
		}
	}

	if act.name == actionPanel {
		b.ack(cb, "")
		detail.TogglePanel(panel)
		return b.editDetail(chatID, messageID, sess)
	}

	if err := applyCardAction(ctx, detail, act); err != nil {
		var updateErr *service.UpdateError
		if !errors.As(err, &updateErr) {
			b.ack(cb, "")
			return b.sendError(chatID, err)
		}
		b.ack(cb, "Saving failed, will retry on next change")
	} else {
		b.ack(cb, "")
	}
	return b.editDetail(chatID, messageID, sess)
}

func (b *Bot) answerPermission(cb *tgbotapi.CallbackQuery, sess *session) error {
	perm := model.PermissionGranted
	reply := "🔔 Notifications are on."
	if cb.Data == cbPermDenied {
		perm = model.PermissionDenied
		reply = "🔕 Notifications are off."
	}
	b.ack(cb, "")
	sess.sink.Answer(perm)
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, reply)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("edit permission prompt: %v", err)
	}
	return nil
}

func applyCardAction(ctx context.Context, detail *service.DetailController, act cardAction) error {
	switch act.name {
	case actionFavorite:
		return detail.ToggleFavorite(ctx)
	case actionComplete:
		return detail.ToggleCompleted(ctx)
	case actionSet:
		switch {
		case act.field == fieldReminder && act.index >= 0 && act.index < len(reminderPresets):
			return detail.SetReminder(ctx, reminderPresets[act.index])
		case act.field == fieldDue && act.index >= 0 && act.index < len(duePresets):
			return detail.SetDueDate(ctx, duePresets[act.index])
		case act.field == fieldRepeat && act.index >= 0 && act.index < len(model.RepeatOptions):
			return detail.SetRepeat(ctx, model.RepeatOptions[act.index])
		}
	case actionClear:
		switch act.field {
		case fieldReminder:
			return detail.ClearReminder(ctx)
		case fieldDue:
			return detail.ClearDueDate(ctx)
		case fieldRepeat:
			return detail.ClearRepeat(ctx)
		}
	}
	return fmt.Errorf("unknown action %s %s", act.name, act.field)
}

func (b *Bot) editDetail(chatID int64, messageID int, sess *session) error {
	detail := sess.board.Detail()
	task, ok := detail.Current()
	if !ok {
		return b.editClosed(chatID, messageID)
	}
	panel := detail.Panel()
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, formatDetail(task, panel, time.Now()), detailKeyboard(task, panel))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		// Telegram rejects edits that change nothing; a fresh card is fine.
		return b.sendDetail(chatID, sess)
	}
	return nil
}

func (b *Bot) editClosed(chatID int64, messageID int) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, "Detail view closed."))
	return err
}

func detailKeyboard(task model.Task, panel service.Panel) tgbotapi.InlineKeyboardMarkup {
	favLabel := "☆ Mark important"
	if task.Favorited {
		favLabel = "⭐ Important"
	}
	doneLabel := "⬜ Mark done"
	if task.Completed {
		doneLabel = "✅ Done"
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(favLabel, cardData(actionFavorite, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData(doneLabel, cardData(actionComplete, task.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(iconReminder+" Remind", fieldData(actionPanel, fieldReminder, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData(iconDue+" Due", fieldData(actionPanel, fieldDue, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData(iconRepeat+" Repeat", fieldData(actionPanel, fieldRepeat, task.ID)),
		),
	}
	rows = append(rows, panelRows(panel, task.ID)...)
	for i, f := range task.Files {
		if i == maxFileButtons {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(iconFile+" "+shortTitle(f.Name, 30), fileData(i, task.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cardData(actionDelete, task.ID)),
		tgbotapi.NewInlineKeyboardButtonData("✖ Close", cardData(actionClose, task.ID)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func panelRows(panel service.Panel, id string) [][]tgbotapi.InlineKeyboardButton {
	var (
		field   string
		options []string
	)
	switch panel {
	case service.PanelReminder:
		field, options = fieldReminder, reminderPresets
	case service.PanelDueDate:
		field, options = fieldDue, duePresets
	case service.PanelRepeat:
		field = fieldRepeat
		for _, r := range model.RepeatOptions {
			options = append(options, string(r))
		}
	default:
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, opt := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(opt, presetData(field, i, id)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("Clear", fieldData(actionClear, field, id)))
	rows = append(rows, row)
	return rows
}
