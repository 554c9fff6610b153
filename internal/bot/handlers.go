package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

const maxListButtons = 10

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "help":
		return b.handleHelp(msg)
	case "logout":
		return b.handleLogout(msg)
	}

	sess, err := b.sessionFor(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "add":
		return b.addTask(ctx, sess, chatID, args)
	case "tasks":
		if args != "" {
			sess.board.SetSortStrategy(service.ParseSortStrategy(args))
		}
		return b.sendTaskList(chatID, sess, service.ViewAll)
	case "today":
		return b.sendTaskList(chatID, sess, service.ViewToday)
	case "important":
		return b.sendTaskList(chatID, sess, service.ViewFavorited)
	case "planned":
		return b.sendTaskList(chatID, sess, service.ViewPlanned)
	case "assigned":
		return b.sendTaskList(chatID, sess, service.ViewAssigned)
	case "sort":
		return b.handleSort(chatID, sess, args)
	case "open":
		return b.openTask(chatID, sess, args)
	case "close":
		sess.board.Detail().Close()
		return b.sendText(chatID, "Detail view closed.")
	case "fav":
		return b.mutateAndShow(chatID, sess, sess.board.Detail().ToggleFavorite(ctx))
	case "done":
		return b.mutateAndShow(chatID, sess, sess.board.Detail().ToggleCompleted(ctx))
	case "remind":
		return b.handleDateCommand(ctx, chatID, sess, args, service.PanelReminder)
	case "due":
		return b.handleDateCommand(ctx, chatID, sess, args, service.PanelDueDate)
	case "repeat":
		return b.handleRepeat(ctx, chatID, sess, args)
	case "note":
		return b.mutateAndShow(chatID, sess, sess.board.Detail().SetNote(ctx, args))
	case "rename":
		return b.mutateAndShow(chatID, sess, sess.board.Detail().Rename(ctx, args))
	case "panel":
		panel, err := service.ParsePanel(args)
		if err != nil {
			return b.sendText(chatID, "Panels: reminder, due, repeat. Example: /panel due")
		}
		return b.togglePanel(chatID, sess, panel)
	case "delete":
		return b.deleteRef(ctx, chatID, sess, args)
	case "search":
		return b.handleSearch(chatID, sess, args)
	case "file":
		return b.handleFileCommand(chatID, sess, args)
	case "notify":
		return b.handleNotify(chatID, sess, args)
	default:
		return b.sendText(chatID, "Command not supported. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your to-do list and remind you when things are due.</b>\n\n"+
			"Send me any text to add a task, or use:\n"+
			"• /tasks — all tasks\n"+
			"• /today — My Day\n"+
			"• /open &lt;n&gt; — open a task to edit it\n"+
			"• /help — every command",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /add &lt;text&gt; — add a task (plain text works too)\n" +
		"• /tasks [sort] — all tasks; /today, /important, /planned, /assigned — filtered views\n" +
		"• /sort &lt;importance|dueDate|alphabetically|creationDate&gt; — change the order\n" +
		"• /open &lt;n&gt; — open task n of the last list; /close — close it\n" +
		"• /fav, /done — toggle important or completed\n" +
		"• /remind &lt;when|clear&gt; — e.g. /remind Tomorrow, 9:00 AM\n" +
		"• /due &lt;date|clear&gt; — e.g. /due 2024-05-01\n" +
		"• /repeat &lt;Daily|Weekdays|Weekly|Monthly|Yearly|Custom|clear&gt;\n" +
		"• /note &lt;text&gt;, /rename &lt;text&gt;\n" +
		"• /panel &lt;reminder|due|repeat&gt; — show a picker\n" +
		"• /delete [n] — delete the open task or task n\n" +
		"• /search &lt;text&gt; — find tasks; /open n works on the results\n" +
		"• /file &lt;n&gt; — download attachment n of the open task\n" +
		"• /notify [on|off] — notification permission\n" +
		"• /logout — sign out\n" +
		"Send a file while a task is open to attach it."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLogout(msg *tgbotapi.Message) error {
	if !b.endSession(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "You are not signed in. Send /start to begin.")
	}
	return b.sendText(msg.Chat.ID, "👋 Signed out. Your reminders are paused until you come back with /start.")
}

func (b *Bot) handleMenuAlias(ctx context.Context, sess *session, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	chatID := msg.Chat.ID
	switch text {
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(chatID, sess, service.ViewAll)
	case strings.ToLower(menuLabelToday):
		return true, b.sendTaskList(chatID, sess, service.ViewToday)
	case strings.ToLower(menuLabelImportant):
		return true, b.sendTaskList(chatID, sess, service.ViewFavorited)
	case strings.ToLower(menuLabelPlanned):
		return true, b.sendTaskList(chatID, sess, service.ViewPlanned)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) addTask(ctx context.Context, sess *session, chatID int64, text string) error {
	if _, err := sess.board.Add(ctx, text); err != nil {
		if errors.Is(err, service.ErrEmptyText) {
			return b.sendText(chatID, "Usage: /add &lt;text&gt;")
		}
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("➕ Added: %s", escape(normalizeTitle(text))))
}

func (b *Bot) sendTaskList(chatID int64, sess *session, view service.View) error {
	tasks := sess.board.View(view)
	sess.setListing(view, tasks)
	return b.sendListing(chatID, sess, viewTitles[view], emptyViewText, tasks)
}

func (b *Bot) handleSearch(chatID int64, sess *session, query string) error {
	if query == "" {
		return b.sendText(chatID, "Usage: /search &lt;text&gt;")
	}
	tasks := sess.board.Search(query)
	sess.setListing(service.ViewAll, tasks)
	title := fmt.Sprintf("🔍 <b>Search</b> \"%s\"", escape(query))
	return b.sendListing(chatID, sess, title, "No tasks match.", tasks)
}

// sendListing renders a numbered list; /open n resolves against it.
func (b *Bot) sendListing(chatID int64, sess *session, title, empty string, tasks []model.Task) error {
	text := formatTaskList(title, empty, sess.board.SortStrategy(), tasks, time.Now())
	if len(tasks) == 0 {
		return b.sendText(chatID, text)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, task := range tasks {
		if i == maxListButtons {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d · %s", i+1, shortTitle(task.Text, 28)), cardData(actionOpen, task.ID)),
		))
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleSort(chatID int64, sess *session, args string) error {
	if args == "" {
		names := make([]string, 0, len(service.SortStrategies))
		for _, s := range service.SortStrategies {
			names = append(names, string(s))
		}
		return b.sendText(chatID, fmt.Sprintf("Current order: %s. Options: %s.",
			sortLabels[sess.board.SortStrategy()], strings.Join(names, ", ")))
	}
	sess.board.SetSortStrategy(service.ParseSortStrategy(args))
	return b.sendTaskList(chatID, sess, sess.currentView())
}

func (b *Bot) openTask(chatID int64, sess *session, ref string) error {
	id, err := sess.resolveRef(ref)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if _, err := sess.board.Detail().Open(id); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendDetail(chatID, sess)
}

func (b *Bot) handleDateCommand(ctx context.Context, chatID int64, sess *session, args string, panel service.Panel) error {
	detail := sess.board.Detail()
	var err error
	switch {
	case args == "":
		return b.togglePanel(chatID, sess, panel)
	case strings.EqualFold(args, "clear"):
		if panel == service.PanelReminder {
			err = detail.ClearReminder(ctx)
		} else {
			err = detail.ClearDueDate(ctx)
		}
	case panel == service.PanelReminder:
		err = detail.SetReminder(ctx, args)
	default:
		err = detail.SetDueDate(ctx, args)
	}
	return b.mutateAndShow(chatID, sess, err)
}

func (b *Bot) handleRepeat(ctx context.Context, chatID int64, sess *session, args string) error {
	detail := sess.board.Detail()
	switch {
	case args == "":
		return b.togglePanel(chatID, sess, service.PanelRepeat)
	case strings.EqualFold(args, "clear"):
		return b.mutateAndShow(chatID, sess, detail.ClearRepeat(ctx))
	}
	pattern, err := model.ParseRepeat(args)
	if err != nil {
		return b.sendText(chatID, "Repeat options: Daily, Weekdays, Weekly, Monthly, Yearly, Custom.")
	}
	return b.mutateAndShow(chatID, sess, detail.SetRepeat(ctx, pattern))
}

func (b *Bot) togglePanel(chatID int64, sess *session, panel service.Panel) error {
	if _, ok := sess.board.Detail().Current(); !ok {
		return b.sendError(chatID, service.ErrNoTaskOpen)
	}
	sess.board.Detail().TogglePanel(panel)
	return b.sendDetail(chatID, sess)
}

// deleteRef deletes task n of the last listing, a task id, or the open task
// when ref is empty.
func (b *Bot) deleteRef(ctx context.Context, chatID int64, sess *session, ref string) error {
	if ref == "" {
		task, ok := sess.board.Detail().Current()
		if !ok {
			return b.sendError(chatID, service.ErrNoTaskOpen)
		}
		return b.deleteTask(ctx, chatID, sess, task.ID)
	}
	id, err := sess.resolveRef(ref)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.deleteTask(ctx, chatID, sess, id)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, sess *session, id string) error {
	task, known := sess.board.Get(id)
	if !known {
		return b.sendError(chatID, service.ErrTaskNotFound)
	}
	if err := sess.board.Delete(ctx, id); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Text))))
}

func (b *Bot) handleNotify(chatID int64, sess *session, args string) error {
	switch strings.ToLower(args) {
	case "":
		return sess.sink.Prompt()
	case "on":
		sess.sink.Answer(model.PermissionGranted)
		b.rearm(sess)
		return b.sendText(chatID, "🔔 Notifications are on.")
	case "off":
		sess.sink.Answer(model.PermissionDenied)
		b.rearm(sess)
		return b.sendText(chatID, "🔕 Notifications are off.")
	default:
		return b.sendText(chatID, "Usage: /notify [on|off]")
	}
}

// rearm reopens the detail view so its scheduler sees the new permission.
func (b *Bot) rearm(sess *session) {
	detail := sess.board.Detail()
	task, ok := detail.Current()
	if !ok {
		return
	}
	detail.Close()
	if _, err := detail.Open(task.ID); err != nil {
		log.Printf("[warn] reopen task %s: %v", task.ID, err)
	}
}

func (b *Bot) handleDocument(ctx context.Context, sess *session, msg *tgbotapi.Message) error {
	doc := msg.Document
	if _, ok := sess.board.Detail().Current(); !ok {
		return b.sendText(msg.Chat.ID, "Open a task first, then send the file to attach it.")
	}

	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return b.sendError(msg.Chat.ID, fmt.Errorf("locate file: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	resp, err := b.deps.HTTP.Do(req)
	if err != nil {
		return b.sendError(msg.Chat.ID, fmt.Errorf("download file: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return b.sendError(msg.Chat.ID, fmt.Errorf("download file: %s", resp.Status))
	}

	name := doc.FileName
	if name == "" {
		name = doc.FileUniqueID
	}
	file, err := sess.board.Detail().Attach(ctx, name, resp.Body)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	log.Printf("[info] attached %s for user %s", file.Name, sess.user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Attached %s.", iconFile, escape(file.Name)))
}

// mutateAndShow reports a failed change or shows the refreshed detail card.
func (b *Bot) mutateAndShow(chatID int64, sess *session, err error) error {
	if err != nil {
		var updateErr *service.UpdateError
		if !errors.As(err, &updateErr) {
			return b.sendError(chatID, err)
		}
		if sendErr := b.sendError(chatID, err); sendErr != nil {
			return sendErr
		}
	}
	return b.sendDetail(chatID, sess)
}

func (b *Bot) handleFileCommand(chatID int64, sess *session, args string) error {
	task, ok := sess.board.Detail().Current()
	if !ok {
		return b.sendError(chatID, service.ErrNoTaskOpen)
	}
	n, err := strconv.Atoi(args)
	if err != nil {
		return b.sendText(chatID, "Usage: /file &lt;n&gt;")
	}
	return b.sendAttachment(chatID, sess, task.ID, n-1)
}

// sendAttachment sends file i of a task back to the chat as a document.
func (b *Bot) sendAttachment(chatID int64, sess *session, taskID string, i int) error {
	task, ok := sess.board.Get(taskID)
	if !ok {
		return b.sendError(chatID, service.ErrTaskNotFound)
	}
	if i < 0 || i >= len(task.Files) {
		return b.sendText(chatID, fmt.Sprintf("This task has %d attachment%s.", len(task.Files), plural(len(task.Files))))
	}
	if b.deps.Files == nil {
		return b.sendError(chatID, errors.New("attachments are not available"))
	}

	file := task.Files[i]
	r, err := b.deps.Files.OpenURL(file.URL)
	if err != nil {
		log.Printf("[warn] open attachment %s of task %s: %v", file.Name, taskID, err)
		return b.sendError(chatID, fmt.Errorf("open %s: %w", file.Name, err))
	}
	defer r.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: file.Name, Reader: r})
	doc.Caption = iconFile + " " + file.Name
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send attachment: %w", err)
	}
	return nil
}

func (b *Bot) sendDetail(chatID int64, sess *session) error {
	detail := sess.board.Detail()
	task, ok := detail.Current()
	if !ok {
		return b.sendError(chatID, service.ErrNoTaskOpen)
	}
	panel := detail.Panel()
	return b.sendWithReplyMarkup(chatID, formatDetail(task, panel, time.Now()), detailKeyboard(task, panel))
}
