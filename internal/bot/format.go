package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

const (
	iconOpen      = "⬜"
	iconDone      = "✅"
	iconStar      = "⭐"
	iconDue       = "📅"
	iconOverdue   = "⚠️"
	iconReminder  = "⏰"
	iconRepeat    = "🔁"
	iconNote      = "📝"
	iconFile      = "📎"
	dateTimeShort = "Mon, 02 Jan 15:04"
)

var viewTitles = map[service.View]string{
	service.ViewAll:       "📋 <b>Tasks</b>",
	service.ViewToday:     "☀️ <b>My Day</b>",
	service.ViewFavorited: "⭐ <b>Important</b>",
	service.ViewPlanned:   "📅 <b>Planned</b>",
	service.ViewAssigned:  "👤 <b>Assigned to me</b>",
}

var sortLabels = map[service.SortStrategy]string{
	service.SortCreationDate:   "creation date",
	service.SortImportance:     "importance",
	service.SortDueDate:        "due date",
	service.SortAlphabetically: "alphabetically",
}

const emptyViewText = "Nothing here yet. Send me a message to add a task."

func formatTaskList(title, empty string, strategy service.SortStrategy, tasks []model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(fmt.Sprintf(" · sorted by %s\n\n", sortLabels[strategy]))
	if len(tasks) == 0 {
		b.WriteString(empty)
		return b.String()
	}
	for i, task := range tasks {
		b.WriteString(formatTaskLine(i+1, task, now))
		b.WriteByte('\n')
	}
	b.WriteString("\nOpen a task with /open &lt;n&gt;.")
	return b.String()
}

func formatTaskLine(n int, task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconOpen
	if task.Completed {
		icon = iconDone
	}
	b.WriteString(fmt.Sprintf("%d. %s %s", n, icon, escape(normalizeTitle(task.Text))))
	if task.Favorited {
		b.WriteString(" " + iconStar)
	}
	if task.DueDate != nil {
		dueIcon := iconDue
		if at, ok := model.ResolveDate(*task.DueDate, now); ok && at.Before(now) && !model.SameDay(at, now) && !task.Completed {
			dueIcon = iconOverdue
		}
		b.WriteString(fmt.Sprintf(" · %s %s", dueIcon, escape(strings.TrimPrefix(model.FormatDue(task.DueDate, now), "Due: "))))
	}
	if task.Reminder != nil {
		b.WriteString(" · " + iconReminder)
	}
	if task.Repeat != nil {
		b.WriteString(" · " + iconRepeat)
	}
	return b.String()
}

func formatDetail(task model.Task, panel service.Panel, now time.Time) string {
	var b strings.Builder
	status := iconOpen
	if task.Completed {
		status = iconDone
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b>", status, escape(normalizeTitle(task.Text))))
	if task.Favorited {
		b.WriteString(" " + iconStar)
	}
	b.WriteString("\n\n")

	if task.Reminder != nil {
		b.WriteString(fmt.Sprintf("%s Remind me: %s\n", iconReminder, escape(displayDate(*task.Reminder, now))))
	} else {
		b.WriteString(iconReminder + " Remind me\n")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", iconDue, escape(model.FormatDue(task.DueDate, now))))
	if task.Repeat != nil {
		b.WriteString(fmt.Sprintf("%s Repeat: %s\n", iconRepeat, escape(string(*task.Repeat))))
	} else {
		b.WriteString(iconRepeat + " Repeat\n")
	}

	if task.Note != "" {
		b.WriteString(fmt.Sprintf("\n%s %s\n", iconNote, escape(task.Note)))
	}
	if len(task.Files) > 0 {
		b.WriteString("\n")
		for i, f := range task.Files {
			b.WriteString(fmt.Sprintf("%s %d. %s\n", iconFile, i+1, escape(f.Name)))
		}
		b.WriteString("<i>Download with /file &lt;n&gt;.</i>\n")
	}

	b.WriteString(fmt.Sprintf("\n<i>%s</i>", escape(model.CreatedLabel(task.CreatedAt, now))))
	if hint := panelHint(panel); hint != "" {
		b.WriteString("\n\n" + hint)
	}
	return b.String()
}

func panelHint(panel service.Panel) string {
	switch panel {
	case service.PanelReminder:
		return "Pick a reminder below or send /remind &lt;when&gt;."
	case service.PanelDueDate:
		return "Pick a due date below or send /due &lt;date&gt;."
	case service.PanelRepeat:
		return "Pick how often the reminder repeats."
	default:
		return ""
	}
}

// displayDate keeps symbolic values and renders timestamps in a short form.
func displayDate(raw string, now time.Time) string {
	if model.IsToken(raw) {
		return raw
	}
	at, ok := model.ResolveDate(raw, now)
	if !ok {
		return raw
	}
	return at.In(now.Location()).Format(dateTimeShort)
}

func formatDigest(name string, d service.Digest, now time.Time) string {
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("☀️ Good morning, %s!\n", escape(name)))
	b.WriteString(fmt.Sprintf("You have <b>%d</b> open task%s.\n", d.Open, plural(d.Open)))

	writeSection := func(title string, tasks []model.Task) {
		if len(tasks) == 0 {
			return
		}
		b.WriteString("\n" + title + "\n")
		for i, t := range tasks {
			b.WriteString(formatTaskLine(i+1, t, now))
			b.WriteByte('\n')
		}
	}
	writeSection(iconOverdue+" <b>Overdue</b>", d.Overdue)
	writeSection("☀️ <b>Today</b>", d.Today)
	writeSection(iconStar+" <b>Important</b>", d.Important)
	return strings.TrimRight(b.String(), "\n")
}

// describeError turns a handler error into a chat reply.
func describeError(err error) string {
	var updateErr *service.UpdateError
	switch {
	case errors.Is(err, model.ErrInvalidDate):
		return "I can't read that date. Try Today, Tomorrow, Next week, \"Tomorrow, 9:00 AM\", 2024-05-01 or 2024-05-01 18:00."
	case errors.Is(err, service.ErrNoTaskOpen):
		return "Open a task first: /open &lt;n&gt;."
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found. Send /tasks to refresh the list."
	case errors.Is(err, service.ErrEmptyText):
		return "Task text can't be empty."
	case errors.As(err, &updateErr):
		return fmt.Sprintf("Changed here, but saving failed: %s", escape(updateErr.Err.Error()))
	default:
		return fmt.Sprintf("Something went wrong: %s", escape(err.Error()))
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
