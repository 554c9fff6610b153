package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

const (
	colorAccent    = "#A78BFA"
	colorMuted     = "#6D7383"
	colorSecondary = "#B1B8C7"
	colorError     = "#EF4444"
	colorSuccess   = "#22C55E"
	colorWarning   = "#F59E0B"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSecondary)).Italic(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError))
	todayStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
	starStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
)

func renderTasks(view service.View, strategy service.SortStrategy, tasks []model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · %s", view, strategy)))
	b.WriteByte('\n')
	if len(tasks) == 0 {
		b.WriteString(emptyStyle.Render("No tasks here."))
		b.WriteByte('\n')
		return b.String()
	}
	for i, task := range tasks {
		b.WriteString(renderTaskRow(i+1, task, now))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderTaskRow(n int, task model.Task, now time.Time) string {
	check := "[ ]"
	title := task.Text
	if task.Completed {
		check = successStyle.Render("[x]")
		title = mutedStyle.Render(title)
	}

	parts := []string{fmt.Sprintf("%3d", n), check, title}
	if task.Favorited {
		parts = append(parts, starStyle.Render("★"))
	}
	if task.DueDate != nil {
		parts = append(parts, dueStyle(task, now).Render(model.FormatDue(task.DueDate, now)))
	}
	if task.Reminder != nil {
		parts = append(parts, mutedStyle.Render("⏰ "+*task.Reminder))
	}
	if task.Repeat != nil {
		parts = append(parts, mutedStyle.Render("↻ "+string(*task.Repeat)))
	}
	return strings.Join(parts, " ")
}

func dueStyle(task model.Task, now time.Time) lipgloss.Style {
	at, ok := model.ResolveDate(*task.DueDate, now)
	switch {
	case !ok || task.Completed:
		return mutedStyle
	case model.SameDay(at, now):
		return todayStyle
	case at.Before(now):
		return overdueStyle
	default:
		return mutedStyle
	}
}
