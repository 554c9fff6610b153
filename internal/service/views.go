package service

import (
	"fmt"
	"strings"
	"time"

	"todo-planner/internal/model"
)

// View names a page-scoped subset of the master task list.
type View string

const (
	ViewAll       View = "all"
	ViewToday     View = "today"
	ViewFavorited View = "important"
	ViewPlanned   View = "planned"
	ViewAssigned  View = "assigned"
)

var Views = []View{ViewToday, ViewFavorited, ViewPlanned, ViewAssigned, ViewAll}

func ParseView(raw string) (View, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", "tasks":
		return ViewAll, nil
	case "myday", "my-day", "my day":
		return ViewToday, nil
	case "favorites", "favorited", "starred":
		return ViewFavorited, nil
	}
	for _, v := range Views {
		if value == string(v) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", raw)
}

func FilterTasks(tasks []model.Task, keep func(model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func Favorited(tasks []model.Task) []model.Task { return FilterTasks(tasks, model.IsFavorited) }

func Planned(tasks []model.Task) []model.Task { return FilterTasks(tasks, model.IsPlanned) }

// Assigned relies on the "@" text heuristic; there is no assignee relation.
func Assigned(tasks []model.Task) []model.Task { return FilterTasks(tasks, model.IsAssigned) }

func All(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}

// Today keeps tasks whose due date or reminder falls on now's calendar day.
func Today(tasks []model.Task, now time.Time) []model.Task {
	return FilterTasks(tasks, func(t model.Task) bool {
		return onDay(t.DueDate, now) || onDay(t.Reminder, now)
	})
}

// Search keeps tasks whose text contains query, ignoring case. A blank query
// matches nothing.
func Search(tasks []model.Task, query string) []model.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.Task{}
	}
	return FilterTasks(tasks, func(t model.Task) bool {
		return strings.Contains(strings.ToLower(t.Text), q)
	})
}

// Filter dispatches to the filter of a view.
func Filter(view View, tasks []model.Task, now time.Time) []model.Task {
	switch view {
	case ViewToday:
		return Today(tasks, now)
	case ViewFavorited:
		return Favorited(tasks)
	case ViewPlanned:
		return Planned(tasks)
	case ViewAssigned:
		return Assigned(tasks)
	default:
		return All(tasks)
	}
}

func onDay(raw *string, now time.Time) bool {
	if raw == nil {
		return false
	}
	at, ok := model.ResolveDate(*raw, now)
	return ok && model.SameDay(at, now)
}
