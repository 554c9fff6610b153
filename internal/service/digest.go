package service

import (
	"time"

	"todo-planner/internal/model"
)

// Digest is the content of the daily summary message.
type Digest struct {
	Today     []model.Task
	Overdue   []model.Task
	Important []model.Task
	Open      int
}

// IsEmpty reports whether there is nothing worth sending.
func (d Digest) IsEmpty() bool {
	return d.Open == 0
}

// BuildDigest groups a user's open tasks for the morning summary. Completed
// tasks are skipped; a task due before now lands in Overdue, not Today.
func BuildDigest(tasks []model.Task, now time.Time) Digest {
	var d Digest
	open := FilterTasks(tasks, func(t model.Task) bool { return !t.Completed })
	d.Open = len(open)

	for _, t := range SortTasks(open, SortDueDate, now) {
		if t.DueDate != nil {
			if at, ok := model.ResolveDate(*t.DueDate, now); ok && at.Before(now) && !model.SameDay(at, now) {
				d.Overdue = append(d.Overdue, t)
				continue
			}
		}
		if onDay(t.DueDate, now) || onDay(t.Reminder, now) {
			d.Today = append(d.Today, t)
		}
	}
	d.Important = SortTasks(Favorited(open), SortCreationDate, now)
	return d
}
