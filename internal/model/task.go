package model

import (
	"strings"
	"time"
)

// Task represents a single item in the to-do list.
//
// DueDate and Reminder hold either an RFC 3339 timestamp or one of the
// symbolic tokens (Today, Tomorrow, Next week); see ResolveDate.
type Task struct {
	ID        string  `gorm:"primaryKey;size:36"`
	UserID    string  `gorm:"index;size:36"`
	Text      string  `gorm:"not null"`
	Completed bool    `gorm:"default:false"`
	Favorited bool    `gorm:"default:false"`
	DueDate   *string
	Reminder  *string
	Repeat    *Repeat
	Note      string
	Files     []File `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// File is an attachment record.
type File struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewTask carries the fields a client may set when creating a task.
// The store assigns ID and CreatedAt.
type NewTask struct {
	Text string
}

// AssignmentMarker is the character whose presence in the task text puts a
// task into the "assigned" view. There is no real assignment relation yet.
const AssignmentMarker = "@"

// IsPlanned reports whether the task has a due date or a reminder.
func IsPlanned(t Task) bool {
	return t.DueDate != nil || t.Reminder != nil
}

// IsAssigned reports whether the task text carries the assignment marker.
func IsAssigned(t Task) bool {
	return strings.Contains(t.Text, AssignmentMarker)
}

func IsFavorited(t Task) bool {
	return t.Favorited
}

// Clone returns a deep copy so cached tasks never share pointer fields.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		v := *t.DueDate
		out.DueDate = &v
	}
	if t.Reminder != nil {
		v := *t.Reminder
		out.Reminder = &v
	}
	if t.Repeat != nil {
		v := *t.Repeat
		out.Repeat = &v
	}
	if t.Files != nil {
		out.Files = append([]File(nil), t.Files...)
	}
	return out
}

// HasFile reports whether an identical attachment record is already present.
func (t Task) HasFile(f File) bool {
	for _, existing := range t.Files {
		if existing == f {
			return true
		}
	}
	return false
}
