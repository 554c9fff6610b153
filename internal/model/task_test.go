package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPredicates(t *testing.T) {
	tasks := []Task{
		{Text: "plain"},
		{Text: "due", DueDate: strPtr("Today")},
		{Text: "reminded", Reminder: strPtr("Tomorrow")},
		{Text: "ask @bob", Favorited: true},
	}
	for _, task := range tasks {
		assert.Equal(t, task.DueDate != nil || task.Reminder != nil, IsPlanned(task), task.Text)
		assert.Equal(t, task.Favorited, IsFavorited(task), task.Text)
	}
	assert.True(t, IsAssigned(tasks[3]))
	assert.False(t, IsAssigned(tasks[0]))
}

func TestPatchApplyDistinguishesNullFromAbsent(t *testing.T) {
	repeat := RepeatDaily
	base := Task{Text: "water plants", DueDate: strPtr("Today"), Reminder: strPtr("Tomorrow"), Repeat: &repeat}

	untouched := Patch{Favorited: boolPtr(true)}.Apply(base)
	require.NotNil(t, untouched.DueDate)
	assert.Equal(t, "Today", *untouched.DueDate)
	assert.True(t, untouched.Favorited)

	cleared := Patch{DueDate: Null[string](), Repeat: Null[Repeat]()}.Apply(base)
	assert.Nil(t, cleared.DueDate)
	assert.Nil(t, cleared.Repeat)
	require.NotNil(t, cleared.Reminder)

	set := Patch{Reminder: Value("Next week")}.Apply(base)
	assert.Equal(t, "Next week", *set.Reminder)
	assert.Equal(t, "Tomorrow", *base.Reminder, "apply must not mutate the input")
}

func TestPatchAppendFilesSkipsDuplicates(t *testing.T) {
	f := File{Name: "a.txt", URL: "file:///a.txt"}
	task := Patch{AppendFiles: []File{f}}.Apply(Task{})
	task = Patch{AppendFiles: []File{f, {Name: "b.txt", URL: "file:///b.txt"}}}.Apply(task)
	assert.Len(t, task.Files, 2)
}

func TestPatchIsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, Patch{Repeat: Null[Repeat]()}.IsEmpty())
}

func TestParseRepeat(t *testing.T) {
	got, err := ParseRepeat("weekdays")
	require.NoError(t, err)
	assert.Equal(t, RepeatWeekdays, got)

	_, err = ParseRepeat("fortnightly")
	assert.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }
