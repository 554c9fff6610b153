package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"todo-planner/internal/model"
)

// SortStrategy selects the ordering of a task list.
type SortStrategy string

const (
	SortCreationDate   SortStrategy = "creationDate"
	SortImportance     SortStrategy = "importance"
	SortDueDate        SortStrategy = "dueDate"
	SortAlphabetically SortStrategy = "alphabetically"
)

var SortStrategies = []SortStrategy{SortImportance, SortDueDate, SortAlphabetically, SortCreationDate}

// ParseSortStrategy accepts strategy names case-insensitively and falls back
// to creation date.
func ParseSortStrategy(raw string) SortStrategy {
	value := strings.TrimSpace(raw)
	for _, s := range SortStrategies {
		if strings.EqualFold(value, string(s)) {
			return s
		}
	}
	switch strings.ToLower(value) {
	case "due", "due_date", "duedate":
		return SortDueDate
	case "alpha", "az", "name":
		return SortAlphabetically
	case "fav", "favorites", "important":
		return SortImportance
	}
	return SortCreationDate
}

// Sorter orders tasks. The zero value is not usable; use NewSorter.
type Sorter struct {
	mu       sync.Mutex
	collator *collate.Collator
}

// NewSorter builds a sorter whose alphabetical order follows the given
// BCP 47 locale. Unknown locales fall back to English.
func NewSorter(locale string) *Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Sorter{collator: collate.New(tag)}
}

var defaultSorter = NewSorter("en")

type dueKey struct {
	task model.Task
	at   time.Time
	ok   bool
}

// SortTasks orders tasks with the default English collation.
func SortTasks(tasks []model.Task, strategy SortStrategy, now time.Time) []model.Task {
	return defaultSorter.Sort(tasks, strategy, now)
}

// Sort returns a new slice; the input is never reordered. Symbolic due dates
// resolve against now, so their position is only stable within one call.
func (s *Sorter) Sort(tasks []model.Task, strategy SortStrategy, now time.Time) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)

	switch strategy {
	case SortImportance:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Favorited && !out[j].Favorited
		})
	case SortDueDate:
		keyed := make([]dueKey, len(out))
		for i, t := range out {
			keyed[i].task = t
			if t.DueDate != nil {
				keyed[i].at, keyed[i].ok = model.ResolveDate(*t.DueDate, now)
			}
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			switch {
			case !keyed[i].ok:
				return false
			case !keyed[j].ok:
				return true
			default:
				return keyed[i].at.Before(keyed[j].at)
			}
		})
		for i := range keyed {
			out[i] = keyed[i].task
		}
	case SortAlphabetically:
		// Collator buffers are not safe for concurrent use.
		s.mu.Lock()
		defer s.mu.Unlock()
		sort.SliceStable(out, func(i, j int) bool {
			return s.collator.CompareString(out[i].Text, out[j].Text) < 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}
	return out
}
