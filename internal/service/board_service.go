package service

import (
	"context"
	"strings"
	"sync"

	"todo-planner/internal/model"
)

// BoardDeps wires a board to its capabilities.
type BoardDeps struct {
	Store  TaskStore
	Files  FileStore
	Clock  Clock
	Timers Timers
	Sink   NotificationSink
	Sorter *Sorter
}

// TaskBoard is one signed-in user's live task list together with its detail
// view.
type TaskBoard struct {
	userID string
	store  TaskStore
	clock  Clock
	sorter *Sorter
	cache  *TaskCache
	detail *DetailController

	mu          sync.Mutex
	unsubscribe func()
	strategy    SortStrategy
}

func NewTaskBoard(userID string, deps BoardDeps) *TaskBoard {
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Sorter == nil {
		deps.Sorter = defaultSorter
	}
	cache := NewTaskCache()
	return &TaskBoard{
		userID:   userID,
		store:    deps.Store,
		clock:    deps.Clock,
		sorter:   deps.Sorter,
		cache:    cache,
		strategy: SortCreationDate,
		detail: NewDetailController(userID, DetailDeps{
			Store:  deps.Store,
			Files:  deps.Files,
			Cache:  cache,
			Clock:  deps.Clock,
			Timers: deps.Timers,
			Sink:   deps.Sink,
		}),
	}
}

// Start subscribes to the user's tasks. Calling it twice is a no-op.
func (b *TaskBoard) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil {
		return
	}
	b.unsubscribe = b.store.Subscribe(b.userID, b.handleSnapshot)
}

// Stop unsubscribes and closes the detail view, cancelling its timers.
func (b *TaskBoard) Stop() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	b.detail.Close()
}

func (b *TaskBoard) handleSnapshot(tasks []model.Task) {
	b.cache.Merge(tasks)
	b.detail.Reconcile()
}

func (b *TaskBoard) UserID() string { return b.userID }

func (b *TaskBoard) Detail() *DetailController { return b.detail }

func (b *TaskBoard) Tasks() []model.Task { return b.cache.List() }

func (b *TaskBoard) Get(id string) (model.Task, bool) { return b.cache.Get(id) }

func (b *TaskBoard) SortStrategy() SortStrategy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strategy
}

func (b *TaskBoard) SetSortStrategy(s SortStrategy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strategy = s
}

// View returns the filtered subset of a page ordered by the board's current
// sort strategy.
func (b *TaskBoard) View(view View) []model.Task {
	now := b.clock.Now()
	return b.sorter.Sort(Filter(view, b.cache.List(), now), b.SortStrategy(), now)
}

// Search returns the tasks matching query in the board's sort order.
func (b *TaskBoard) Search(query string) []model.Task {
	return b.sorter.Sort(Search(b.cache.List(), query), b.SortStrategy(), b.clock.Now())
}

// Add creates a task from its text.
func (b *TaskBoard) Add(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return b.store.Create(ctx, b.userID, model.NewTask{Text: text})
}

func (b *TaskBoard) Delete(ctx context.Context, id string) error {
	return b.detail.Delete(ctx, id)
}
