package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"todo-planner/internal/model"
)

var (
	ErrNoTaskOpen   = errors.New("no task is open")
	ErrTaskNotFound = errors.New("task not found")
	ErrEmptyText    = errors.New("task text is required")
)

// UpdateError reports a store write that failed after the local state was
// already updated. It is not fatal: the next snapshot reconciles the cache.
type UpdateError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// Panel is an expandable picker in the detail view.
type Panel string

const (
	PanelNone     Panel = ""
	PanelReminder Panel = "reminder"
	PanelDueDate  Panel = "dueDate"
	PanelRepeat   Panel = "repeat"
)

func ParsePanel(raw string) (Panel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reminder", "remind", "remindme":
		return PanelReminder, nil
	case "due", "duedate", "due-date":
		return PanelDueDate, nil
	case "repeat":
		return PanelRepeat, nil
	}
	return PanelNone, fmt.Errorf("unknown panel %q", raw)
}

// DetailDeps are the capabilities a detail controller works with.
type DetailDeps struct {
	Store  TaskStore
	Files  FileStore
	Cache  *TaskCache
	Clock  Clock
	Timers Timers
	Sink   NotificationSink
}

// DetailController owns the detail view of at most one task. Every field
// change is applied locally first and then sent to the store as its own
// partial update.
type DetailController struct {
	userID string
	deps   DetailDeps

	mu         sync.Mutex
	current    *model.Task
	panel      Panel
	scheduler  *NotificationScheduler
	schedInput ScheduleInput
}

func NewDetailController(userID string, deps DetailDeps) *DetailController {
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Cache == nil {
		deps.Cache = NewTaskCache()
	}
	return &DetailController{userID: userID, deps: deps}
}

// Open selects a task, replacing any previously open one.
func (c *DetailController) Open(id string) (model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.ID == id {
		return c.current.Clone(), nil
	}
	task, ok := c.deps.Cache.Get(id)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	c.closeLocked()
	c.current = &task
	c.scheduler = NewNotificationScheduler(c.deps.Clock, c.deps.Timers, c.deps.Sink)
	c.schedInput = ScheduleInputFor(task)
	c.scheduler.Sync(c.schedInput)
	return task.Clone(), nil
}

func (c *DetailController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Current returns the open task.
func (c *DetailController) Current() (model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.Task{}, false
	}
	return c.current.Clone(), true
}

func (c *DetailController) IsOpen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.ID == id
}

func (c *DetailController) Panel() Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel
}

// TogglePanel opens p, or closes it when it is already open.
func (c *DetailController) TogglePanel(p Panel) Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return PanelNone
	}
	if c.panel == p {
		c.panel = PanelNone
	} else {
		c.panel = p
	}
	return c.panel
}

// Scheduler exposes the notification session of the open task.
func (c *DetailController) Scheduler() *NotificationScheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler
}

func (c *DetailController) ToggleFavorite(ctx context.Context) error {
	return c.mutate(ctx, "favorite", func(t model.Task) (model.Patch, error) {
		v := !t.Favorited
		return model.Patch{Favorited: &v}, nil
	})
}

func (c *DetailController) ToggleCompleted(ctx context.Context) error {
	return c.mutate(ctx, "complete", func(t model.Task) (model.Patch, error) {
		v := !t.Completed
		return model.Patch{Completed: &v}, nil
	})
}

func (c *DetailController) Rename(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return c.mutate(ctx, "rename", func(model.Task) (model.Patch, error) {
		return model.Patch{Text: &text}, nil
	})
}

func (c *DetailController) SetNote(ctx context.Context, note string) error {
	return c.mutate(ctx, "note", func(model.Task) (model.Patch, error) {
		return model.Patch{Note: &note}, nil
	})
}

// SetReminder stores a reminder; invalid values are rejected before any write.
func (c *DetailController) SetReminder(ctx context.Context, raw string) error {
	value, err := model.NormalizeDate(raw, c.deps.Clock.Now())
	if err != nil {
		return err
	}
	return c.mutate(ctx, "set reminder", func(model.Task) (model.Patch, error) {
		c.panel = PanelNone
		return model.Patch{Reminder: model.Value(value)}, nil
	})
}

func (c *DetailController) ClearReminder(ctx context.Context) error {
	return c.mutate(ctx, "clear reminder", func(model.Task) (model.Patch, error) {
		c.scheduler.CancelReminder()
		return model.Patch{Reminder: model.Null[string]()}, nil
	})
}

// SetDueDate stores a due date; invalid values are rejected before any write.
func (c *DetailController) SetDueDate(ctx context.Context, raw string) error {
	value, err := model.NormalizeDate(raw, c.deps.Clock.Now())
	if err != nil {
		return err
	}
	return c.mutate(ctx, "set due date", func(model.Task) (model.Patch, error) {
		c.panel = PanelNone
		return model.Patch{DueDate: model.Value(value)}, nil
	})
}

func (c *DetailController) ClearDueDate(ctx context.Context) error {
	return c.mutate(ctx, "clear due date", func(model.Task) (model.Patch, error) {
		c.scheduler.CancelDueDate()
		return model.Patch{DueDate: model.Null[string]()}, nil
	})
}

func (c *DetailController) SetRepeat(ctx context.Context, pattern model.Repeat) error {
	return c.mutate(ctx, "set repeat", func(model.Task) (model.Patch, error) {
		c.panel = PanelNone
		return model.Patch{Repeat: model.Value(pattern)}, nil
	})
}

func (c *DetailController) ClearRepeat(ctx context.Context) error {
	return c.mutate(ctx, "clear repeat", func(model.Task) (model.Patch, error) {
		return model.Patch{Repeat: model.Null[model.Repeat]()}, nil
	})
}

// Attach uploads one file to tasks/<id>/<upload id>/<name> and appends it to
// the open task. On failure the
// task's files stay as they were and the detail view stays open.
func (c *DetailController) Attach(ctx context.Context, name string, r io.Reader) (model.File, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return model.File{}, ErrNoTaskOpen
	}
	id := c.current.ID
	c.mu.Unlock()

	if c.deps.Files == nil {
		return model.File{}, errors.New("file uploads are not available")
	}
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return model.File{}, errors.New("file name is required")
	}

	// Each upload gets its own directory so a second file with the same
	// name never overwrites the first.
	url, err := c.deps.Files.Upload(ctx, path.Join("tasks", id, uuid.NewString(), name), r)
	if err != nil {
		log.Printf("[warn] upload %s for task %s: %v", name, id, err)
		return model.File{}, fmt.Errorf("upload %s: %w", name, err)
	}

	file := model.File{Name: name, URL: url}
	patch := model.Patch{AppendFiles: []model.File{file}}
	if err := c.deps.Store.Update(ctx, c.userID, id, patch); err != nil {
		log.Printf("[warn] attach %s to task %s: %v", name, id, err)
		return model.File{}, &UpdateError{Op: "attach", TaskID: id, Err: err}
	}

	c.mu.Lock()
	c.applyLocked(id, patch)
	c.mu.Unlock()
	return file, nil
}

// Delete removes a task from the store and closes the detail view when it
// shows that task.
func (c *DetailController) Delete(ctx context.Context, id string) error {
	c.deps.Cache.Remove(id)
	err := c.deps.Store.Delete(ctx, c.userID, id)
	if err != nil {
		c.deps.Cache.Forget(id)
		log.Printf("[warn] delete task %s: %v", id, err)
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == id {
		c.closeLocked()
	}
	c.mu.Unlock()

	if err != nil {
		return &UpdateError{Op: "delete", TaskID: id, Err: err}
	}
	return nil
}

// Reconcile refreshes the open task from the cache after a snapshot.
func (c *DetailController) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	task, ok := c.deps.Cache.Get(c.current.ID)
	if !ok {
		log.Printf("[info] task %s disappeared, closing detail view", c.current.ID)
		c.closeLocked()
		return
	}
	c.current = &task
	c.resyncLocked()
}

func (c *DetailController) mutate(ctx context.Context, op string, build func(model.Task) (model.Patch, error)) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTaskOpen
	}
	patch, err := build(c.current.Clone())
	if err != nil || patch.IsEmpty() {
		c.mu.Unlock()
		return err
	}
	id := c.current.ID
	c.applyLocked(id, patch)
	c.mu.Unlock()

	// The store may push a snapshot synchronously, so the lock is released
	// before writing.
	if err := c.deps.Store.Update(ctx, c.userID, id, patch); err != nil {
		log.Printf("[warn] %s task %s: %v", op, id, err)
		return &UpdateError{Op: op, TaskID: id, Err: err}
	}
	return nil
}

func (c *DetailController) applyLocked(id string, patch model.Patch) {
	c.deps.Cache.Apply(id, patch)
	if c.current == nil || c.current.ID != id {
		return
	}
	updated := patch.Apply(*c.current)
	c.current = &updated
	c.resyncLocked()
}

func (c *DetailController) resyncLocked() {
	if c.scheduler == nil || c.current == nil {
		return
	}
	in := ScheduleInputFor(*c.current)
	if in.Equal(c.schedInput) {
		return
	}
	c.schedInput = in
	c.scheduler.Sync(in)
}

func (c *DetailController) closeLocked() {
	if c.scheduler != nil {
		c.scheduler.Stop()
		c.scheduler = nil
	}
	c.current = nil
	c.panel = PanelNone
	c.schedInput = ScheduleInput{}
}
