package service

import (
	"context"
	"io"
	"sync"

	"todo-planner/internal/model"
)

// TaskStore is the persistence capability. Update applies only the fields
// carried by the patch; explicit nulls delete the field.
type TaskStore interface {
	Subscribe(userID string, onChange func([]model.Task)) (unsubscribe func())
	Create(ctx context.Context, userID string, in model.NewTask) (string, error)
	Update(ctx context.Context, userID, id string, patch model.Patch) error
	Delete(ctx context.Context, userID, id string) error
}

// FileStore is the blob upload capability.
type FileStore interface {
	Upload(ctx context.Context, path string, r io.Reader) (string, error)
}

// TaskCache is the client copy of the master task list. Local mutations are
// applied optimistically and overwritten by the next store snapshot.
type TaskCache struct {
	mu      sync.RWMutex
	order   []string
	tasks   map[string]model.Task
	deleted map[string]struct{}
}

func NewTaskCache() *TaskCache {
	return &TaskCache{
		tasks:   make(map[string]model.Task),
		deleted: make(map[string]struct{}),
	}
}

// Merge replaces the cache with an authoritative snapshot. Tasks deleted
// locally stay hidden until a snapshot no longer contains them.
func (c *TaskCache) Merge(snapshot []model.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	present := make(map[string]struct{}, len(snapshot))
	c.order = c.order[:0]
	c.tasks = make(map[string]model.Task, len(snapshot))
	for _, t := range snapshot {
		present[t.ID] = struct{}{}
		if _, gone := c.deleted[t.ID]; gone {
			continue
		}
		c.order = append(c.order, t.ID)
		c.tasks[t.ID] = t.Clone()
	}
	for id := range c.deleted {
		if _, ok := present[id]; !ok {
			delete(c.deleted, id)
		}
	}
}

// Apply patches a cached task in place and returns the result.
func (c *TaskCache) Apply(id string, patch model.Patch) (model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	t = patch.Apply(t)
	c.tasks[id] = t
	return t.Clone(), true
}

// Remove drops a task and remembers the id so a late snapshot cannot bring
// it back.
func (c *TaskCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleted[id] = struct{}{}
	if _, ok := c.tasks[id]; !ok {
		return
	}
	delete(c.tasks, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Forget clears the tombstone of id, used when a delete fails.
func (c *TaskCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deleted, id)
}

func (c *TaskCache) Get(id string) (model.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// List returns the tasks in snapshot order.
func (c *TaskCache) List() []model.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Task, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tasks[id].Clone())
	}
	return out
}

func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
