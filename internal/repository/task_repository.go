package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todo-planner/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepository stores tasks in SQL and pushes a fresh snapshot of a user's
// tasks to every subscriber after each write.
type TaskRepository struct {
	db *gorm.DB

	mu      sync.Mutex
	nextSub int
	subs    map[string]map[int]func([]model.Task)
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{
		db:   db,
		subs: make(map[string]map[int]func([]model.Task)),
	}
}

// Subscribe registers onChange for userID and delivers the current snapshot
// before returning.
func (r *TaskRepository) Subscribe(userID string, onChange func([]model.Task)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	if r.subs[userID] == nil {
		r.subs[userID] = make(map[int]func([]model.Task))
	}
	r.subs[userID][id] = onChange
	r.mu.Unlock()

	if tasks, err := r.List(context.Background(), userID); err != nil {
		log.Printf("[warn] initial snapshot for user %s: %v", userID, err)
	} else {
		onChange(tasks)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[userID], id)
		if len(r.subs[userID]) == 0 {
			delete(r.subs, userID)
		}
	}
}

// List returns a user's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, userID string, in model.NewTask) (string, error) {
	task := model.Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Text:   in.Text,
	}
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	r.publish(userID)
	return task.ID, nil
}

// Update writes only the fields carried by the patch. Explicit nulls clear
// the column; appended files are merged inside the transaction.
func (r *TaskRepository) Update(ctx context.Context, userID, taskID string, patch model.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		err := tx.Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}

		updated := patch.Apply(task)
		updated.UpdatedAt = time.Now()
		return tx.Model(&task).Select(patchColumns(patch)).Updates(&updated).Error
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("update task: %w", err)
	}
	r.publish(userID)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	r.publish(userID)
	return nil
}

func (r *TaskRepository) publish(userID string) {
	r.mu.Lock()
	subs := make([]func([]model.Task), 0, len(r.subs[userID]))
	for _, fn := range r.subs[userID] {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	tasks, err := r.List(context.Background(), userID)
	if err != nil {
		log.Printf("[warn] snapshot for user %s: %v", userID, err)
		return
	}
	for _, fn := range subs {
		snapshot := make([]model.Task, len(tasks))
		for i, t := range tasks {
			snapshot[i] = t.Clone()
		}
		fn(snapshot)
	}
}

func patchColumns(p model.Patch) []string {
	cols := []string{"updated_at"}
	if p.Text != nil {
		cols = append(cols, "text")
	}
	if p.Completed != nil {
		cols = append(cols, "completed")
	}
	if p.Favorited != nil {
		cols = append(cols, "favorited")
	}
	if p.Note != nil {
		cols = append(cols, "note")
	}
	if p.DueDate.Set {
		cols = append(cols, "due_date")
	}
	if p.Reminder.Set {
		cols = append(cols, "reminder")
	}
	if p.Repeat.Set {
		cols = append(cols, "repeat")
	}
	if len(p.AppendFiles) > 0 {
		cols = append(cols, "files")
	}
	return cols
}
