package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tasktracker/internal/models"

	"github.com/google/uuid"
)

// MockTaskRepository is an in-memory implementation of TaskRepository.
type MockTaskRepository struct {
	tasks map[string]models.Task
	mu    sync.RWMutex
}

// NewMockTaskRepository creates a new instance of MockTaskRepository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{
		tasks: make(map[string]models.Task),
	}
}

// GetAll returns tasks matching the filter.
func (r *MockTaskRepository) GetAll(filter TaskFilter) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	taskList := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.IsCompleted != nil && t.IsCompleted != *filter.IsCompleted {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.Tag != "" && !containsTag(t.Tags, filter.Tag) {
			continue
		}
		if filter.Title != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(filter.Title)) {
			continue
		}
		taskList = append(taskList, t)
	}

	// Newest first, matching the default of the GORM implementation.
	// Other sort keys are only supported by the database-backed repository.
	sort.Slice(taskList, func(i, j int) bool {
		return taskList[i].CreatedAt.After(taskList[j].CreatedAt)
	})
	return taskList, nil
}

func containsTag(tags models.Tags, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GetByID returns a task by its ID.
func (r *MockTaskRepository) GetByID(id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task with ID %s: %w", id, ErrNotFound)
	}
	return &task, nil
}

// Create adds a new task.
func (r *MockTaskRepository) Create(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	r.tasks[task.ID] = *task
	return nil
}

// Update modifies an existing task, leaving its attachment list untouched.
func (r *MockTaskRepository) Update(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task with ID %s: %w", task.ID, ErrNotFound)
	}
	updated := *task
	updated.Attachments = existing.Attachments
	r.tasks[task.ID] = updated
	return nil
}

// Delete removes a task by its ID.
func (r *MockTaskRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task with ID %s: %w", id, ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

// AddAttachment appends an attachment to the task's list.
func (r *MockTaskRepository) AddAttachment(taskID string, attachment *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task with ID %s: %w", taskID, ErrNotFound)
	}
	if attachment.ID == "" {
		attachment.ID = uuid.New().String()
	}
	attachment.TaskID = taskID
	task.Attachments = append(task.Attachments, *attachment)
	r.tasks[taskID] = task
	return nil
}

// RemoveAttachment removes an attachment from the task's list.
func (r *MockTaskRepository) RemoveAttachment(taskID, attachmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task with ID %s: %w", taskID, ErrNotFound)
	}
	for i, att := range task.Attachments {
		if att.ID == attachmentID {
			task.Attachments = append(task.Attachments[:i], task.Attachments[i+1:]...)
			r.tasks[taskID] = task
			return nil
		}
	}
	return fmt.Errorf("attachment with ID %s: %w", attachmentID, ErrNotFound)
}
