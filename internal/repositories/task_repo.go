package repositories

import (
	"errors"

	"tasktracker/internal/models"
)

// ErrNotFound is returned when a record with the given identifier does not exist.
var ErrNotFound = errors.New("record not found")

// TaskFilter holds the optional list filters supported by the task listing endpoint.
type TaskFilter struct {
	IsCompleted *bool  // nil means "any"
	Priority    string // low, medium or high
	Tag         string // membership test against the task's tag list
	Title       string // case-insensitive substring match
	Sort        string // column name, "-" prefix for descending; defaults to newest first
}

// TaskRepository defines the interface for task data access.
type TaskRepository interface {
	GetAll(filter TaskFilter) ([]models.Task, error)
	GetByID(id string) (*models.Task, error)
	Create(task *models.Task) error
	Update(task *models.Task) error
	Delete(id string) error
	AddAttachment(taskID string, attachment *models.Attachment) error
	RemoveAttachment(taskID, attachmentID string) error
}
