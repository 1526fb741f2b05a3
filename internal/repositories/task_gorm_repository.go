package repositories

import (
	"fmt"
	"strings"

	"tasktracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sortColumns whitelists the columns the list endpoint may sort by.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"dueDate":     "due_date",
	"priority":    "priority",
	"title":       "title",
	"isCompleted": "is_completed",
}

// GORMTaskRepository is a GORM implementation of TaskRepository.
type GORMTaskRepository struct {
	db *gorm.DB
}

// NewGORMTaskRepository creates a new instance of GORMTaskRepository.
func NewGORMTaskRepository(db *gorm.DB) *GORMTaskRepository {
	return &GORMTaskRepository{
		db: db,
	}
}

// withAttachments preloads the attachment list in creation order.
func (r *GORMTaskRepository) withAttachments() *gorm.DB {
	return r.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}

// GetAll retrieves tasks matching the filter from the database.
func (r *GORMTaskRepository) GetAll(filter TaskFilter) ([]models.Task, error) {
	query := r.withAttachments()

	if filter.IsCompleted != nil {
		query = query.Where("is_completed = ?", *filter.IsCompleted)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array, so membership is a substring
		// match on the quoted value.
		query = query.Where("tags LIKE ?", "%"+`"`+filter.Tag+`"`+"%")
	}
	if filter.Title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Title)+"%")
	}

	query = query.Order(orderClause(filter.Sort))

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	return tasks, nil
}

// orderClause translates a client sort key into a safe ORDER BY clause.
func orderClause(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	key := strings.TrimPrefix(sort, "-")
	column, ok := sortColumns[key]
	if !ok {
		return "created_at DESC"
	}
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}

// GetByID retrieves a single task with its attachments from the database.
func (r *GORMTaskRepository) GetByID(id string) (*models.Task, error) {
	var task models.Task
	if err := r.withAttachments().First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("task with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task by ID %s: %w", id, err)
	}
	return &task, nil
}

// Create creates a new task in the database.
func (r *GORMTaskRepository) Create(task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update updates an existing task in the database. Attachment rows are
// managed separately through AddAttachment/RemoveAttachment.
func (r *GORMTaskRepository) Update(task *models.Task) error {
	res := r.db.Omit("Attachments").Save(task)
	if res.Error != nil {
		return fmt.Errorf("failed to update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// GORM's Save doesn't return ErrRecordNotFound for an update
		// with no matching row, so we check RowsAffected.
		return fmt.Errorf("task with ID %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a task and its attachment rows from the database.
func (r *GORMTaskRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Attachment{}, "task_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete attachments for task %s: %w", id, err)
		}
		res := tx.Delete(&models.Task{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("task with ID %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddAttachment persists a new attachment row for the given task.
func (r *GORMTaskRepository) AddAttachment(taskID string, attachment *models.Attachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.New().String()
	}
	attachment.TaskID = taskID
	if err := r.db.Create(attachment).Error; err != nil {
		return fmt.Errorf("failed to add attachment to task %s: %w", taskID, err)
	}
	return nil
}

// RemoveAttachment deletes an attachment row belonging to the given task.
func (r *GORMTaskRepository) RemoveAttachment(taskID, attachmentID string) error {
	res := r.db.Delete(&models.Attachment{}, "id = ? AND task_id = ?", attachmentID, taskID)
	if res.Error != nil {
		return fmt.Errorf("failed to remove attachment %s: %w", attachmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("attachment with ID %s: %w", attachmentID, ErrNotFound)
	}
	return nil
}
