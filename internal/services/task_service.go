package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"tasktracker/internal/models"
	"tasktracker/internal/repositories"
	"tasktracker/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxFileSize is the upload limit for task attachments.
const MaxFileSize = 5 * 1024 * 1024 // 5MB

const defaultPriority = "medium"

// allowedExtensions lists the attachment file types accepted for upload.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// EventPublisher publishes task lifecycle events for downstream consumers
// (e.g. the notification worker). A nil publisher disables eventing.
type EventPublisher interface {
	PublishTaskEvent(event string, data map[string]interface{}) error
}

// TaskUpdate holds the fields a task owner may change. Nil pointers (and a
// nil tag list) mean "leave unchanged"; ownership and creation time are
// never part of an update.
type TaskUpdate struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Tags        models.Tags `json:"tags"`
	DueDate     *time.Time  `json:"dueDate"`
	Priority    *string     `json:"priority"`
	IsCompleted *bool       `json:"isCompleted"`
}

// TaskService handles business logic for tasks: field validation, ownership
// enforcement, and the attachment upload/delete lifecycle.
type TaskService struct {
	taskRepo  repositories.TaskRepository
	fileStore storage.FileStore
	mqClient  EventPublisher
	validate  *validator.Validate
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo repositories.TaskRepository, fileStore storage.FileStore, mqClient EventPublisher) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		fileStore: fileStore,
		mqClient:  mqClient,
		validate:  validator.New(),
	}
}

// validateTask checks the task against the field constraints and returns a
// ValidationError carrying one message per failed field.
func (s *TaskService) validateTask(task *models.Task) error {
	err := s.validate.Struct(task)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("failed to validate task: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fieldMessage(e))
	}
	return &ValidationError{Messages: messages}
}

// fieldMessage maps a failed field check to a client-facing message.
func fieldMessage(e validator.FieldError) string {
	switch {
	case e.Field() == "Title" && e.Tag() == "required":
		return "Title is required"
	case e.Field() == "Title" && e.Tag() == "max":
		return "Title cannot be more than 100 characters"
	case e.Field() == "Description":
		return "Description is required"
	case e.Field() == "Tags" && (e.Tag() == "required" || e.Tag() == "min"):
		return "At least one tag is required"
	case strings.HasPrefix(e.Field(), "Tags"):
		return "Tags must be one of: work, personal, shopping, health, finance, education, other"
	case e.Field() == "Priority":
		return "Priority must be one of: low, medium, high"
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
}

// CreateTask validates and persists a new task owned by ownerID.
func (s *TaskService) CreateTask(ownerID string, task *models.Task) (*models.Task, error) {
	task.ID = uuid.New().String()
	task.UserID = ownerID
	task.Title = strings.TrimSpace(task.Title)
	if task.Priority == "" {
		task.Priority = defaultPriority
	}

	// Field validation always precedes persistence.
	if err := s.validateTask(task); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publishEvent("task.created", map[string]interface{}{
		"taskID": task.ID,
		"userID": task.UserID,
		"title":  task.Title,
	})
	return task, nil
}

// GetTask retrieves a task by ID. Reads are not restricted to the owner.
func (s *TaskService) GetTask(id string) (*models.Task, error) {
	return s.taskRepo.GetByID(id)
}

// ListTasks retrieves tasks matching the filter.
func (s *TaskService) ListTasks(filter repositories.TaskFilter) ([]models.Task, error) {
	return s.taskRepo.GetAll(filter)
}

// UpdateTask applies the supplied field changes to a task after checking
// that the requester owns it.
func (s *TaskService) UpdateTask(requesterID, taskID string, update TaskUpdate) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != requesterID {
		return nil, fmt.Errorf("user %s: %w", requesterID, ErrNotOwner)
	}

	if update.Title != nil {
		task.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Tags != nil {
		task.Tags = update.Tags
	}
	if update.DueDate != nil {
		task.DueDate = update.DueDate
	}
	if update.Priority != nil {
		// The omitempty validator tag lets "" through, but an explicit
		// empty priority is not a member of the enumeration.
		if *update.Priority == "" {
			return nil, newValidationError("Priority must be one of: low, medium, high")
		}
		task.Priority = *update.Priority
	}
	if update.IsCompleted != nil {
		task.IsCompleted = *update.IsCompleted
	}

	if err := s.validateTask(task); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", taskID, err)
	}

	s.publishEvent("task.updated", map[string]interface{}{
		"taskID": task.ID,
		"userID": task.UserID,
	})
	return task, nil
}

// DeleteTask removes a task after checking ownership. Attachment rows go
// with the task, but the stored files are intentionally left in place;
// only an explicit DetachFile removes the underlying object.
func (s *TaskService) DeleteTask(requesterID, taskID string) error {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return err
	}
	if task.UserID != requesterID {
		return fmt.Errorf("user %s: %w", requesterID, ErrNotOwner)
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}

	keys := make([]string, 0, len(task.Attachments))
	for _, att := range task.Attachments {
		keys = append(keys, att.StorageID)
	}
	s.publishEvent("task.deleted", map[string]interface{}{
		"taskID":      taskID,
		"userID":      task.UserID,
		"storageKeys": keys,
	})
	return nil
}

// AttachFile uploads the file to the object store and records it on the
// task. The ownership check runs before the store is touched so an
// unauthorized caller cannot cause an upload.
func (s *TaskService) AttachFile(ctx context.Context, requesterID, taskID, filename string, data []byte) (*models.Attachment, error) {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != requesterID {
		return nil, fmt.Errorf("user %s: %w", requesterID, ErrNotOwner)
	}

	if len(data) == 0 {
		return nil, newValidationError("Please upload a file")
	}
	if len(data) > MaxFileSize {
		return nil, newValidationError("File cannot be larger than 5MB")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, newValidationError("Only image, PDF and Word files are allowed")
	}

	result, err := s.fileStore.Upload(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file for task %s: %w", taskID, err)
	}

	attachment := &models.Attachment{
		URL:       result.URL,
		StorageID: result.StorageID,
		Filename:  filename,
		CreatedAt: time.Now(),
	}
	if err := s.taskRepo.AddAttachment(taskID, attachment); err != nil {
		// The object is already stored; log its key so it can be
		// reclaimed manually.
		log.Printf("orphaned stored file %s: attachment persist failed for task %s: %v", result.StorageID, taskID, err)
		return nil, fmt.Errorf("failed to record attachment for task %s: %w", taskID, err)
	}

	s.publishEvent("task.file_attached", map[string]interface{}{
		"taskID":     taskID,
		"userID":     task.UserID,
		"attachment": attachment.ID,
		"filename":   filename,
	})
	return attachment, nil
}

// DetachFile deletes the stored file and removes the attachment from the
// task. The stored file goes first: if that delete fails the attachment
// entry stays so the task never references a file as deleted while the
// object may still exist.
func (s *TaskService) DetachFile(ctx context.Context, requesterID, taskID, attachmentID string) error {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return err
	}
	if task.UserID != requesterID {
		return fmt.Errorf("user %s: %w", requesterID, ErrNotOwner)
	}

	var attachment *models.Attachment
	for i := range task.Attachments {
		if task.Attachments[i].ID == attachmentID {
			attachment = &task.Attachments[i]
			break
		}
	}
	if attachment == nil {
		return fmt.Errorf("attachment with ID %s: %w", attachmentID, repositories.ErrNotFound)
	}

	if err := s.fileStore.Delete(ctx, attachment.StorageID); err != nil {
		return fmt.Errorf("failed to delete stored file %s: %w", attachment.StorageID, err)
	}

	if err := s.taskRepo.RemoveAttachment(taskID, attachmentID); err != nil {
		return fmt.Errorf("failed to remove attachment %s: %w", attachmentID, err)
	}

	s.publishEvent("task.file_detached", map[string]interface{}{
		"taskID":     taskID,
		"userID":     task.UserID,
		"attachment": attachmentID,
	})
	return nil
}

// publishEvent sends a task event if a publisher is configured. Publishing
// is best-effort: a failure is logged and never fails the operation.
func (s *TaskService) publishEvent(event string, data map[string]interface{}) {
	if s.mqClient == nil {
		log.Println("Event publisher is not initialized. Skipping message publication.")
		return
	}
	if err := s.mqClient.PublishTaskEvent(event, data); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", event, err)
	}
}
