package handlers

import (
	"errors"
	"io"
	"log"
	"strconv"

	"tasktracker/internal/models"
	"tasktracker/internal/repositories"
	"tasktracker/internal/services"

	"github.com/gofiber/fiber/v2"
)

// TaskHandler handles HTTP requests for tasks and their attachments.
type TaskHandler struct {
	service *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

// RegisterRoutes registers the task routes. The given router is expected
// to already carry the authentication middleware.
func (h *TaskHandler) RegisterRoutes(router fiber.Router) {
	taskRoutes := router.Group("/tasks")
	taskRoutes.Get("/", h.HandleGetTasks)
	taskRoutes.Post("/", h.HandleCreateTask)
	taskRoutes.Get("/:id", h.HandleGetTask)
	taskRoutes.Put("/:id", h.HandleUpdateTask)
	taskRoutes.Delete("/:id", h.HandleDeleteTask)
	taskRoutes.Put("/:id/upload", h.HandleUploadFile)
	taskRoutes.Delete("/:id/upload/:fileId", h.HandleDeleteFile)
}

// requesterID pulls the authenticated user's ID out of the request context.
func requesterID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}

// domainErrorResponse maps service errors to HTTP responses. Anything not
// in the domain taxonomy becomes a generic 500 so internals never leak.
func domainErrorResponse(c *fiber.Ctx, err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": validationErr.Messages,
		})
	case errors.Is(err, services.ErrNotOwner):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authorized to modify this task",
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Resource not found",
		})
	default:
		log.Printf("Unexpected error handling task request: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Server error",
		})
	}
}

// HandleGetTasks lists tasks, applying the query-string filters.
func (h *TaskHandler) HandleGetTasks(c *fiber.Ctx) error {
	filter := repositories.TaskFilter{
		Priority: c.Query("priority"),
		Tag:      c.Query("tags"),
		Title:    c.Query("title"),
		Sort:     c.Query("sort"),
	}
	if raw := c.Query("isCompleted"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "isCompleted must be true or false",
			})
		}
		filter.IsCompleted = &completed
	}

	tasks, err := h.service.ListTasks(filter)
	if err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(tasks),
		"data":    tasks,
	})
}

// HandleGetTask retrieves a single task. Reads are open to any
// authenticated user, ownership only gates the write paths.
func (h *TaskHandler) HandleGetTask(c *fiber.Ctx) error {
	task, err := h.service.GetTask(c.Params("id"))
	if err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    task,
	})
}

// HandleCreateTask creates a new task owned by the requester.
func (h *TaskHandler) HandleCreateTask(c *fiber.Ctx) error {
	userID, ok := requesterID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authenticated",
		})
	}

	var task models.Task
	if err := c.BodyParser(&task); err != nil {
		log.Printf("Error parsing create task body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	created, err := h.service.CreateTask(userID, &task)
	if err != nil {
		return domainErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    created,
	})
}

// HandleUpdateTask applies field changes to a task owned by the requester.
func (h *TaskHandler) HandleUpdateTask(c *fiber.Ctx) error {
	userID, ok := requesterID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authenticated",
		})
	}

	var update services.TaskUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Printf("Error parsing update task body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	task, err := h.service.UpdateTask(userID, c.Params("id"), update)
	if err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    task,
	})
}

// HandleDeleteTask deletes a task owned by the requester.
func (h *TaskHandler) HandleDeleteTask(c *fiber.Ctx) error {
	userID, ok := requesterID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authenticated",
		})
	}

	if err := h.service.DeleteTask(userID, c.Params("id")); err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{},
	})
}

// HandleUploadFile attaches a multipart file (field name "file") to a task.
func (h *TaskHandler) HandleUploadFile(c *fiber.Ctx) error {
	userID, ok := requesterID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authenticated",
		})
	}

	// A missing or unreadable file is passed through as an empty payload
	// so the service's ownership check runs first: a non-owner posting no
	// file gets an authorization error, not a validation one.
	var filename string
	var data []byte
	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			log.Printf("Error opening uploaded file: %v", err)
		} else {
			defer file.Close()
			if content, err := io.ReadAll(file); err != nil {
				log.Printf("Error reading uploaded file: %v", err)
			} else {
				filename = fileHeader.Filename
				data = content
			}
		}
	}

	attachment, err := h.service.AttachFile(c.Context(), userID, c.Params("id"), filename, data)
	if err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    attachment,
	})
}

// HandleDeleteFile removes an attachment and its stored file from a task.
func (h *TaskHandler) HandleDeleteFile(c *fiber.Ctx) error {
	userID, ok := requesterID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Not authenticated",
		})
	}

	if err := h.service.DetachFile(c.Context(), userID, c.Params("id"), c.Params("fileId")); err != nil {
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{},
	})
}
