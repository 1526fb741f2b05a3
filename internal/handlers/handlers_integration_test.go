package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"tasktracker/internal/handlers"
	"tasktracker/internal/middleware"
	"tasktracker/internal/models"
	"tasktracker/internal/repositories"
	"tasktracker/internal/services"
	"tasktracker/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite, the
// in-memory file store and all handlers/services wired together.
func setupApp() (*fiber.App, *storage.MockFileStore, error) {
	// Configure Viper for testing
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// Initialize in-memory SQLite database
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}

	// Auto-migrate models
	err = db.AutoMigrate(&models.User{}, &models.Task{}, &models.Attachment{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Initialize Repositories and the file store
	userRepo := repositories.NewGORMUserRepository(db)
	taskRepo := repositories.NewGORMTaskRepository(db)
	fileStore := storage.NewMockFileStore()

	// Initialize Services (nil event publisher: no RabbitMQ in tests)
	authService := services.NewAuthService(userRepo, jwtSecret)
	taskService := services.NewTaskService(taskRepo, fileStore, nil)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	taskHandler := handlers.NewTaskHandler(taskService)

	app := fiber.New()

	// API Routes
	apiV1 := app.Group("/api/v1")

	// Authentication routes (public)
	authHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protectedRoutes)
	taskHandler.RegisterRoutes(protectedRoutes)

	return app, fileStore, nil
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// doJSON sends a JSON request with an optional bearer token and decodes
// the response body into a generic map.
func doJSON(t *testing.T, app *fiber.App, method, target, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	if len(respBody) > 0 {
		assert.NoError(t, json.Unmarshal(respBody, &decoded))
	}
	return resp.StatusCode, decoded
}

// registerAndLogin registers a fresh user and returns their token.
func registerAndLogin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _, err := setupApp()
	assert.NoError(t, err)

	// Registration
	token := registerAndLogin(t, app, "auth-flow@example.com")

	// Duplicate email is rejected
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    "auth-flow@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	// Short password is rejected
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    "short-pass@example.com",
		"password": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "Password must be at least 6 characters")

	// Login succeeds with the right password
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "auth-flow@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	// Login fails with the wrong password
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "auth-flow@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// /auth/me returns the authenticated user
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, status)
	me := body["data"].(map[string]interface{})
	assert.Equal(t, "auth-flow@example.com", me["email"])

	// /auth/logout succeeds for an authenticated user
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	// Task routes reject missing tokens
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTaskCRUDRoundTrip(t *testing.T) {
	app, _, err := setupApp()
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "crud@example.com")

	// Create
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":       "Buy milk",
		"description": "Get two liters",
		"tags":        []string{"shopping"},
	})
	assert.Equal(t, http.StatusCreated, status)
	created := body["data"].(map[string]interface{})
	taskID := created["id"].(string)
	assert.NotEmpty(t, taskID)

	// Read back: identical fields, defaults applied
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	task := body["data"].(map[string]interface{})
	assert.Equal(t, "Buy milk", task["title"])
	assert.Equal(t, []interface{}{"shopping"}, task["tags"])
	assert.Equal(t, "medium", task["priority"])
	assert.Equal(t, false, task["isCompleted"])

	// Update
	status, body = doJSON(t, app, http.MethodPut, "/api/v1/tasks/"+taskID, token, map[string]interface{}{
		"isCompleted": true,
		"priority":    "high",
	})
	assert.Equal(t, http.StatusOK, status)
	task = body["data"].(map[string]interface{})
	assert.Equal(t, true, task["isCompleted"])
	assert.Equal(t, "high", task["priority"])
	assert.Equal(t, "Buy milk", task["title"])

	// List with filters
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks?isCompleted=true&priority=high&tags=shopping&title=milk", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, int(body["count"].(float64)), 1)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks?title=no-such-task-title", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])

	// Delete, then reads miss
	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskListSorting(t *testing.T) {
	app, _, err := setupApp()
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "sorting@example.com")

	// Created in this order, so newest-first means reverse order
	for _, title := range []string{"alpha sortable", "bravo sortable", "charlie sortable"} {
		status, _ := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
			"title":       title,
			"description": "d",
			"tags":        []string{"work"},
		})
		assert.Equal(t, http.StatusCreated, status)
	}

	titles := func(body map[string]interface{}) []string {
		data, _ := body["data"].([]interface{})
		out := make([]string, 0, len(data))
		for _, item := range data {
			out = append(out, item.(map[string]interface{})["title"].(string))
		}
		return out
	}

	// Ascending by title
	status, body := doJSON(t, app, http.MethodGet, "/api/v1/tasks?title=sortable&sort=title", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"alpha sortable", "bravo sortable", "charlie sortable"}, titles(body))

	// Descending with the "-" prefix
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks?title=sortable&sort=-title", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"charlie sortable", "bravo sortable", "alpha sortable"}, titles(body))

	// Unknown sort keys fall back to newest first
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks?title=sortable&sort=bogus", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"charlie sortable", "bravo sortable", "alpha sortable"}, titles(body))
}

func TestTaskValidation(t *testing.T) {
	app, _, err := setupApp()
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "validation@example.com")

	// Missing title
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"description": "No title here",
		"tags":        []string{"work"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "Title is required")

	// Empty tags
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":       "Tagless",
		"description": "d",
		"tags":        []string{},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "At least one tag is required")

	// Tag outside the enumeration
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":       "Bad tag",
		"description": "d",
		"tags":        []string{"chores"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "Tags must be one of: work, personal, shopping, health, finance, education, other")
}

func TestTaskOwnership(t *testing.T) {
	app, _, err := setupApp()
	assert.NoError(t, err)
	ownerToken := registerAndLogin(t, app, "owner@example.com")
	otherToken := registerAndLogin(t, app, "other@example.com")

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/tasks", ownerToken, map[string]interface{}{
		"title":       "Private task",
		"description": "Owned",
		"tags":        []string{"personal"},
	})
	assert.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]interface{})["id"].(string)

	// Reads are not owner-restricted
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, otherToken, nil)
	assert.Equal(t, http.StatusOK, status)

	// Writes by a non-owner are rejected
	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/tasks/"+taskID, otherToken, map[string]interface{}{
		"title": "Hijacked",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/tasks/"+taskID, otherToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// State is unchanged after the rejected writes
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Private task", body["data"].(map[string]interface{})["title"])
}

// uploadFile sends a multipart upload with the given field and file names.
func uploadFile(t *testing.T, app *fiber.App, target, token, field, filename string, content []byte) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(respBody, &decoded))
	return resp.StatusCode, decoded
}

func TestTaskAttachments(t *testing.T) {
	app, fileStore, err := setupApp()
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "files@example.com")
	otherToken := registerAndLogin(t, app, "files-other@example.com")

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":       "With attachment",
		"description": "d",
		"tags":        []string{"work"},
	})
	assert.Equal(t, http.StatusCreated, status)
	taskID := body["data"].(map[string]interface{})["id"].(string)
	uploadURL := "/api/v1/tasks/" + taskID + "/upload"

	// Wrong field name means no file payload
	status, _ = uploadFile(t, app, uploadURL, token, "document", "pic.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusBadRequest, status)

	// Disallowed extension
	status, _ = uploadFile(t, app, uploadURL, token, "file", "script.sh", []byte("#!"))
	assert.Equal(t, http.StatusBadRequest, status)

	// Non-owner cannot upload, and nothing reaches the store
	status, _ = uploadFile(t, app, uploadURL, otherToken, "file", "pic.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 0, fileStore.Len())

	// A non-owner posting no file gets the ownership error, not the
	// missing-file one
	status, _ = uploadFile(t, app, uploadURL, otherToken, "document", "pic.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusUnauthorized, status)

	// Successful upload
	status, body = uploadFile(t, app, uploadURL, token, "file", "pic.png", []byte("png-bytes"))
	assert.Equal(t, http.StatusOK, status)
	attachment := body["data"].(map[string]interface{})
	assert.Equal(t, "pic.png", attachment["filename"])
	assert.NotEmpty(t, attachment["url"])
	assert.NotEmpty(t, attachment["publicId"])
	assert.Equal(t, 1, fileStore.Len())
	fileID := attachment["id"].(string)

	// The attachment shows up on the task
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	attachments, _ := body["data"].(map[string]interface{})["attachments"].([]interface{})
	assert.Len(t, attachments, 1)

	// Deleting an unknown attachment ID is a 404 and changes nothing
	status, _ = doJSON(t, app, http.MethodDelete, uploadURL+"/no-such-id", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 1, fileStore.Len())

	// A non-owner cannot detach
	status, _ = doJSON(t, app, http.MethodDelete, uploadURL+"/"+fileID, otherToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 1, fileStore.Len())

	// The owner detaches: stored file and attachment entry both go
	status, _ = doJSON(t, app, http.MethodDelete, uploadURL+"/"+fileID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, fileStore.Len())

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	attachments, _ = body["data"].(map[string]interface{})["attachments"].([]interface{})
	assert.Len(t, attachments, 0)
}
