package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskify/backend/internal/handlers"
	"taskify/backend/internal/middleware"
	"taskify/backend/internal/models"
	"taskify/backend/internal/services"
	"taskify/backend/internal/validation"
)

var testUser = models.CurrentUser{ID: "user-1", Email: "ada@example.com"}

type MockTaskService struct {
	err error

	created     *services.CreateTaskRequest
	updated     *services.UpdateTaskRequest
	page, limit int
	lastUser    models.CurrentUser
}

func (m *MockTaskService) CreateTask(ctx context.Context, req services.CreateTaskRequest, user models.CurrentUser) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &req
	m.lastUser = user
	return &models.Task{ID: "task-1", Title: req.Title, DueDate: *req.DueDate, CreatedBy: user.ID, Status: models.TaskStatusPending}, nil
}

func (m *MockTaskService) GetTask(ctx context.Context, id string, user models.CurrentUser) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastUser = user
	return &models.Task{ID: id, Title: "Test Task", Status: models.TaskStatusPending, CreatedBy: user.ID}, nil
}

func (m *MockTaskService) ListTasks(ctx context.Context, user models.CurrentUser, page, limit int) (*services.TaskListResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.page, m.limit = page, limit
	tasks := []models.Task{{ID: "a", Title: "Task 1"}, {ID: "b", Title: "Task 2"}}
	return &services.TaskListResult{Tasks: tasks, Total: 2, Page: page, Limit: limit, TotalPages: 1}, nil
}

func (m *MockTaskService) UpdateTask(ctx context.Context, id string, user models.CurrentUser, req services.UpdateTaskRequest) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.updated = &req
	return &models.Task{ID: id, Title: "Updated Task", Status: models.TaskStatusCompleted}, nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id string, user models.CurrentUser) error {
	return m.err
}

func setupTaskHandler() (*MockTaskService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	validation.Init()

	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(mockService)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		middleware.SetCurrentUser(c, testUser)
		c.Next()
	})
	router.POST("/tasks", handler.CreateTask)
	router.GET("/tasks", handler.GetTasks)
	router.GET("/tasks/:id", handler.GetTaskByID)
	router.PATCH("/tasks/:id", handler.UpdateTask)
	router.DELETE("/tasks/:id", handler.DeleteTask)

	return mockService, router
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handlers.Response {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateTask(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := perform(router, "POST", "/tasks",
		`{"title":"Test Task","due_date":"2030-01-01T10:00:00Z","created_by":"someone-else","tags":["a"]}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	resp := decode(t, w)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "Task successfully created.", resp.Detail)
	assert.Equal(t, testUser, mockService.lastUser)
	assert.Equal(t, []string{"a"}, mockService.created.Tags)
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	_, router := setupTaskHandler()

	w := perform(router, "POST", "/tasks", "invalid json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	_, router := setupTaskHandler()

	w := perform(router, "POST", "/tasks", `{"status":"archived","assigned_to":"nope"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	resp := decode(t, w)
	assert.Equal(t, "is required", resp.Errors["title"])
	assert.Equal(t, "is required", resp.Errors["due_date"])
	assert.Contains(t, resp.Errors, "status")
	assert.Contains(t, resp.Errors, "assigned_to")
}

func TestCreateTaskServiceFailureHidesCause(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = &services.Error{Kind: services.ErrPersistence, Detail: "Failed to create task", Cause: errors.New("pq: relation missing")}

	w := perform(router, "POST", "/tasks", `{"title":"x","due_date":"2030-01-01T10:00:00Z"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status_code":500,"detail":"Failed to create task","data":null}`, w.Body.String())
}

func TestGetTaskByID(t *testing.T) {
	_, router := setupTaskHandler()

	w := perform(router, "GET", "/tasks/task-9", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body struct {
		Detail string      `json:"detail"`
		Data   models.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Task details retrieved successfully.", body.Detail)
	assert.Equal(t, "task-9", body.Data.ID)
	assert.Equal(t, "Test Task", body.Data.Title)
}

func TestTaskErrorMapping(t *testing.T) {
	tests := []struct {
		kind   error
		status int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrValidation, http.StatusUnprocessableEntity},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			mockService, router := setupTaskHandler()
			mockService.err = &services.Error{Kind: tt.kind, Detail: "boom"}

			w := perform(router, "GET", "/tasks/x", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status, decode(t, w).StatusCode)
			assert.Equal(t, "boom", decode(t, w).Detail)
		})
	}

	mockService, router := setupTaskHandler()
	mockService.err = errors.New("raw driver error")
	w := perform(router, "GET", "/tasks/x", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w).Detail)
}

func TestGetTasksPaginated(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := perform(router, "GET", "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	assert.Equal(t, services.DefaultPage, mockService.page)
	assert.Equal(t, services.DefaultLimit, mockService.limit)

	var body struct {
		Data services.TaskListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.Data.Total)
	assert.Len(t, body.Data.Tasks, 2)

	perform(router, "GET", "/tasks?page=3&limit=5", "")
	assert.Equal(t, 3, mockService.page)
	assert.Equal(t, 5, mockService.limit)
}

func TestGetTasksRejectsNonIntegerPaging(t *testing.T) {
	_, router := setupTaskHandler()

	w := perform(router, "GET", "/tasks?page=two&limit=x", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "must be an integer", resp.Errors["page"])
	assert.Equal(t, "must be an integer", resp.Errors["limit"])
}

func TestUpdateTask(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := perform(router, "PATCH", "/tasks/task-1", `{"status":"completed","description":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, "Task successfully updated.", decode(t, w).Detail)

	req := mockService.updated
	require.NotNil(t, req)
	assert.True(t, req.Status.Set)
	assert.Equal(t, models.TaskStatusCompleted, *req.Status.Value)
	assert.True(t, req.Description.IsNull())
	assert.False(t, req.Title.Set)
	assert.False(t, req.DueDate.Set)
}

func TestUpdateTaskDueDate(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := perform(router, "PATCH", "/tasks/task-1", `{"due_date":"2031-06-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockService.updated.DueDate.Value.Equal(time.Date(2031, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDeleteTask(t *testing.T) {
	_, router := setupTaskHandler()

	w := perform(router, "DELETE", "/tasks/task-1", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	assert.Empty(t, w.Body.String())
}

func TestTaskRoutesRequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewTaskHandler(&MockTaskService{})
	router := gin.New()
	router.GET("/tasks", handler.GetTasks)

	w := perform(router, "GET", "/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
