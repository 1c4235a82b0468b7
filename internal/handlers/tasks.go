package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/middleware"
	"taskify/backend/internal/models"
	"taskify/backend/internal/services"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), req, user)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Task successfully created.", task)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	fields := map[string]string{}
	page := queryInt(c, "page", services.DefaultPage, fields)
	limit := queryInt(c, "limit", services.DefaultLimit, fields)
	if len(fields) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{
			StatusCode: http.StatusUnprocessableEntity,
			Detail:     "Validation failed",
			Errors:     fields,
		})
		return
	}

	result, err := h.taskService.ListTasks(c.Request.Context(), user, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Tasks retrieved successfully.", result)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Task details retrieved successfully.", task)
}

// UpdateTask serves both PATCH and PUT; either way only the fields present
// in the body change.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), c.Param("id"), user, req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Task successfully updated.", task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), c.Param("id"), user); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func requester(c *gin.Context) (models.CurrentUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			StatusCode: http.StatusUnauthorized,
			Detail:     "User not authenticated",
		})
	}
	return user, ok
}

func queryInt(c *gin.Context, name string, def int, fields map[string]string) int {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields[name] = "must be an integer"
		return def
	}
	return v
}
