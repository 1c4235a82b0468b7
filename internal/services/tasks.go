package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"taskify/backend/internal/logging"
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

var fieldValidator = validator.New()

type TaskStore interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListAccessible(ctx context.Context, v repositories.Visibility, offset, limit int) ([]models.Task, int64, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task, columns []string) error
	Delete(ctx context.Context, id string) error
}

// Notifier is told about assignments after they are committed.
type Notifier interface {
	TaskAssigned(ctx context.Context, task *models.Task) error
}

type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest, user models.CurrentUser) (*models.Task, error)
	GetTask(ctx context.Context, id string, user models.CurrentUser) (*models.Task, error)
	ListTasks(ctx context.Context, user models.CurrentUser, page, limit int) (*TaskListResult, error)
	UpdateTask(ctx context.Context, id string, user models.CurrentUser, req UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, id string, user models.CurrentUser) error
}

type CreateTaskRequest struct {
	Title       string               `json:"title" binding:"required"`
	Description *string              `json:"description"`
	DueDate     *time.Time           `json:"due_date" binding:"required"`
	Status      *models.TaskStatus   `json:"status" binding:"omitempty,task_status"`
	Priority    *models.TaskPriority `json:"priority" binding:"omitempty,task_priority"`
	AssignedTo  *string              `json:"assigned_to" binding:"omitempty,email"`
	Tags        []string             `json:"tags"`

	// CreatedBy is accepted and ignored; the creator is always the requester.
	CreatedBy string `json:"created_by,omitempty"`
}

func (r *CreateTaskRequest) normalize() {
	if r.AssignedTo != nil {
		assignee := models.NormalizeEmail(*r.AssignedTo)
		r.AssignedTo = &assignee
	}
}

func (r *CreateTaskRequest) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Title) == "" {
		fields["title"] = "is required"
	}
	if r.DueDate == nil || r.DueDate.IsZero() {
		fields["due_date"] = "is required"
	}
	if r.Status != nil {
		checkStatus(fields, *r.Status)
	}
	if r.Priority != nil {
		checkPriority(fields, *r.Priority)
	}
	if r.AssignedTo != nil {
		checkEmail(fields, "assigned_to", *r.AssignedTo)
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

// UpdateTaskRequest is a partial update. Absent fields are left alone and
// explicit nulls clear nullable fields.
type UpdateTaskRequest struct {
	Title       models.Optional[string]              `json:"title"`
	Description models.Optional[string]              `json:"description"`
	DueDate     models.Optional[time.Time]           `json:"due_date"`
	Status      models.Optional[models.TaskStatus]   `json:"status"`
	Priority    models.Optional[models.TaskPriority] `json:"priority"`
	AssignedTo  models.Optional[string]              `json:"assigned_to"`
	Tags        models.Optional[[]string]            `json:"tags"`
}

func (r *UpdateTaskRequest) normalize() {
	if r.AssignedTo.Set && r.AssignedTo.Value != nil {
		assignee := models.NormalizeEmail(*r.AssignedTo.Value)
		r.AssignedTo.Value = &assignee
	}
}

func (r *UpdateTaskRequest) Validate() error {
	fields := map[string]string{}
	if r.Title.Set && (r.Title.Value == nil || strings.TrimSpace(*r.Title.Value) == "") {
		fields["title"] = "must not be empty"
	}
	if r.DueDate.Set && (r.DueDate.Value == nil || r.DueDate.Value.IsZero()) {
		fields["due_date"] = "must not be null"
	}
	if r.Status.Set {
		if r.Status.Value == nil {
			fields["status"] = "must not be null"
		} else {
			checkStatus(fields, *r.Status.Value)
		}
	}
	if r.Priority.Set && r.Priority.Value != nil {
		checkPriority(fields, *r.Priority.Value)
	}
	if r.AssignedTo.Set && r.AssignedTo.Value != nil {
		checkEmail(fields, "assigned_to", *r.AssignedTo.Value)
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

// apply merges the present fields into task and returns the columns touched.
func (r *UpdateTaskRequest) apply(task *models.Task) []string {
	var columns []string
	if r.Title.Set {
		task.Title = *r.Title.Value
		columns = append(columns, "title")
	}
	if r.Description.Set {
		task.Description = r.Description.Value
		columns = append(columns, "description")
	}
	if r.DueDate.Set {
		task.DueDate = *r.DueDate.Value
		columns = append(columns, "due_date")
	}
	if r.Status.Set {
		task.Status = *r.Status.Value
		columns = append(columns, "status")
	}
	if r.Priority.Set {
		task.Priority = r.Priority.Value
		columns = append(columns, "priority")
	}
	if r.AssignedTo.Set {
		task.AssignedTo = r.AssignedTo.Value
		columns = append(columns, "assigned_to")
	}
	if r.Tags.Set {
		if r.Tags.Value == nil {
			task.Tags = nil
		} else {
			task.Tags = *r.Tags.Value
		}
		columns = append(columns, "tags")
	}
	return columns
}

type TaskListResult struct {
	Tasks      []models.Task `json:"tasks"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

type TaskServiceImpl struct {
	store    TaskStore
	notifier Notifier
	logger   logrus.FieldLogger
}

func NewTaskService(store TaskStore, notifier Notifier, logger logrus.FieldLogger) *TaskServiceImpl {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TaskServiceImpl{store: store, notifier: notifier, logger: logger}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, req CreateTaskRequest, user models.CurrentUser) (*models.Task, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     *req.DueDate,
		Status:      models.TaskStatusPending,
		Priority:    req.Priority,
		CreatedBy:   user.ID,
		AssignedTo:  req.AssignedTo,
		Tags:        req.Tags,
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	if err := s.store.Create(ctx, task); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to create task")
		return nil, newError(ErrPersistence, "Failed to create task", err)
	}

	s.logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": user.ID}).Info("task created")
	if task.AssignedTo != nil {
		s.notifyAssigned(ctx, task)
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id string, user models.CurrentUser) (*models.Task, error) {
	return s.loadAccessible(ctx, id, user)
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, user models.CurrentUser, page, limit int) (*TaskListResult, error) {
	fields := map[string]string{}
	if page < 1 {
		fields["page"] = "must be at least 1"
	}
	if limit < 1 {
		fields["limit"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	tasks, total, err := s.store.ListAccessible(ctx, AccessibleBy(user), pageOffset(page, limit), limit)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to list tasks")
		return nil, newError(ErrPersistence, "Failed to fetch tasks", err)
	}

	return &TaskListResult{
		Tasks:      tasks,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// pageOffset is (page-1)*limit, saturating at math.MaxInt so a page beyond
// any addressable row reads as empty instead of wrapping negative.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func totalPages(total int64, limit int) int {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return int(pages)
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id string, user models.CurrentUser, req UpdateTaskRequest) (*models.Task, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task, err := s.loadAccessible(ctx, id, user)
	if err != nil {
		return nil, err
	}

	previousAssignee := task.AssignedTo
	columns := req.apply(task)
	if len(columns) == 0 {
		return task, nil
	}
	task.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	if err := s.store.Update(ctx, task, columns); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "Task not found", nil)
		}
		s.logger.WithError(err).WithField("task_id", id).Error("failed to update task")
		return nil, newError(ErrPersistence, "Failed to update task", err)
	}

	s.logger.WithFields(logrus.Fields{"task_id": id, "user_id": user.ID, "columns": columns}).Info("task updated")
	if assigneeChanged(previousAssignee, task.AssignedTo) {
		s.notifyAssigned(ctx, task)
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id string, user models.CurrentUser) error {
	if _, err := s.loadAccessible(ctx, id, user); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrNotFound, "Task not found", nil)
		}
		s.logger.WithError(err).WithField("task_id", id).Error("failed to delete task")
		return newError(ErrPersistence, "Failed to delete task", err)
	}

	s.logger.WithFields(logrus.Fields{"task_id": id, "user_id": user.ID}).Info("task deleted")
	return nil
}

// loadAccessible reads the task and applies CanAccess to the fresh row.
// Inaccessible tasks are reported as forbidden on every path.
func (s *TaskServiceImpl) loadAccessible(ctx context.Context, id string, user models.CurrentUser) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "Task not found", nil)
		}
		s.logger.WithError(err).WithField("task_id", id).Error("failed to load task")
		return nil, newError(ErrPersistence, "Failed to fetch task", err)
	}
	if !CanAccess(task, user) {
		s.logger.WithFields(logrus.Fields{"task_id": id, "user_id": user.ID}).Warn("task access denied")
		return nil, newError(ErrForbidden, "You do not have access to this task", nil)
	}
	return task, nil
}

func (s *TaskServiceImpl) notifyAssigned(ctx context.Context, task *models.Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TaskAssigned(ctx, task); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Warn("failed to queue assignment notification")
	}
}

func assigneeChanged(before, after *string) bool {
	if after == nil {
		return false
	}
	return before == nil || *before != *after
}

func checkStatus(fields map[string]string, status models.TaskStatus) {
	if !status.Valid() {
		fields["status"] = "must be one of: pending, in-progress, completed"
	}
}

func checkPriority(fields map[string]string, priority models.TaskPriority) {
	if !priority.Valid() {
		fields["priority"] = "must be one of: low, medium, high"
	}
}

func checkEmail(fields map[string]string, name, value string) {
	if err := fieldValidator.Var(value, "required,email"); err != nil {
		fields[name] = "must be a valid email"
	}
}
