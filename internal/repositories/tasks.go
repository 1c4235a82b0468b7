package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskify/backend/internal/models"
)

// Visibility is the storage form of the task access rule: a task is visible
// when it was created by UserID or is assigned to Email.
type Visibility struct {
	UserID string
	Email  string
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

// ListAccessible returns one page of the tasks visible under v together with
// the unpaginated total.
func (r *TaskRepository) ListAccessible(ctx context.Context, v Visibility, offset, limit int) ([]models.Task, int64, error) {
	visible := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.Task{}).
			Where("created_by = ? OR assigned_to = ?", v.UserID, v.Email)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	var tasks []models.Task
	err := visible().
		Order("created_by DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, total, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(task).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", translate(err))
	}
	return nil
}

// Update writes only the named columns of task. A row that vanished since it
// was read yields ErrNotFound rather than being re-inserted.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(task).Select(columns).Updates(task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == ErrNotFound {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", translate(err))
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Task{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err == ErrNotFound {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
