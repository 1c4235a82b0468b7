package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is visible to its creator (CreatedBy) and to whoever owns the email in
// AssignedTo. AssignedTo is deliberately not a foreign key: tasks may be
// assigned to addresses that have no account.
type Task struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	Title       string        `json:"title" gorm:"not null"`
	Description *string       `json:"description"`
	DueDate     time.Time     `json:"due_date" gorm:"not null"`
	Status      TaskStatus    `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Priority    *TaskPriority `json:"priority" gorm:"type:varchar(10)"`
	CreatedBy   string        `json:"created_by" gorm:"size:36;not null;index"`
	AssignedTo  *string       `json:"assigned_to" gorm:"index"`
	Tags        []string      `json:"tags" gorm:"serializer:json"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id.String()
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	return nil
}
