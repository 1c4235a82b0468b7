package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskify/backend/internal/models"
)

type TaskAssignedPayload struct {
	TaskID     string    `json:"task_id"`
	Title      string    `json:"title"`
	AssignedTo string    `json:"assigned_to"`
	CreatedBy  string    `json:"created_by"`
	DueDate    time.Time `json:"due_date"`
}

// QueueNotifier publishes assignment events onto the notifications queue.
type QueueNotifier struct {
	queue *JobQueue
}

func NewQueueNotifier(queue *JobQueue) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) TaskAssigned(ctx context.Context, task *models.Task) error {
	if task.AssignedTo == nil {
		return nil
	}
	_, err := n.queue.Enqueue(ctx, QueueNotifications, JobTypeTaskAssigned, TaskAssignedPayload{
		TaskID:     task.ID,
		Title:      task.Title,
		AssignedTo: *task.AssignedTo,
		CreatedBy:  task.CreatedBy,
		DueDate:    task.DueDate,
	})
	return err
}

// Deliverer sends an assignment notice to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, p TaskAssignedPayload) error
}

// LogDeliverer records notices in the service log. It is the delivery used
// when no outbound channel is configured.
type LogDeliverer struct {
	Logger logrus.FieldLogger
}

func (d LogDeliverer) Deliver(ctx context.Context, p TaskAssignedPayload) error {
	d.Logger.WithFields(logrus.Fields{
		"task_id":     p.TaskID,
		"assigned_to": p.AssignedTo,
		"due_date":    p.DueDate.Format(time.RFC3339),
	}).Infof("task %q assigned", p.Title)
	return nil
}

func TaskAssignedHandler(d Deliverer) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var p TaskAssignedPayload
		if err := job.Decode(&p); err != nil {
			return fmt.Errorf("decode task_assigned payload: %w", err)
		}
		if p.AssignedTo == "" {
			return fmt.Errorf("task_assigned job %s has no recipient", job.ID)
		}
		return d.Deliver(ctx, p)
	}
}
