package services

import (
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
)

// CanAccess reports whether user may read, update or delete task: it must be
// the task's creator or the owner of the assigned email.
func CanAccess(task *models.Task, user models.CurrentUser) bool {
	if task == nil {
		return false
	}
	if task.CreatedBy == user.ID {
		return true
	}
	return task.AssignedTo != nil && *task.AssignedTo == user.Email
}

// AccessibleBy is CanAccess expressed as a storage filter for listing.
func AccessibleBy(user models.CurrentUser) repositories.Visibility {
	return repositories.Visibility{UserID: user.ID, Email: user.Email}
}
