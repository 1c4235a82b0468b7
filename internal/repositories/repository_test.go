package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskify/backend/internal/database"
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo *repositories.UserRepository, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func newTask(title string, createdBy string) *models.Task {
	return &models.Task{
		Title:     title,
		DueDate:   time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy: createdBy,
	}
}

func strPtr(s string) *string { return &s }
