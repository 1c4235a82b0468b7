package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       string  `json:"id" gorm:"primaryKey;size:36"`
	Email    string  `json:"email" gorm:"uniqueIndex;not null"`
	Username *string `json:"username" gorm:"uniqueIndex;size:70"`
	Password *string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id.String()
	}
	return nil
}

// Identity returns the subset of the user the task policy works with.
func (u *User) Identity() CurrentUser {
	return CurrentUser{ID: u.ID, Email: u.Email}
}

func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

// NormalizeEmail is the canonical form of every stored address, account
// emails and task assignees alike, so the two compare with plain equality.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CurrentUser is an already-authenticated requester.
type CurrentUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
