package users

import (
	"time"

	"github.com/otesta/otesta-backend/pkg/enums"
)

// User is one account row.
type User struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex" json:"email"`
	FullName     string         `json:"full_name"`
	Role         enums.UserRole `json:"role"`
	PasswordHash string         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Profile is the public view of an account.
type Profile struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	FullName string         `json:"full_name"`
	Role     enums.UserRole `json:"role"`
}

func (u User) profile() Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}
