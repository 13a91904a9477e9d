package models

import "time"

// User represents an account that can enrol in courses or teach them.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// RoleStudent identifies learners.
	RoleStudent = "student"
	// RoleInstructor identifies course owners.
	RoleInstructor = "instructor"
	// RoleAdmin identifies platform administrators.
	RoleAdmin = "admin"
)
