package models

import "time"

// Enrollment links a user to a course they are taking. Unique per user/course.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	Status    string    `gorm:"size:32;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Course    Course    `gorm:"foreignKey:CourseID" json:"course"`
}

const (
	// EnrollmentStatusActive indicates the learner currently has course access.
	EnrollmentStatusActive = "active"
	// EnrollmentStatusSuspended indicates access has been paused.
	EnrollmentStatusSuspended = "suspended"
	// EnrollmentStatusCompleted indicates the learner finished the course.
	EnrollmentStatusCompleted = "completed"
)

// IsActive reports whether the enrollment grants course access.
func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}
