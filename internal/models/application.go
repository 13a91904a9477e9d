package models

import (
	"time"

	"gorm.io/datatypes"
)

// Application is a course application submitted by a prospective student.
type Application struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	CourseID  uint           `gorm:"index;not null" json:"course_id"`
	Status    string         `gorm:"size:32;not null" json:"status"`
	FormData  datatypes.JSON `gorm:"type:json" json:"form_data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Course    Course         `gorm:"foreignKey:CourseID" json:"course"`
}

const (
	// ApplicationStatusDraft indicates the application has not been handed in.
	ApplicationStatusDraft = "draft"
	// ApplicationStatusUnderReview indicates the fee was paid and review started.
	ApplicationStatusUnderReview = "under_review"
	// ApplicationStatusApproved indicates the application was accepted.
	ApplicationStatusApproved = "approved"
	// ApplicationStatusRejected indicates the application was declined.
	ApplicationStatusRejected = "rejected"
)

// ApplicationDraft stores unfinished application form data keyed by user and
// course. Promoted to a real Application once the fee is paid.
type ApplicationDraft struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_draft_user_course" json:"user_id"`
	CourseID  uint           `gorm:"not null;uniqueIndex:idx_draft_user_course" json:"course_id"`
	FormData  datatypes.JSON `gorm:"type:json" json:"form_data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
