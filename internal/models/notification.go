package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents a message targeted to a specific user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"user_id"`
	Kind      string            `gorm:"size:64;not null" json:"kind"`
	Message   string            `gorm:"type:text" json:"message"`
	Data      datatypes.JSONMap `gorm:"type:json" json:"data"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

const (
	// NotificationKindGrade announces a freshly graded submission.
	NotificationKindGrade = "submission_graded"
	// NotificationKindPayment confirms a completed payment.
	NotificationKindPayment = "payment_confirmed"
	// NotificationKindEnrollment confirms an activated enrollment.
	NotificationKindEnrollment = "enrollment_confirmed"
	// NotificationKindLateSubmission warns about a late hand-in.
	NotificationKindLateSubmission = "late_submission"
)
