package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Assignment is a graded task published inside a course.
type Assignment struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	CourseID            uint           `gorm:"index;not null" json:"course_id"`
	InstructorID        uint           `gorm:"index;not null" json:"instructor_id"`
	Title               string         `gorm:"size:255;not null" json:"title"`
	Description         string         `gorm:"type:text" json:"description"`
	DueDate             time.Time      `gorm:"not null" json:"due_date"`
	TotalPoints         float64        `gorm:"type:numeric(8,2);not null;default:100" json:"total_points"`
	MaxFileSizeMB       int64          `gorm:"not null;default:10" json:"max_file_size_mb"`
	AllowedFormats      datatypes.JSON `gorm:"type:json" json:"allowed_formats"`
	MaxFiles            int            `gorm:"not null;default:5" json:"max_files"`
	AllowLateSubmission bool           `gorm:"not null;default:false" json:"allow_late_submission"`
	LatePenalty         *float64       `gorm:"type:numeric(5,2)" json:"late_penalty"`
	SubmissionCount     int            `gorm:"not null;default:0" json:"submission_count"`
	GradedCount         int            `gorm:"not null;default:0" json:"graded_count"`
	IsPublished         bool           `gorm:"not null;default:false" json:"is_published"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Course              Course         `gorm:"foreignKey:CourseID" json:"course"`
}

// IsPastDue reports whether the given instant is past the deadline.
func (a Assignment) IsPastDue(now time.Time) bool {
	return now.After(a.DueDate)
}

// Formats decodes the allowed file extensions. An empty list means any
// format is accepted.
func (a Assignment) Formats() []string {
	if len(a.AllowedFormats) == 0 {
		return nil
	}

	var formats []string
	if err := json.Unmarshal(a.AllowedFormats, &formats); err != nil {
		return nil
	}

	return formats
}

// MaxFileSizeBytes converts the configured per-file limit to bytes.
func (a Assignment) MaxFileSizeBytes() int64 {
	if a.MaxFileSizeMB <= 0 {
		return 0
	}

	return a.MaxFileSizeMB * 1024 * 1024
}
