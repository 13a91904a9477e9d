package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AssignmentSubmission is a student's hand-in for one assignment. The unique
// index enforces at most one row per student and assignment; resubmissions
// update the row in place.
type AssignmentSubmission struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	AssignmentID      uint           `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID         uint           `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"student_id"`
	SubmissionText    string         `gorm:"type:text" json:"submission_text"`
	Files             datatypes.JSON `gorm:"type:json" json:"files"`
	Status            string         `gorm:"size:32;not null;default:draft" json:"status"`
	IsLate            bool           `gorm:"not null;default:false" json:"is_late"`
	DaysLate          int            `gorm:"not null;default:0" json:"days_late"`
	SubmittedAt       *time.Time     `json:"submitted_at"`
	Grade             *float64       `gorm:"type:numeric(8,2)" json:"grade"`
	OriginalScore     *float64       `gorm:"type:numeric(8,2)" json:"original_score"`
	FinalScore        *float64       `gorm:"type:numeric(8,2)" json:"final_score"`
	Feedback          string         `gorm:"type:text" json:"feedback"`
	GradedAt          *time.Time     `json:"graded_at"`
	GradedBy          *uint          `json:"graded_by"`
	ResubmissionCount int            `gorm:"not null;default:0" json:"resubmission_count"`
	LastResubmittedAt *time.Time     `json:"last_resubmitted_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Assignment        Assignment     `gorm:"foreignKey:AssignmentID" json:"assignment"`
	Student           User           `gorm:"foreignKey:StudentID" json:"student"`
}

const (
	// SubmissionStatusDraft indicates work in progress, invisible to grading.
	SubmissionStatusDraft = "draft"
	// SubmissionStatusSubmitted indicates the hand-in awaits grading.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates a grade has been applied.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusReturned indicates the graded work went back to the student.
	SubmissionStatusReturned = "returned"
	// SubmissionStatusResubmitted marks rows migrated from systems that
	// tracked resubmission as a distinct status.
	SubmissionStatusResubmitted = "resubmitted"
)

// SubmissionFile describes one uploaded file attached to a submission.
type SubmissionFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// IsGraded reports whether a grade is locked in, freezing student edits.
func (s AssignmentSubmission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusReturned
}

// FileList decodes the stored file descriptors.
func (s AssignmentSubmission) FileList() []SubmissionFile {
	if len(s.Files) == 0 {
		return nil
	}

	var files []SubmissionFile
	if err := json.Unmarshal(s.Files, &files); err != nil {
		return nil
	}

	return files
}

// SetFileList encodes the file descriptors into the JSON column.
func (s *AssignmentSubmission) SetFileList(files []SubmissionFile) error {
	if files == nil {
		s.Files = nil
		return nil
	}

	payload, err := json.Marshal(files)
	if err != nil {
		return err
	}

	s.Files = payload
	return nil
}

// EffectiveScore returns the score that counts: the penalty-adjusted final
// score when present, otherwise the raw grade.
func (s AssignmentSubmission) EffectiveScore() *float64 {
	if s.FinalScore != nil {
		return s.FinalScore
	}

	return s.Grade
}

// GradingHistory is one audit entry recording a grade change.
type GradingHistory struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SubmissionID     uint      `gorm:"index;not null" json:"submission_id"`
	PreviousGrade    *float64  `gorm:"type:numeric(8,2)" json:"previous_grade"`
	NewGrade         float64   `gorm:"type:numeric(8,2);not null" json:"new_grade"`
	PreviousFeedback string    `gorm:"type:text" json:"previous_feedback"`
	NewFeedback      string    `gorm:"type:text" json:"new_feedback"`
	GradedBy         uint      `gorm:"index;not null" json:"graded_by"`
	GradedAt         time.Time `gorm:"not null" json:"graded_at"`
	Reason           string    `gorm:"type:text" json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
}
