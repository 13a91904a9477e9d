package dto

import (
	"time"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// SubmissionFileInput describes one uploaded file attached to a submission
// request. The URL is produced by the upload layer before the service runs.
type SubmissionFileInput struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"gte=0"`
	URL  string `json:"url" validate:"required"`
}

// SubmissionCreateRequest creates or upserts a student's submission.
type SubmissionCreateRequest struct {
	AssignmentID uint                  `json:"assignment_id" validate:"required,gt=0"`
	Text         string                `json:"text"`
	Files        []SubmissionFileInput `json:"files" validate:"dive"`
	IsDraft      bool                  `json:"is_draft"`
	Resubmit     bool                  `json:"resubmit"`
}

// SubmissionUpdateRequest edits an existing submission owned by the student.
type SubmissionUpdateRequest struct {
	Text    *string               `json:"text"`
	Files   []SubmissionFileInput `json:"files" validate:"dive"`
	IsDraft bool                  `json:"is_draft"`
}

// SubmissionListQuery narrows submission listings.
type SubmissionListQuery struct {
	Status   *string `query:"status" validate:"omitempty,oneof=draft submitted graded returned resubmitted"`
	CourseID *uint   `query:"course_id"`
	Page     int     `query:"page" validate:"gte=0"`
	Limit    int     `query:"limit" validate:"gte=0,lte=100"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID                uint                    `json:"id"`
	AssignmentID      uint                    `json:"assignment_id"`
	StudentID         uint                    `json:"student_id"`
	SubmissionText    string                  `json:"submission_text"`
	Files             []models.SubmissionFile `json:"files"`
	Status            string                  `json:"status"`
	IsLate            bool                    `json:"is_late"`
	DaysLate          int                     `json:"days_late"`
	SubmittedAt       *time.Time              `json:"submitted_at"`
	Grade             *float64                `json:"grade"`
	OriginalScore     *float64                `json:"original_score"`
	FinalScore        *float64                `json:"final_score"`
	Feedback          string                  `json:"feedback"`
	GradedAt          *time.Time              `json:"graded_at"`
	GradedBy          *uint                   `json:"graded_by"`
	ResubmissionCount int                     `json:"resubmission_count"`
	LastResubmittedAt *time.Time              `json:"last_resubmitted_at"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	Assignment        AssignmentLite          `json:"assignment"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"course_id"`
	Title       string    `json:"title"`
	DueDate     time.Time `json:"due_date"`
	TotalPoints float64   `json:"total_points"`
}

// SubmissionResult carries a submission plus non-fatal warnings raised while
// processing it (late hand-in notices and similar).
type SubmissionResult struct {
	Submission SubmissionResponse `json:"submission"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// SubmissionPage wraps a paginated submission listing.
type SubmissionPage struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
}

// NewSubmissionResponse converts a submission model into a DTO, decoding the
// stored file list.
func NewSubmissionResponse(model models.AssignmentSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:                model.ID,
		AssignmentID:      model.AssignmentID,
		StudentID:         model.StudentID,
		SubmissionText:    model.SubmissionText,
		Files:             model.FileList(),
		Status:            model.Status,
		IsLate:            model.IsLate,
		DaysLate:          model.DaysLate,
		SubmittedAt:       model.SubmittedAt,
		Grade:             model.Grade,
		OriginalScore:     model.OriginalScore,
		FinalScore:        model.FinalScore,
		Feedback:          model.Feedback,
		GradedAt:          model.GradedAt,
		GradedBy:          model.GradedBy,
		ResubmissionCount: model.ResubmissionCount,
		LastResubmittedAt: model.LastResubmittedAt,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		Assignment: AssignmentLite{
			ID:          model.Assignment.ID,
			CourseID:    model.Assignment.CourseID,
			Title:       model.Assignment.Title,
			DueDate:     model.Assignment.DueDate,
			TotalPoints: model.Assignment.TotalPoints,
		},
	}
}

// NewSubmissionResponseSlice maps a slice of submission models to DTOs.
func NewSubmissionResponseSlice(submissions []models.AssignmentSubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
