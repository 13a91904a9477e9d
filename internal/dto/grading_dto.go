package dto

import (
	"time"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// GradeRequest carries one grading decision.
type GradeRequest struct {
	Grade           float64 `json:"grade" validate:"gte=0"`
	Feedback        string  `json:"feedback"`
	ReturnToStudent bool    `json:"return_to_student"`
}

// CalculatedGrade explains how the final score was derived.
type CalculatedGrade struct {
	OriginalScore   float64 `json:"original_score"`
	PenaltyFraction float64 `json:"penalty_fraction"`
	PenaltyAmount   float64 `json:"penalty_amount"`
	FinalScore      float64 `json:"final_score"`
	IsLate          bool    `json:"is_late"`
	DaysLate        int     `json:"days_late"`
}

// GradeValidationResult collects every problem and advisory raised while
// validating a grade, so the caller sees all of them at once.
type GradeValidationResult struct {
	Valid      bool            `json:"valid"`
	Errors     []string        `json:"errors,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	Calculated CalculatedGrade `json:"calculated"`
}

// GradeResult is returned after a grade is applied, carrying the validation
// outcome so warnings survive a successful call.
type GradeResult struct {
	Submission SubmissionResponse    `json:"submission"`
	Validation GradeValidationResult `json:"validation"`
}

// BulkGradeRequest applies the same grade and feedback to many submissions.
type BulkGradeRequest struct {
	SubmissionIDs   []uint  `json:"submission_ids" validate:"required,min=1,dive,gt=0"`
	Grade           float64 `json:"grade" validate:"gte=0"`
	Feedback        string  `json:"feedback"`
	ReturnToStudent bool    `json:"return_to_student"`
}

// BulkGradeFailure records why one submission in a batch could not be graded.
type BulkGradeFailure struct {
	SubmissionID uint   `json:"submission_id"`
	Error        string `json:"error"`
}

// BulkGradeResult reports per-item outcomes for a bulk grading call.
type BulkGradeResult struct {
	Successes []GradeResult      `json:"successes"`
	Failures  []BulkGradeFailure `json:"failures"`
}

// GradeDistributionBucket is one slice of the grade distribution.
type GradeDistributionBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// GradeStatistics aggregates graded submissions for one assignment.
type GradeStatistics struct {
	AssignmentID     uint                      `json:"assignment_id"`
	TotalSubmissions int64                     `json:"total_submissions"`
	GradedCount      int                       `json:"graded_count"`
	Average          float64                   `json:"average"`
	Min              float64                   `json:"min"`
	Max              float64                   `json:"max"`
	Distribution     []GradeDistributionBucket `json:"distribution"`
}

// GradingHistoryResponse serializes one grading history entry.
type GradingHistoryResponse struct {
	ID               uint      `json:"id"`
	SubmissionID     uint      `json:"submission_id"`
	PreviousGrade    *float64  `json:"previous_grade"`
	NewGrade         float64   `json:"new_grade"`
	PreviousFeedback string    `json:"previous_feedback"`
	NewFeedback      string    `json:"new_feedback"`
	GradedBy         uint      `json:"graded_by"`
	GradedAt         time.Time `json:"graded_at"`
	Reason           string    `json:"reason"`
}

// NewGradingHistoryResponse converts a history model into a DTO.
func NewGradingHistoryResponse(model models.GradingHistory) GradingHistoryResponse {
	return GradingHistoryResponse{
		ID:               model.ID,
		SubmissionID:     model.SubmissionID,
		PreviousGrade:    model.PreviousGrade,
		NewGrade:         model.NewGrade,
		PreviousFeedback: model.PreviousFeedback,
		NewFeedback:      model.NewFeedback,
		GradedBy:         model.GradedBy,
		GradedAt:         model.GradedAt,
		Reason:           model.Reason,
	}
}

// NewGradingHistoryResponseSlice maps history models to DTOs.
func NewGradingHistoryResponseSlice(entries []models.GradingHistory) []GradingHistoryResponse {
	responses := make([]GradingHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewGradingHistoryResponse(entry))
	}

	return responses
}
