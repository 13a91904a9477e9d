package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
)

// TestLateSubmissionFlowAppliesPenaltyOnGrade walks a submission from the
// student hand-in through instructor grading: a hand-in two days past the
// deadline of an assignment with a 5%/day penalty keeps the raw 80 as the
// original score and lands at 72.
func TestLateSubmissionFlowAppliesPenaltyOnGrade(t *testing.T) {
	ctx := context.Background()
	db, repos, txm := openServiceDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	notifier := &recordingNotifier{}

	submissionSvc := NewSubmissionService(repos.Submissions, repos.Assignments, repos.Enrollments, txm, validate, notifier, testLogger())
	gradingSvc := NewGradingService(repos.Submissions, repos.Assignments, txm, validate, notifier, nil, time.Minute, testLogger())

	require.NoError(t, db.Create(&models.Course{ID: 2, Title: "Go Basics", InstructorID: 3, Price: 3000}).Error)
	require.NoError(t, db.Create(&models.Enrollment{UserID: 7, CourseID: 2, Status: models.EnrollmentStatusActive}).Error)
	require.NoError(t, db.Create(&models.Assignment{
		ID:                  1,
		CourseID:            2,
		InstructorID:        3,
		Title:               "Essay",
		DueDate:             time.Now().Add(-36 * time.Hour),
		TotalPoints:         100,
		AllowLateSubmission: true,
		LatePenalty:         floatPtr(5),
		IsPublished:         true,
	}).Error)

	created, err := submissionSvc.Create(ctx, 7, dto.SubmissionCreateRequest{
		AssignmentID: 1,
		Text:         "better late than never",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, created.Submission.Status)
	require.True(t, created.Submission.IsLate)
	require.Equal(t, 2, created.Submission.DaysLate)
	require.NotEmpty(t, created.Warnings)

	graded, err := gradingSvc.Grade(ctx, created.Submission.ID, dto.GradeRequest{Grade: 80, Feedback: "solid, but late"}, 3)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, graded.Submission.Status)
	require.NotNil(t, graded.Submission.OriginalScore)
	require.Equal(t, 80.0, *graded.Submission.OriginalScore)
	require.NotNil(t, graded.Submission.FinalScore)
	require.InDelta(t, 72.0, *graded.Submission.FinalScore, 1e-9, "5%/day for 2 days removes 8 of 80 points")

	stored, err := repos.Submissions.GetByID(ctx, created.Submission.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FinalScore)
	require.InDelta(t, 72.0, *stored.FinalScore, 1e-9)

	history, err := repos.Submissions.ListHistory(ctx, created.Submission.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].PreviousGrade)
	require.InDelta(t, 72.0, history[0].NewGrade, 1e-9)
	require.Equal(t, uint(3), history[0].GradedBy)
}
