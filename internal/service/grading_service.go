package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/observability"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

const (
	feedbackWarningLength = 2000
	swingWarningFraction  = 0.2
	statsCacheKeyFormat   = "eduflow:stats:assignment:%d"
)

// GradingService validates and applies grades, maintains the grading audit
// trail and aggregates per-assignment statistics.
type GradingService interface {
	ValidateGrade(ctx context.Context, submissionID uint, payload dto.GradeRequest, instructorID uint) (dto.GradeValidationResult, error)
	Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, instructorID uint) (dto.GradeResult, error)
	BulkGrade(ctx context.Context, payload dto.BulkGradeRequest, instructorID uint) (dto.BulkGradeResult, error)
	GetHistory(ctx context.Context, submissionID uint, actor Actor) ([]dto.GradingHistoryResponse, error)
	GetAssignmentStatistics(ctx context.Context, assignmentID uint) (dto.GradeStatistics, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	txm         repository.TxManager
	validator   *validator.Validate
	notifier    Notifier
	redis       *redis.Client
	statsTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service. The redis client is
// optional and only used to cache assignment statistics.
func NewGradingService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	txm repository.TxManager,
	validate *validator.Validate,
	notifier Notifier,
	redisClient *redis.Client,
	statsTTL time.Duration,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions: submissions,
		assignments: assignments,
		txm:         txm,
		validator:   validate,
		notifier:    notifier,
		redis:       redisClient,
		statsTTL:    statsTTL,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) ValidateGrade(ctx context.Context, submissionID uint, payload dto.GradeRequest, instructorID uint) (dto.GradeValidationResult, error) {
	submission, err := s.loadForInstructor(ctx, submissionID, instructorID)
	if err != nil {
		return dto.GradeValidationResult{}, err
	}

	return s.validateAgainst(submission, payload), nil
}

func (s *gradingService) loadForInstructor(ctx context.Context, submissionID, instructorID uint) (models.AssignmentSubmission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssignmentSubmission{}, ErrSubmissionNotFound
		}
		return models.AssignmentSubmission{}, err
	}

	if !ownsAssignment(submission.Assignment, Actor{ID: instructorID, Role: models.RoleInstructor}) {
		return models.AssignmentSubmission{}, ErrAccessDenied
	}

	return submission, nil
}

// validateAgainst collects every validation problem and advisory for one
// grading decision. It never short-circuits: the caller sees the full list.
func (s *gradingService) validateAgainst(submission models.AssignmentSubmission, payload dto.GradeRequest) dto.GradeValidationResult {
	assignment := submission.Assignment
	totalPoints := assignment.TotalPoints
	if totalPoints <= 0 {
		totalPoints = 100
	}

	result := dto.GradeValidationResult{Valid: true}

	if payload.Grade < 0 || payload.Grade > totalPoints {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("grade must be between 0 and %g", totalPoints))
	}

	calculated := dto.CalculatedGrade{
		OriginalScore: payload.Grade,
		FinalScore:    payload.Grade,
		IsLate:        submission.IsLate,
		DaysLate:      submission.DaysLate,
	}

	penalty := assignment.LatePenalty
	if submission.IsLate && submission.DaysLate > 0 && penalty != nil && *penalty > 0 {
		calculated.PenaltyFraction = (*penalty / 100) * float64(submission.DaysLate)
		calculated.PenaltyAmount = payload.Grade * calculated.PenaltyFraction
		calculated.FinalScore = math.Max(0, payload.Grade-calculated.PenaltyAmount)
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"late penalty applied: %g%% per day for %d day(s) reduces the grade by %.2f points",
			*penalty, submission.DaysLate, calculated.PenaltyAmount))
	}

	if previous := submission.EffectiveScore(); previous != nil {
		if math.Abs(calculated.FinalScore-*previous)/totalPoints > swingWarningFraction {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"new grade %.2f differs from the previous grade %.2f by more than 20%% of total points",
				calculated.FinalScore, *previous))
		}
	}

	if len(payload.Feedback) > feedbackWarningLength {
		result.Warnings = append(result.Warnings, fmt.Sprintf("feedback is longer than %d characters", feedbackWarningLength))
	}

	result.Calculated = calculated
	return result
}

func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeRequest, instructorID uint) (dto.GradeResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/eduflow-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.apply")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.instructor_id", int64(instructorID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResult{}, err
	}

	submission, err := s.loadForInstructor(ctx, submissionID, instructorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.GradeResult{}, err
	}

	validation := s.validateAgainst(submission, payload)
	if !validation.Valid {
		err := &ValidationError{Problems: validation.Errors}
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_invalid")
		observability.GradingsTotal().WithLabelValues("invalid").Inc()
		return dto.GradeResult{}, err
	}

	previousGrade := submission.EffectiveScore()
	previousFeedback := submission.Feedback
	wasGraded := submission.IsGraded()

	finalScore := validation.Calculated.FinalScore
	submission.Grade = &finalScore
	if validation.Calculated.IsLate && validation.Calculated.PenaltyFraction > 0 {
		original := validation.Calculated.OriginalScore
		submission.OriginalScore = &original
		submission.FinalScore = &finalScore
	} else {
		// Only penalty-affected grades populate the score pair; a nil pair
		// means the grade was never touched by a penalty.
		submission.OriginalScore = nil
		submission.FinalScore = nil
	}

	submission.Feedback = strings.TrimSpace(payload.Feedback)
	if payload.ReturnToStudent {
		submission.Status = models.SubmissionStatusReturned
	} else {
		submission.Status = models.SubmissionStatusGraded
	}

	gradedAt := s.now()
	submission.GradedAt = &gradedAt
	gradedBy := instructorID
	submission.GradedBy = &gradedBy

	err = s.txm.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Submissions.Update(ctx, &submission); err != nil {
			return err
		}
		if !wasGraded {
			return tx.Assignments.IncrementGradedCount(ctx, submission.AssignmentID)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_write_failed")
		observability.GradingsTotal().WithLabelValues("error").Inc()
		return dto.GradeResult{}, err
	}

	history := models.GradingHistory{
		SubmissionID:     submission.ID,
		PreviousGrade:    previousGrade,
		NewGrade:         finalScore,
		PreviousFeedback: previousFeedback,
		NewFeedback:      submission.Feedback,
		GradedBy:         instructorID,
		GradedAt:         gradedAt,
		Reason:           strings.Join(validation.Warnings, "; "),
	}
	if err := s.submissions.CreateHistory(ctx, &history); err != nil {
		// The grade is already committed; losing the audit entry is logged
		// but never unwinds the grading itself.
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist grading history")
		span.RecordError(err)
	}

	if s.notifier != nil {
		message := fmt.Sprintf("Your submission for %q was graded: %.2f/%g", submission.Assignment.Title, finalScore, submission.Assignment.TotalPoints)
		s.notifier.Notify(ctx, submission.StudentID, models.NotificationKindGrade, message, map[string]interface{}{
			"submission_id": submission.ID,
			"assignment_id": submission.AssignmentID,
			"grade":         finalScore,
		})
	}

	s.invalidateStats(ctx, submission.AssignmentID)
	observability.GradingsTotal().WithLabelValues("graded").Inc()
	span.SetAttributes(
		attribute.Float64("grading.final_score", finalScore),
		attribute.String("grading.status", submission.Status),
	)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Float64("final_score", finalScore).
		Bool("late_penalty", submission.OriginalScore != nil).
		Msg("submission graded")

	return dto.GradeResult{
		Submission: dto.NewSubmissionResponse(submission),
		Validation: validation,
	}, nil
}

// BulkGrade grades every submission independently. A failure on one never
// aborts the batch; callers receive both outcome lists.
func (s *gradingService) BulkGrade(ctx context.Context, payload dto.BulkGradeRequest, instructorID uint) (dto.BulkGradeResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BulkGradeResult{}, err
	}

	request := dto.GradeRequest{
		Grade:           payload.Grade,
		Feedback:        payload.Feedback,
		ReturnToStudent: payload.ReturnToStudent,
	}

	result := dto.BulkGradeResult{
		Successes: make([]dto.GradeResult, 0, len(payload.SubmissionIDs)),
		Failures:  make([]dto.BulkGradeFailure, 0),
	}

	for _, submissionID := range payload.SubmissionIDs {
		graded, err := s.Grade(ctx, submissionID, request, instructorID)
		if err != nil {
			result.Failures = append(result.Failures, dto.BulkGradeFailure{
				SubmissionID: submissionID,
				Error:        err.Error(),
			})
			continue
		}
		result.Successes = append(result.Successes, graded)
	}

	s.logger.Info().
		Int("succeeded", len(result.Successes)).
		Int("failed", len(result.Failures)).
		Msg("bulk grading completed")

	return result, nil
}

func (s *gradingService) GetHistory(ctx context.Context, submissionID uint, actor Actor) ([]dto.GradingHistoryResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if !canViewSubmission(submission, actor) {
		return nil, ErrAccessDenied
	}

	entries, err := s.submissions.ListHistory(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewGradingHistoryResponseSlice(entries), nil
}

func (s *gradingService) GetAssignmentStatistics(ctx context.Context, assignmentID uint) (dto.GradeStatistics, error) {
	if cached, ok := s.cachedStats(ctx, assignmentID); ok {
		return cached, nil
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeStatistics{}, ErrAssignmentNotFound
		}
		return dto.GradeStatistics{}, err
	}

	graded, err := s.submissions.ListGraded(ctx, assignmentID)
	if err != nil {
		return dto.GradeStatistics{}, err
	}

	total, err := s.submissions.CountNonDraft(ctx, assignmentID)
	if err != nil {
		return dto.GradeStatistics{}, err
	}

	stats := computeStatistics(assignment, graded, total)
	s.cacheStats(ctx, assignmentID, stats)

	return stats, nil
}

func computeStatistics(assignment models.Assignment, graded []models.AssignmentSubmission, totalSubmissions int64) dto.GradeStatistics {
	totalPoints := assignment.TotalPoints
	if totalPoints <= 0 {
		totalPoints = 100
	}

	buckets := []dto.GradeDistributionBucket{
		{Label: "<60%"},
		{Label: "60-70%"},
		{Label: "70-80%"},
		{Label: "80-90%"},
		{Label: "90-100%"},
	}

	stats := dto.GradeStatistics{
		AssignmentID:     assignment.ID,
		TotalSubmissions: totalSubmissions,
	}

	sum := 0.0
	for _, submission := range graded {
		score := submission.EffectiveScore()
		if score == nil {
			continue
		}

		value := *score
		if stats.GradedCount == 0 {
			stats.Min = value
			stats.Max = value
		} else {
			stats.Min = math.Min(stats.Min, value)
			stats.Max = math.Max(stats.Max, value)
		}
		stats.GradedCount++
		sum += value

		percent := value / totalPoints * 100
		switch {
		case percent < 60:
			buckets[0].Count++
		case percent <= 70:
			buckets[1].Count++
		case percent <= 80:
			buckets[2].Count++
		case percent <= 90:
			buckets[3].Count++
		default:
			buckets[4].Count++
		}
	}

	if stats.GradedCount > 0 {
		stats.Average = sum / float64(stats.GradedCount)
	}
	stats.Distribution = buckets

	return stats
}

func (s *gradingService) cachedStats(ctx context.Context, assignmentID uint) (dto.GradeStatistics, bool) {
	if s.redis == nil {
		return dto.GradeStatistics{}, false
	}

	payload, err := s.redis.Get(ctx, fmt.Sprintf(statsCacheKeyFormat, assignmentID)).Bytes()
	if err != nil {
		return dto.GradeStatistics{}, false
	}

	var stats dto.GradeStatistics
	if err := json.Unmarshal(payload, &stats); err != nil {
		return dto.GradeStatistics{}, false
	}

	return stats, true
}

func (s *gradingService) cacheStats(ctx context.Context, assignmentID uint, stats dto.GradeStatistics) {
	if s.redis == nil || s.statsTTL <= 0 {
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, fmt.Sprintf(statsCacheKeyFormat, assignmentID), payload, s.statsTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to cache grade statistics")
	}
}

func (s *gradingService) invalidateStats(ctx context.Context, assignmentID uint) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, fmt.Sprintf(statsCacheKeyFormat, assignmentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to invalidate grade statistics cache")
	}
}
