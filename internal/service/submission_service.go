package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/observability"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

// SubmissionService owns the submission lifecycle: creation, updates,
// resubmission, late detection and read access control.
type SubmissionService interface {
	Create(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResult, error)
	Update(ctx context.Context, submissionID, studentID uint, payload dto.SubmissionUpdateRequest) (dto.SubmissionResult, error)
	GetByID(ctx context.Context, submissionID uint, actor Actor) (dto.SubmissionResponse, error)
	ListByAssignment(ctx context.Context, assignmentID uint, actor Actor, query dto.SubmissionListQuery) (dto.SubmissionPage, error)
	ListByStudent(ctx context.Context, studentID uint, actor Actor, query dto.SubmissionListQuery) (dto.SubmissionPage, error)
	CalculateLatePenalty(submission models.AssignmentSubmission) float64
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	enrollments repository.EnrollmentRepository
	txm         repository.TxManager
	validator   *validator.Validate
	notifier    Notifier
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	enrollments repository.EnrollmentRepository,
	txm repository.TxManager,
	validate *validator.Validate,
	notifier Notifier,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		enrollments: enrollments,
		txm:         txm,
		validator:   validate,
		notifier:    notifier,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResult{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResult{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResult{}, err
	}

	if !payload.IsDraft && !assignment.IsPublished {
		return dto.SubmissionResult{}, ErrAssignmentNotPublished
	}

	if _, err := s.enrollments.GetActive(ctx, studentID, assignment.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResult{}, ErrNotEnrolled
		}
		return dto.SubmissionResult{}, err
	}

	// Content problems are collected and reported even when the deadline gate
	// would reject the call; the gate only fires for otherwise valid content.
	if problems := validateContent(assignment, payload.Text, payload.Files, payload.IsDraft); len(problems) > 0 {
		return dto.SubmissionResult{}, &ValidationError{Problems: problems}
	}

	now := s.now()
	lateness, err := s.evaluateDeadline(assignment, payload.IsDraft, now)
	if err != nil {
		return dto.SubmissionResult{}, err
	}

	existing, err := s.submissions.GetByAssignmentAndStudent(ctx, payload.AssignmentID, studentID)
	switch {
	case err == nil:
		return s.upsertExisting(ctx, existing, assignment, payload, lateness, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.createNew(ctx, assignment, studentID, payload, lateness, now)
	default:
		return dto.SubmissionResult{}, err
	}
}

func (s *submissionService) createNew(ctx context.Context, assignment models.Assignment, studentID uint, payload dto.SubmissionCreateRequest, lateness latenessInfo, now time.Time) (dto.SubmissionResult, error) {
	submission := models.AssignmentSubmission{
		AssignmentID:   assignment.ID,
		StudentID:      studentID,
		SubmissionText: strings.TrimSpace(payload.Text),
		Status:         models.SubmissionStatusDraft,
		IsLate:         lateness.isLate,
		DaysLate:       lateness.daysLate,
	}
	if err := submission.SetFileList(fileDescriptors(payload.Files)); err != nil {
		return dto.SubmissionResult{}, err
	}

	if !payload.IsDraft {
		submission.Status = models.SubmissionStatusSubmitted
		submission.SubmittedAt = &now
	}

	err := s.txm.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Submissions.Create(ctx, &submission); err != nil {
			return err
		}
		if submission.Status == models.SubmissionStatusSubmitted {
			return tx.Assignments.IncrementSubmissionCount(ctx, assignment.ID)
		}
		return nil
	})
	if err != nil {
		// A unique-constraint conflict means a concurrent call created the
		// row first; surface it the same way a plain duplicate does.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResult{}, ErrAlreadySubmitted
		}
		observability.SubmissionsTotal().WithLabelValues("error").Inc()
		return dto.SubmissionResult{}, err
	}

	return s.finishWrite(ctx, submission.ID, assignment, lateness, "submission created")
}

func (s *submissionService) upsertExisting(ctx context.Context, existing models.AssignmentSubmission, assignment models.Assignment, payload dto.SubmissionCreateRequest, lateness latenessInfo, now time.Time) (dto.SubmissionResult, error) {
	if existing.IsGraded() {
		return dto.SubmissionResult{}, ErrAlreadyGraded
	}

	if existing.Status == models.SubmissionStatusSubmitted && !payload.IsDraft && !payload.Resubmit {
		return dto.SubmissionResult{}, ErrAlreadySubmitted
	}

	existing.SubmissionText = strings.TrimSpace(payload.Text)
	if err := existing.SetFileList(fileDescriptors(payload.Files)); err != nil {
		return dto.SubmissionResult{}, err
	}

	wasDraft := existing.Status == models.SubmissionStatusDraft
	if !payload.IsDraft {
		existing.IsLate = lateness.isLate
		existing.DaysLate = lateness.daysLate
		existing.SubmittedAt = &now
		if !wasDraft {
			existing.ResubmissionCount++
			existing.LastResubmittedAt = &now
		}
		existing.Status = models.SubmissionStatusSubmitted
	}

	err := s.txm.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Submissions.Update(ctx, &existing); err != nil {
			return err
		}
		if wasDraft && !payload.IsDraft {
			return tx.Assignments.IncrementSubmissionCount(ctx, assignment.ID)
		}
		return nil
	})
	if err != nil {
		observability.SubmissionsTotal().WithLabelValues("error").Inc()
		return dto.SubmissionResult{}, err
	}

	return s.finishWrite(ctx, existing.ID, assignment, lateness, "submission updated")
}

func (s *submissionService) Update(ctx context.Context, submissionID, studentID uint, payload dto.SubmissionUpdateRequest) (dto.SubmissionResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResult{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResult{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResult{}, err
	}

	if submission.StudentID != studentID {
		return dto.SubmissionResult{}, ErrAccessDenied
	}

	if submission.IsGraded() {
		return dto.SubmissionResult{}, ErrAlreadyGraded
	}

	assignment := submission.Assignment

	text := submission.SubmissionText
	if payload.Text != nil {
		text = strings.TrimSpace(*payload.Text)
	}

	files := payload.Files
	keptFiles := submission.FileList()
	if files != nil {
		keptFiles = fileDescriptors(files)
	}

	if problems := validateContentDescriptors(assignment, text, keptFiles, payload.IsDraft); len(problems) > 0 {
		return dto.SubmissionResult{}, &ValidationError{Problems: problems}
	}

	now := s.now()
	lateness, err := s.evaluateDeadline(assignment, payload.IsDraft, now)
	if err != nil {
		return dto.SubmissionResult{}, err
	}

	submission.SubmissionText = text
	if err := submission.SetFileList(keptFiles); err != nil {
		return dto.SubmissionResult{}, err
	}

	wasDraft := submission.Status == models.SubmissionStatusDraft
	if !payload.IsDraft {
		submission.IsLate = lateness.isLate
		submission.DaysLate = lateness.daysLate
		submission.SubmittedAt = &now
		submission.ResubmissionCount++
		submission.LastResubmittedAt = &now
		submission.Status = models.SubmissionStatusSubmitted
	}

	err = s.txm.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Submissions.Update(ctx, &submission); err != nil {
			return err
		}
		if wasDraft && !payload.IsDraft {
			return tx.Assignments.IncrementSubmissionCount(ctx, assignment.ID)
		}
		return nil
	})
	if err != nil {
		observability.SubmissionsTotal().WithLabelValues("error").Inc()
		return dto.SubmissionResult{}, err
	}

	return s.finishWrite(ctx, submission.ID, assignment, lateness, "submission updated")
}

func (s *submissionService) finishWrite(ctx context.Context, submissionID uint, assignment models.Assignment, lateness latenessInfo, logMsg string) (dto.SubmissionResult, error) {
	updated, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResult{}, err
	}

	result := dto.SubmissionResult{Submission: dto.NewSubmissionResponse(updated)}
	if lateness.warning != "" && updated.Status != models.SubmissionStatusDraft {
		result.Warnings = append(result.Warnings, lateness.warning)
		if s.notifier != nil {
			s.notifier.Notify(ctx, updated.StudentID, models.NotificationKindLateSubmission, lateness.warning, map[string]interface{}{
				"assignment_id": assignment.ID,
				"days_late":     updated.DaysLate,
			})
		}
	}

	observability.SubmissionsTotal().WithLabelValues(updated.Status).Inc()
	s.logger.Info().
		Uint("submission_id", updated.ID).
		Uint("assignment_id", assignment.ID).
		Str("status", updated.Status).
		Bool("is_late", updated.IsLate).
		Msg(logMsg)

	return result, nil
}

func (s *submissionService) GetByID(ctx context.Context, submissionID uint, actor Actor) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !canViewSubmission(submission, actor) {
		return dto.SubmissionResponse{}, ErrAccessDenied
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListByAssignment(ctx context.Context, assignmentID uint, actor Actor, query dto.SubmissionListQuery) (dto.SubmissionPage, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.SubmissionPage{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionPage{}, ErrAssignmentNotFound
		}
		return dto.SubmissionPage{}, err
	}

	if !ownsAssignment(assignment, actor) {
		return dto.SubmissionPage{}, ErrAccessDenied
	}

	filter := repository.SubmissionFilter{Status: query.Status, Page: query.Page, Limit: query.Limit}
	submissions, total, err := s.submissions.ListByAssignment(ctx, assignmentID, filter)
	if err != nil {
		return dto.SubmissionPage{}, err
	}

	return newSubmissionPage(submissions, total, filter), nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID uint, actor Actor, query dto.SubmissionListQuery) (dto.SubmissionPage, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.SubmissionPage{}, err
	}

	if actor.Role != models.RoleAdmin && actor.ID != studentID {
		return dto.SubmissionPage{}, ErrAccessDenied
	}

	filter := repository.SubmissionFilter{Status: query.Status, CourseID: query.CourseID, Page: query.Page, Limit: query.Limit}
	submissions, total, err := s.submissions.ListByStudent(ctx, studentID, filter)
	if err != nil {
		return dto.SubmissionPage{}, err
	}

	return newSubmissionPage(submissions, total, filter), nil
}

// CalculateLatePenalty returns the fraction of points lost to lateness:
// (penalty percent / 100) * days late, linear and uncapped. The grading
// service floors the resulting score at zero.
func (s *submissionService) CalculateLatePenalty(submission models.AssignmentSubmission) float64 {
	if !submission.IsLate || submission.DaysLate <= 0 {
		return 0
	}

	penalty := submission.Assignment.LatePenalty
	if penalty == nil || *penalty <= 0 {
		return 0
	}

	return (*penalty / 100) * float64(submission.DaysLate)
}

type latenessInfo struct {
	isLate   bool
	daysLate int
	warning  string
}

func (s *submissionService) evaluateDeadline(assignment models.Assignment, isDraft bool, now time.Time) (latenessInfo, error) {
	if isDraft || !assignment.IsPastDue(now) {
		return latenessInfo{}, nil
	}

	daysLate := int(math.Ceil(now.Sub(assignment.DueDate).Hours() / 24))
	if daysLate < 1 {
		daysLate = 1
	}

	if !assignment.AllowLateSubmission {
		return latenessInfo{}, ErrDeadlinePassed
	}

	warning := fmt.Sprintf("submission is %d day(s) late", daysLate)
	if assignment.LatePenalty != nil && *assignment.LatePenalty > 0 {
		warning = fmt.Sprintf("%s; a penalty of %.0f%% per day may apply", warning, *assignment.LatePenalty)
	}

	return latenessInfo{isLate: true, daysLate: daysLate, warning: warning}, nil
}

func validateContent(assignment models.Assignment, text string, files []dto.SubmissionFileInput, isDraft bool) []string {
	return validateContentDescriptors(assignment, text, fileDescriptors(files), isDraft)
}

// validateContentDescriptors checks every rule and collects all violations so
// the student sees the complete list in one response.
func validateContentDescriptors(assignment models.Assignment, text string, files []models.SubmissionFile, isDraft bool) []string {
	var problems []string

	if assignment.MaxFiles > 0 && len(files) > assignment.MaxFiles {
		problems = append(problems, fmt.Sprintf("at most %d file(s) allowed, got %d", assignment.MaxFiles, len(files)))
	}

	allowed := assignment.Formats()
	maxBytes := assignment.MaxFileSizeBytes()
	for _, file := range files {
		if len(allowed) > 0 && !formatAllowed(file.Name, allowed) {
			problems = append(problems, fmt.Sprintf("file %q has an unsupported format (allowed: %s)", file.Name, strings.Join(allowed, ", ")))
		}
		if maxBytes > 0 && file.Size > maxBytes {
			problems = append(problems, fmt.Sprintf("file %q exceeds the %dMB size limit", file.Name, assignment.MaxFileSizeMB))
		}
	}

	if !isDraft && strings.TrimSpace(text) == "" && len(files) == 0 {
		problems = append(problems, "a submission requires text or at least one file")
	}

	return problems
}

func formatAllowed(name string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, format := range allowed {
		if ext == strings.TrimPrefix(strings.ToLower(format), ".") {
			return true
		}
	}

	return false
}

func fileDescriptors(inputs []dto.SubmissionFileInput) []models.SubmissionFile {
	if inputs == nil {
		return nil
	}

	files := make([]models.SubmissionFile, 0, len(inputs))
	for _, input := range inputs {
		files = append(files, models.SubmissionFile{
			Name: input.Name,
			Type: input.Type,
			Size: input.Size,
			URL:  input.URL,
		})
	}

	return files
}

func canViewSubmission(submission models.AssignmentSubmission, actor Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor:
		return ownsAssignment(submission.Assignment, actor)
	default:
		return submission.StudentID == actor.ID
	}
}

func ownsAssignment(assignment models.Assignment, actor Actor) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}

	return assignment.InstructorID == actor.ID || assignment.Course.InstructorID == actor.ID
}

func newSubmissionPage(submissions []models.AssignmentSubmission, total int64, filter repository.SubmissionFilter) dto.SubmissionPage {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	return dto.SubmissionPage{
		Submissions: dto.NewSubmissionResponseSlice(submissions),
		Total:       total,
		Page:        page,
		Limit:       limit,
	}
}
