package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// SubmissionFilter narrows submission list queries.
type SubmissionFilter struct {
	Status   *string
	CourseID *uint
	Page     int
	Limit    int
}

func (f SubmissionFilter) offsetAndLimit() (int, int) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	page := f.Page
	if page <= 0 {
		page = 1
	}

	return (page - 1) * limit, limit
}

// SubmissionRepository defines data operations for submissions and their
// grading history.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.AssignmentSubmission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.AssignmentSubmission, error)
	Create(ctx context.Context, submission *models.AssignmentSubmission) error
	Update(ctx context.Context, submission *models.AssignmentSubmission) error
	ListByAssignment(ctx context.Context, assignmentID uint, filter SubmissionFilter) ([]models.AssignmentSubmission, int64, error)
	ListByStudent(ctx context.Context, studentID uint, filter SubmissionFilter) ([]models.AssignmentSubmission, int64, error)
	ListGraded(ctx context.Context, assignmentID uint) ([]models.AssignmentSubmission, error)
	CountNonDraft(ctx context.Context, assignmentID uint) (int64, error)
	CreateHistory(ctx context.Context, entry *models.GradingHistory) error
	ListHistory(ctx context.Context, submissionID uint) ([]models.GradingHistory, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.AssignmentSubmission{}).
		Preload("Assignment").
		Preload("Assignment.Course").
		Preload("Student")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.AssignmentSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.AssignmentSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.AssignmentSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.AssignmentSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint, filter SubmissionFilter) ([]models.AssignmentSubmission, int64, error) {
	query := r.baseQuery(ctx).Where("assignment_id = ?", assignmentID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	return r.paginate(query, filter)
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, filter SubmissionFilter) ([]models.AssignmentSubmission, int64, error) {
	query := r.baseQuery(ctx).Where("student_id = ?", studentID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CourseID != nil {
		query = query.Joins("JOIN assignments ON assignments.id = assignment_submissions.assignment_id").
			Where("assignments.course_id = ?", *filter.CourseID)
	}

	return r.paginate(query, filter)
}

func (r *submissionRepository) paginate(query *gorm.DB, filter SubmissionFilter) ([]models.AssignmentSubmission, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := filter.offsetAndLimit()

	var submissions []models.AssignmentSubmission
	if err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) ListGraded(ctx context.Context, assignmentID uint) ([]models.AssignmentSubmission, error) {
	var submissions []models.AssignmentSubmission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("status IN ?", []string{models.SubmissionStatusGraded, models.SubmissionStatusReturned}).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CountNonDraft(ctx context.Context, assignmentID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.AssignmentSubmission{}).
		Where("assignment_id = ?", assignmentID).
		Where("status <> ?", models.SubmissionStatusDraft).
		Count(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

func (r *submissionRepository) CreateHistory(ctx context.Context, entry *models.GradingHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *submissionRepository) ListHistory(ctx context.Context, submissionID uint) ([]models.GradingHistory, error) {
	var entries []models.GradingHistory
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("graded_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
