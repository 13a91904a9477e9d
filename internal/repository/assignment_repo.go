package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// AssignmentRepository defines data operations for assignments.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	IncrementSubmissionCount(ctx context.Context, id uint) error
	IncrementGradedCount(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Preload("Course").First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) IncrementSubmissionCount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		UpdateColumn("submission_count", gorm.Expr("submission_count + 1")).Error
}

func (r *assignmentRepository) IncrementGradedCount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		UpdateColumn("graded_count", gorm.Expr("graded_count + 1")).Error
}
