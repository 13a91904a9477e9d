package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// CourseRepository defines data operations for courses.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates the repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}
