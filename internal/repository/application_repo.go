package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// ApplicationRepository defines data operations for applications and drafts.
type ApplicationRepository interface {
	GetByID(ctx context.Context, id uint) (models.Application, error)
	Create(ctx context.Context, application *models.Application) error
	Update(ctx context.Context, application *models.Application) error
	GetDraft(ctx context.Context, userID, courseID uint) (models.ApplicationDraft, error)
	DeleteDraft(ctx context.Context, id uint) error
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository instantiates the repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).Preload("Course").First(&application, id).Error; err != nil {
		return models.Application{}, err
	}

	return application, nil
}

func (r *applicationRepository) Create(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Create(application).Error
}

func (r *applicationRepository) Update(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Save(application).Error
}

func (r *applicationRepository) GetDraft(ctx context.Context, userID, courseID uint) (models.ApplicationDraft, error) {
	var draft models.ApplicationDraft
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		First(&draft).Error; err != nil {
		return models.ApplicationDraft{}, err
	}

	return draft, nil
}

func (r *applicationRepository) DeleteDraft(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.ApplicationDraft{}, id).Error
}
