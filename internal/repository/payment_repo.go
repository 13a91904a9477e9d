package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// PaymentRepository defines data operations for payments, plans and
// installments.
type PaymentRepository interface {
	GetByReference(ctx context.Context, reference string) (models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	// MarkCompleted flips a pending payment to completed. Returns false when
	// the payment was no longer pending, which lets concurrent webhook
	// deliveries detect that they lost the race.
	MarkCompleted(ctx context.Context, reference string, paidAt time.Time) (bool, error)
	// MarkFailed flips a pending payment to failed with the same
	// compare-and-set semantics as MarkCompleted.
	MarkFailed(ctx context.Context, reference string) (bool, error)
	LinkApplication(ctx context.Context, paymentID, applicationID uint) error
	LinkEnrollment(ctx context.Context, paymentID, enrollmentID uint) error
	CreatePlan(ctx context.Context, plan *models.PaymentPlan) error
	GetPlanByUserAndCourse(ctx context.Context, userID, courseID uint) (models.PaymentPlan, error)
	UpdatePlan(ctx context.Context, plan *models.PaymentPlan) error
	UpdateInstallment(ctx context.Context, installment *models.PaymentInstallment) error
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository instantiates the repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Application").
		Preload("Application.Course").
		Preload("Enrollment").
		Preload("Enrollment.Course").
		Where("reference = ?", reference).
		First(&payment).Error; err != nil {
		return models.Payment{}, err
	}

	return payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *paymentRepository) MarkCompleted(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reference = ?", reference).
		Where("status = ?", models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":  models.PaymentStatusCompleted,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reference = ?", reference).
		Where("status = ?", models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *paymentRepository) LinkApplication(ctx context.Context, paymentID, applicationID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("application_id", applicationID).Error
}

func (r *paymentRepository) LinkEnrollment(ctx context.Context, paymentID, enrollmentID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("enrollment_id", enrollmentID).Error
}

func (r *paymentRepository) CreatePlan(ctx context.Context, plan *models.PaymentPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *paymentRepository) UpdatePlan(ctx context.Context, plan *models.PaymentPlan) error {
	return r.db.WithContext(ctx).Omit("Installments").Save(plan).Error
}

func (r *paymentRepository) UpdateInstallment(ctx context.Context, installment *models.PaymentInstallment) error {
	return r.db.WithContext(ctx).Save(installment).Error
}

func (r *paymentRepository) GetPlanByUserAndCourse(ctx context.Context, userID, courseID uint) (models.PaymentPlan, error) {
	var plan models.PaymentPlan
	if err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		First(&plan).Error; err != nil {
		return models.PaymentPlan{}, err
	}

	return plan, nil
}
