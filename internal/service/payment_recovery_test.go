package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

// openServiceDB backs a service with a real transactional store so that
// cross-repository effects and rollbacks are observable, unlike the
// in-memory fakes.
func openServiceDB(t *testing.T) (*gorm.DB, repository.Repositories, repository.TxManager) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Application{},
		&models.ApplicationDraft{},
		&models.Assignment{},
		&models.AssignmentSubmission{},
		&models.GradingHistory{},
		&models.Payment{},
		&models.PaymentPlan{},
		&models.PaymentInstallment{},
		&models.Notification{},
	))

	return db, repository.NewRepositories(db), repository.NewTxManager(db)
}

func TestReconcileDispatchFailureLeavesPaymentRetryable(t *testing.T) {
	ctx := context.Background()
	verifier := &scriptedVerifier{results: []VerificationResult{
		successfulVerification(),
		successfulVerification(),
	}}

	db, repos, txm := openServiceDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc, err := NewPaymentService(repos.Payments, txm, verifier, validate, &recordingNotifier{}, testLogger())
	require.NoError(t, err)

	// Initial installment pointing at a course row that does not exist yet,
	// so the plan dispatch fails after the status flip.
	payment := models.Payment{
		Reference: "ref-recover",
		UserID:    7,
		Type:      models.PaymentTypeInstallment,
		Amount:    1200,
		Status:    models.PaymentStatusPending,
		Metadata: map[string]interface{}{
			"course_id":           float64(9),
			"initial_installment": true,
		},
	}
	require.NoError(t, repos.Payments.Create(ctx, &payment))

	_, err = svc.Reconcile(ctx, "ref-recover")
	require.Error(t, err)

	stored, err := repos.Payments.GetByReference(ctx, "ref-recover")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, stored.Status, "a failed dispatch must roll the status flip back")
	require.Nil(t, stored.PaidAt)

	_, err = repos.Payments.GetPlanByUserAndCourse(ctx, 7, 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "no plan may survive the rollback")
	_, err = repos.Enrollments.GetByUserAndCourse(ctx, 7, 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "no enrollment may survive the rollback")

	// Once the course exists the next delivery reconciles the whole graph.
	require.NoError(t, db.Create(&models.Course{ID: 9, Title: "Go Basics", Price: 3000}).Error)

	result, err := svc.Reconcile(ctx, "ref-recover")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, models.PaymentStatusCompleted, result.Status)
	require.Equal(t, 2, verifier.calls, "a pending payment is re-verified on retry")

	plan, err := repos.Payments.GetPlanByUserAndCourse(ctx, 7, 9)
	require.NoError(t, err)
	require.Len(t, plan.Installments, 3)
	require.Equal(t, models.InstallmentStatusPaid, plan.Installments[0].Status)

	enrollment, err := repos.Enrollments.GetByUserAndCourse(ctx, 7, 9)
	require.NoError(t, err)
	require.True(t, enrollment.IsActive())
}
