package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

// scriptedVerifier returns queued results, one per Verify call.
type scriptedVerifier struct {
	results []VerificationResult
	errs    []error
	calls   int
}

func (v *scriptedVerifier) Verify(ctx context.Context, reference string) (VerificationResult, error) {
	index := v.calls
	v.calls++
	var result VerificationResult
	if index < len(v.results) {
		result = v.results[index]
	}
	var err error
	if index < len(v.errs) {
		err = v.errs[index]
	}
	return result, err
}

type paymentFixture struct {
	svc          PaymentService
	payments     *fakePaymentRepo
	applications *fakeApplicationRepo
	enrollments  *fakeEnrollmentRepo
	courses      *fakeCourseRepo
	verifier     *scriptedVerifier
	notifier     *recordingNotifier
}

func newPaymentFixture(t *testing.T, verifier *scriptedVerifier, courses ...models.Course) paymentFixture {
	t.Helper()

	payments := newFakePaymentRepo()
	applications := newFakeApplicationRepo()
	enrollments := newFakeEnrollmentRepo()
	courseRepo := newFakeCourseRepo(courses...)
	notifier := &recordingNotifier{}
	txm := &fakeTxManager{repos: repository.Repositories{
		Courses:      courseRepo,
		Enrollments:  enrollments,
		Applications: applications,
		Payments:     payments,
	}}

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc, err := NewPaymentService(payments, txm, verifier, validate, notifier, testLogger())
	require.NoError(t, err)

	return paymentFixture{
		svc:          svc,
		payments:     payments,
		applications: applications,
		enrollments:  enrollments,
		courses:      courseRepo,
		verifier:     verifier,
		notifier:     notifier,
	}
}

func successfulVerification() VerificationResult {
	return VerificationResult{Success: true, GatewayStatus: "success", PaidAt: time.Now()}
}

func TestPaymentInitializeCreatesPendingRow(t *testing.T) {
	f := newPaymentFixture(t, &scriptedVerifier{})

	payment, err := f.svc.Initialize(context.Background(), dto.PaymentInitRequest{
		UserID: 7,
		Type:   models.PaymentTypeTuition,
		Amount: 3000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, payment.Reference)
	require.Equal(t, models.PaymentStatusPending, payment.Status)

	stored, err := f.payments.GetByReference(context.Background(), payment.Reference)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestPaymentInitializeRejectsUnknownType(t *testing.T) {
	f := newPaymentFixture(t, &scriptedVerifier{})

	_, err := f.svc.Initialize(context.Background(), dto.PaymentInitRequest{
		UserID: 7,
		Type:   "donation",
		Amount: 10,
	})
	require.Error(t, err)
}

func TestReconcileTuitionActivatesEnrollment(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{successfulVerification()}}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Title: "Go Basics", Price: 3000})

	application := f.applications.addApplication(models.Application{
		UserID:   7,
		CourseID: 2,
		Status:   models.ApplicationStatusApproved,
		Course:   models.Course{ID: 2, Title: "Go Basics"},
	})
	f.payments.add(models.Payment{
		Reference:     "ref-tuition",
		UserID:        7,
		Type:          models.PaymentTypeTuition,
		Amount:        3000,
		Status:        models.PaymentStatusPending,
		ApplicationID: &application.ID,
	})

	result, err := f.svc.Reconcile(context.Background(), "ref-tuition")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, models.PaymentStatusCompleted, result.Status)

	enrollment, err := f.enrollments.GetByUserAndCourse(context.Background(), 7, 2)
	require.NoError(t, err)
	require.True(t, enrollment.IsActive())

	stored, err := f.payments.GetByReference(context.Background(), "ref-tuition")
	require.NoError(t, err)
	require.NotNil(t, stored.EnrollmentID)
	require.Equal(t, enrollment.ID, *stored.EnrollmentID)

	require.Equal(t, []string{models.NotificationKindPayment, models.NotificationKindEnrollment}, f.notifier.kinds())
}

func TestReconcileIsIdempotent(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{successfulVerification()}}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Title: "Go Basics", Price: 3000})

	application := f.applications.addApplication(models.Application{UserID: 7, CourseID: 2, Status: models.ApplicationStatusApproved})
	f.payments.add(models.Payment{
		Reference:     "ref-dup",
		UserID:        7,
		Type:          models.PaymentTypeTuition,
		Amount:        3000,
		Status:        models.PaymentStatusPending,
		ApplicationID: &application.ID,
	})

	first, err := f.svc.Reconcile(context.Background(), "ref-dup")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.svc.Reconcile(context.Background(), "ref-dup")
	require.NoError(t, err)
	require.True(t, second.Success)
	require.Equal(t, "payment already reconciled", second.Message)
	require.Equal(t, 1, verifier.calls, "a settled payment must not hit the gateway again")
	require.Len(t, f.enrollments.enrollments, 1, "no duplicate enrollment on replay")
}

func TestReconcileVerifierOutageKeepsPaymentPending(t *testing.T) {
	verifier := &scriptedVerifier{
		results: []VerificationResult{{}, successfulVerification()},
		errs:    []error{errors.New("connection refused"), nil},
	}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Price: 3000})

	application := f.applications.addApplication(models.Application{UserID: 7, CourseID: 2})
	f.payments.add(models.Payment{
		Reference:     "ref-retry",
		UserID:        7,
		Type:          models.PaymentTypeTuition,
		Amount:        3000,
		Status:        models.PaymentStatusPending,
		ApplicationID: &application.ID,
	})

	_, err := f.svc.Reconcile(context.Background(), "ref-retry")
	require.ErrorIs(t, err, ErrVerificationUnavailable)

	stored, err := f.payments.GetByReference(context.Background(), "ref-retry")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, stored.Status, "transport failure must not settle the payment")

	result, err := f.svc.Reconcile(context.Background(), "ref-retry")
	require.NoError(t, err)
	require.True(t, result.Success, "retry after outage completes normally")
}

func TestReconcileFailedVerificationMarksFailed(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{{Success: false, GatewayStatus: "abandoned"}}}
	f := newPaymentFixture(t, verifier)

	f.payments.add(models.Payment{
		Reference: "ref-fail",
		UserID:    7,
		Type:      models.PaymentTypeTuition,
		Amount:    3000,
		Status:    models.PaymentStatusPending,
	})

	result, err := f.svc.Reconcile(context.Background(), "ref-fail")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, models.PaymentStatusFailed, result.Status)
	require.Contains(t, result.Message, "abandoned")
	require.Empty(t, f.notifier.sent)

	// A later replay reports the failure without another gateway call.
	replay, err := f.svc.Reconcile(context.Background(), "ref-fail")
	require.NoError(t, err)
	require.False(t, replay.Success)
	require.Equal(t, 1, verifier.calls)
}

func TestReconcileApplicationFeePromotesDraft(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{successfulVerification()}}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Title: "Go Basics", Price: 3000})

	f.applications.addDraft(models.ApplicationDraft{
		UserID:   7,
		CourseID: 2,
		FormData: []byte(`{"full_name":"Ada Lovelace","email":"ada@example.com"}`),
	})
	f.payments.add(models.Payment{
		Reference: "ref-fee",
		UserID:    7,
		Type:      models.PaymentTypeApplicationFee,
		Amount:    50,
		Status:    models.PaymentStatusPending,
		Metadata:  map[string]interface{}{"course_id": float64(2)},
	})

	result, err := f.svc.Reconcile(context.Background(), "ref-fee")
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Empty(t, f.applications.drafts, "draft is consumed by promotion")
	require.Len(t, f.applications.applications, 1)
	for _, application := range f.applications.applications {
		require.Equal(t, models.ApplicationStatusUnderReview, application.Status)
		require.Equal(t, uint(7), application.UserID)
	}

	stored, err := f.payments.GetByReference(context.Background(), "ref-fee")
	require.NoError(t, err)
	require.NotNil(t, stored.ApplicationID)
}

func TestReconcileApplicationFeeMovesLinkedApplicationToReview(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{successfulVerification()}}
	f := newPaymentFixture(t, verifier)

	application := f.applications.addApplication(models.Application{UserID: 7, CourseID: 2, Status: models.ApplicationStatusDraft})
	f.payments.add(models.Payment{
		Reference:     "ref-linked-fee",
		UserID:        7,
		Type:          models.PaymentTypeApplicationFee,
		Amount:        50,
		Status:        models.PaymentStatusPending,
		ApplicationID: &application.ID,
	})

	_, err := f.svc.Reconcile(context.Background(), "ref-linked-fee")
	require.NoError(t, err)

	updated, err := f.applications.GetByID(context.Background(), application.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusUnderReview, updated.Status)
}

func TestReconcileInitialInstallmentBuildsPlan(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{successfulVerification()}}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Title: "Go Basics", Price: 3000})

	f.payments.add(models.Payment{
		Reference: "ref-plan",
		UserID:    7,
		Type:      models.PaymentTypeInstallment,
		Amount:    1200,
		Status:    models.PaymentStatusPending,
		Metadata: map[string]interface{}{
			"course_id":           float64(2),
			"initial_installment": true,
		},
	})

	result, err := f.svc.Reconcile(context.Background(), "ref-plan")
	require.NoError(t, err)
	require.True(t, result.Success)

	plan, err := f.payments.GetPlanByUserAndCourse(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Equal(t, 3, plan.InstallmentCount)
	require.Equal(t, 3000.0, plan.TotalAmount)
	require.InDelta(t, 900.0, plan.MonthlyAmount, 1e-9, "(3000-1200)/2 remaining per month")
	require.Equal(t, models.PaymentPlanStatusActive, plan.Status)
	require.Len(t, plan.Installments, 3)

	require.Equal(t, models.InstallmentStatusPaid, plan.Installments[0].Status)
	require.Equal(t, 1200.0, plan.Installments[0].Amount)
	require.NotNil(t, plan.Installments[0].PaidAt)

	for _, installment := range plan.Installments[1:] {
		require.Equal(t, models.InstallmentStatusPending, installment.Status)
		require.InDelta(t, 900.0, installment.Amount, 1e-9, "30%% share of the course price")
	}

	enrollment, err := f.enrollments.GetByUserAndCourse(context.Background(), 7, 2)
	require.NoError(t, err)
	require.True(t, enrollment.IsActive())
}

func TestReconcileFollowUpInstallmentsSettlePlan(t *testing.T) {
	verifier := &scriptedVerifier{results: []VerificationResult{
		successfulVerification(),
		successfulVerification(),
		successfulVerification(),
	}}
	f := newPaymentFixture(t, verifier, models.Course{ID: 2, Title: "Go Basics", Price: 3000})

	references := []string{"ref-i1", "ref-i2", "ref-i3"}
	f.payments.add(models.Payment{
		Reference: references[0],
		UserID:    7,
		Type:      models.PaymentTypeInstallment,
		Amount:    1200,
		Status:    models.PaymentStatusPending,
		Metadata: map[string]interface{}{
			"course_id":           float64(2),
			"initial_installment": true,
		},
	})
	for _, reference := range references[1:] {
		f.payments.add(models.Payment{
			Reference: reference,
			UserID:    7,
			Type:      models.PaymentTypeInstallment,
			Amount:    900,
			Status:    models.PaymentStatusPending,
			Metadata:  map[string]interface{}{"course_id": float64(2)},
		})
	}

	for _, reference := range references {
		result, err := f.svc.Reconcile(context.Background(), reference)
		require.NoError(t, err)
		require.True(t, result.Success)
	}

	plan, err := f.payments.GetPlanByUserAndCourse(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPlanStatusSettled, plan.Status)
	for _, installment := range plan.Installments {
		require.Equal(t, models.InstallmentStatusPaid, installment.Status)
		require.NotNil(t, installment.PaymentID)
	}
}

func TestReconcileUnknownReference(t *testing.T) {
	f := newPaymentFixture(t, &scriptedVerifier{})

	_, err := f.svc.Reconcile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}
