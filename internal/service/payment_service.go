package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/observability"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

// VerificationResult is the minimal contract returned by the payment gateway.
type VerificationResult struct {
	Success          bool
	AmountMinorUnits int64
	PaidAt           time.Time
	GatewayStatus    string
	Metadata         map[string]interface{}
}

// PaymentVerifier checks a payment reference against the external gateway.
// Transport failures must surface as errors, never as a failed verification.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (VerificationResult, error)
}

// applicationFormSchema is the minimal shape a draft's form data must satisfy
// before it is promoted to a real application.
const applicationFormSchema = `{
	"type": "object",
	"required": ["full_name", "email"],
	"properties": {
		"full_name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "minLength": 3}
	}
}`

// PaymentService creates pending payments and reconciles gateway callbacks
// into application, enrollment and installment-plan state.
type PaymentService interface {
	Initialize(ctx context.Context, payload dto.PaymentInitRequest) (dto.PaymentResponse, error)
	Reconcile(ctx context.Context, reference string) (dto.ReconcileResult, error)
	GetByReference(ctx context.Context, reference string) (dto.PaymentResponse, error)
}

type paymentService struct {
	payments   repository.PaymentRepository
	txm        repository.TxManager
	verifier   PaymentVerifier
	validator  *validator.Validate
	notifier   Notifier
	formSchema *jsonschema.Schema
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPaymentService constructs the payment reconciliation service.
func NewPaymentService(
	payments repository.PaymentRepository,
	txm repository.TxManager,
	verifier PaymentVerifier,
	validate *validator.Validate,
	notifier Notifier,
	logger zerolog.Logger,
) (PaymentService, error) {
	schema, err := jsonschema.CompileString("application_form.json", applicationFormSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile application form schema: %w", err)
	}

	return &paymentService{
		payments:   payments,
		txm:        txm,
		verifier:   verifier,
		validator:  validate,
		notifier:   notifier,
		formSchema: schema,
		logger:     logger.With().Str("component", "payment_service").Logger(),
		now:        time.Now,
	}, nil
}

func (s *paymentService) Initialize(ctx context.Context, payload dto.PaymentInitRequest) (dto.PaymentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PaymentResponse{}, err
	}

	payment := models.Payment{
		Reference:     uuid.NewString(),
		UserID:        payload.UserID,
		Type:          payload.Type,
		Amount:        payload.Amount,
		Status:        models.PaymentStatusPending,
		ApplicationID: payload.ApplicationID,
		EnrollmentID:  payload.EnrollmentID,
		Metadata:      payload.Metadata,
	}

	if err := s.payments.Create(ctx, &payment); err != nil {
		return dto.PaymentResponse{}, err
	}

	s.logger.Info().
		Str("reference", payment.Reference).
		Str("type", payment.Type).
		Float64("amount", payment.Amount).
		Msg("payment initialized")

	return dto.NewPaymentResponse(payment), nil
}

func (s *paymentService) GetByReference(ctx context.Context, reference string) (dto.PaymentResponse, error) {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaymentResponse{}, ErrPaymentNotFound
		}
		return dto.PaymentResponse{}, err
	}

	return dto.NewPaymentResponse(payment), nil
}

// Reconcile verifies the reference with the gateway and derives every
// downstream entity mutation. It is safe to call repeatedly for the same
// reference: only the first successful call mutates anything.
func (s *paymentService) Reconcile(ctx context.Context, reference string) (dto.ReconcileResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/eduflow-api/internal/service/payment")
	ctx, span := tracer.Start(ctx, "payment.reconcile")
	span.SetAttributes(attribute.String("payment.reference", reference))
	defer span.End()

	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "payment_not_found")
			return dto.ReconcileResult{}, ErrPaymentNotFound
		}
		span.RecordError(err)
		return dto.ReconcileResult{}, err
	}

	span.SetAttributes(attribute.String("payment.type", payment.Type))

	// Repeat webhook deliveries for an already-settled payment return the
	// prior outcome without touching the entity graph again.
	switch payment.Status {
	case models.PaymentStatusCompleted:
		observability.ReconciliationsTotal().WithLabelValues(payment.Type, "duplicate").Inc()
		return dto.ReconcileResult{
			Success: true,
			Status:  models.PaymentStatusCompleted,
			Message: "payment already reconciled",
			Payment: dto.NewPaymentResponse(payment),
		}, nil
	case models.PaymentStatusFailed:
		return dto.ReconcileResult{
			Success: false,
			Status:  models.PaymentStatusFailed,
			Message: "payment previously failed verification",
			Payment: dto.NewPaymentResponse(payment),
		}, nil
	}

	verification, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		// Transport failure: the payment stays pending and the caller can
		// safely retry the whole reconciliation.
		span.RecordError(err)
		span.SetStatus(codes.Error, "verifier_unavailable")
		observability.ReconciliationsTotal().WithLabelValues(payment.Type, "unavailable").Inc()
		return dto.ReconcileResult{}, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	if !verification.Success {
		if _, err := s.payments.MarkFailed(ctx, reference); err != nil {
			span.RecordError(err)
			return dto.ReconcileResult{}, err
		}
		payment.Status = models.PaymentStatusFailed
		observability.ReconciliationsTotal().WithLabelValues(payment.Type, "failed").Inc()
		s.logger.Warn().
			Str("reference", reference).
			Str("gateway_status", verification.GatewayStatus).
			Msg("payment failed gateway verification")

		return dto.ReconcileResult{
			Success: false,
			Status:  models.PaymentStatusFailed,
			Message: fmt.Sprintf("gateway reported %s", verification.GatewayStatus),
			Payment: dto.NewPaymentResponse(payment),
		}, nil
	}

	paidAt := verification.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	// The status flip and the entity mutations commit or roll back as one
	// unit: a dispatch failure leaves the payment pending so a later webhook
	// delivery reconciles it in full.
	won := false
	enrollmentActive := false
	err = s.txm.Transaction(ctx, func(tx repository.Repositories) error {
		var casErr error
		won, casErr = tx.Payments.MarkCompleted(ctx, reference, paidAt)
		if casErr != nil {
			return casErr
		}
		if !won {
			return nil
		}
		active, dispatchErr := s.dispatch(ctx, tx, &payment, paidAt)
		enrollmentActive = active
		return dispatchErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch_failed")
		observability.ReconciliationsTotal().WithLabelValues(payment.Type, "error").Inc()
		return dto.ReconcileResult{}, err
	}

	if !won {
		// A concurrent delivery completed the payment first; hand back its
		// result instead of reprocessing.
		settled, err := s.payments.GetByReference(ctx, reference)
		if err != nil {
			return dto.ReconcileResult{}, err
		}
		observability.ReconciliationsTotal().WithLabelValues(payment.Type, "duplicate").Inc()
		return dto.ReconcileResult{
			Success: settled.Status == models.PaymentStatusCompleted,
			Status:  settled.Status,
			Message: "payment already reconciled",
			Payment: dto.NewPaymentResponse(settled),
		}, nil
	}

	settled, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return dto.ReconcileResult{}, err
	}

	s.sendConfirmations(ctx, settled, enrollmentActive)
	observability.ReconciliationsTotal().WithLabelValues(payment.Type, "completed").Inc()
	s.logger.Info().
		Str("reference", reference).
		Str("type", payment.Type).
		Msg("payment reconciled")

	return dto.ReconcileResult{
		Success: true,
		Status:  models.PaymentStatusCompleted,
		Message: "payment reconciled",
		Payment: dto.NewPaymentResponse(settled),
	}, nil
}

// dispatch applies the per-type entity mutations inside the caller's
// transaction. It reports whether an enrollment is active after this event.
func (s *paymentService) dispatch(ctx context.Context, tx repository.Repositories, payment *models.Payment, paidAt time.Time) (bool, error) {
	switch payment.Type {
	case models.PaymentTypeApplicationFee:
		return false, s.dispatchApplicationFee(ctx, tx, payment)
	case models.PaymentTypeTuition:
		return s.dispatchTuition(ctx, tx, payment)
	case models.PaymentTypeInstallment:
		return s.dispatchInstallment(ctx, tx, payment, paidAt)
	default:
		return false, fmt.Errorf("unknown payment type %q", payment.Type)
	}
}

func (s *paymentService) dispatchApplicationFee(ctx context.Context, tx repository.Repositories, payment *models.Payment) error {
	if payment.ApplicationID != nil {
		application, err := tx.Applications.GetByID(ctx, *payment.ApplicationID)
		if err != nil {
			return err
		}
		application.Status = models.ApplicationStatusUnderReview
		return tx.Applications.Update(ctx, &application)
	}

	// Paid but never formally submitted: promote the draft so the payment is
	// not orphaned.
	courseID, ok := payment.MetadataUint("course_id")
	if !ok {
		s.logger.Warn().Str("reference", payment.Reference).Msg("application fee has no linked application and no course metadata")
		return nil
	}

	draft, err := tx.Applications.GetDraft(ctx, payment.UserID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().
				Str("reference", payment.Reference).
				Uint("course_id", courseID).
				Msg("application fee paid but no draft found; payment left unlinked")
			return nil
		}
		return err
	}

	s.checkFormData(draft.FormData, payment.Reference)

	application := models.Application{
		UserID:   payment.UserID,
		CourseID: courseID,
		Status:   models.ApplicationStatusUnderReview,
		FormData: draft.FormData,
	}
	if err := tx.Applications.Create(ctx, &application); err != nil {
		return err
	}
	if err := tx.Payments.LinkApplication(ctx, payment.ID, application.ID); err != nil {
		return err
	}
	payment.ApplicationID = &application.ID

	return tx.Applications.DeleteDraft(ctx, draft.ID)
}

// checkFormData validates the draft form against the application schema.
// A malformed draft is logged but still promoted: capturing the paid
// application wins over form hygiene.
func (s *paymentService) checkFormData(formData []byte, reference string) {
	if len(formData) == 0 {
		return
	}

	var decoded interface{}
	if err := json.Unmarshal(formData, &decoded); err != nil {
		s.logger.Warn().Err(err).Str("reference", reference).Msg("draft form data is not valid JSON")
		return
	}

	if err := s.formSchema.Validate(decoded); err != nil {
		s.logger.Warn().Err(err).Str("reference", reference).Msg("draft form data does not satisfy the application schema")
	}
}

func (s *paymentService) dispatchTuition(ctx context.Context, tx repository.Repositories, payment *models.Payment) (bool, error) {
	if payment.EnrollmentID != nil {
		enrollment, err := tx.Enrollments.GetByID(ctx, *payment.EnrollmentID)
		if err != nil {
			return false, err
		}
		enrollment.Status = models.EnrollmentStatusActive
		return true, tx.Enrollments.Update(ctx, &enrollment)
	}

	if payment.ApplicationID == nil {
		s.logger.Warn().Str("reference", payment.Reference).Msg("tuition payment has no linked enrollment or application")
		return false, nil
	}

	application, err := tx.Applications.GetByID(ctx, *payment.ApplicationID)
	if err != nil {
		return false, err
	}

	enrollment, err := tx.Enrollments.GetByUserAndCourse(ctx, payment.UserID, application.CourseID)
	switch {
	case err == nil:
		enrollment.Status = models.EnrollmentStatusActive
		if err := tx.Enrollments.Update(ctx, &enrollment); err != nil {
			return false, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		enrollment = models.Enrollment{
			UserID:   payment.UserID,
			CourseID: application.CourseID,
			Status:   models.EnrollmentStatusActive,
		}
		if err := tx.Enrollments.Create(ctx, &enrollment); err != nil {
			return false, err
		}
	default:
		return false, err
	}

	if err := tx.Payments.LinkEnrollment(ctx, payment.ID, enrollment.ID); err != nil {
		return false, err
	}
	payment.EnrollmentID = &enrollment.ID

	return true, nil
}

func (s *paymentService) dispatchInstallment(ctx context.Context, tx repository.Repositories, payment *models.Payment, paidAt time.Time) (bool, error) {
	courseID, ok := payment.MetadataUint("course_id")
	if !ok && payment.ApplicationID != nil {
		application, err := tx.Applications.GetByID(ctx, *payment.ApplicationID)
		if err != nil {
			return false, err
		}
		courseID = application.CourseID
		ok = true
	}
	if !ok {
		s.logger.Warn().Str("reference", payment.Reference).Msg("installment payment carries no course metadata")
		return false, nil
	}

	if payment.MetadataBool("initial_installment") {
		return s.createInstallmentPlan(ctx, tx, payment, courseID, paidAt)
	}

	return s.settleNextInstallment(ctx, tx, payment, courseID, paidAt)
}

// createInstallmentPlan activates the enrollment and lays out the full
// schedule: the upfront installment is settled by this payment and the
// remaining shares of the course price fall due month by month.
func (s *paymentService) createInstallmentPlan(ctx context.Context, tx repository.Repositories, payment *models.Payment, courseID uint, paidAt time.Time) (bool, error) {
	course, err := tx.Courses.GetByID(ctx, courseID)
	if err != nil {
		return false, err
	}

	enrollment, err := tx.Enrollments.GetByUserAndCourse(ctx, payment.UserID, courseID)
	switch {
	case err == nil:
		enrollment.Status = models.EnrollmentStatusActive
		if err := tx.Enrollments.Update(ctx, &enrollment); err != nil {
			return false, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		enrollment = models.Enrollment{
			UserID:   payment.UserID,
			CourseID: courseID,
			Status:   models.EnrollmentStatusActive,
		}
		if err := tx.Enrollments.Create(ctx, &enrollment); err != nil {
			return false, err
		}
	default:
		return false, err
	}

	cfg := course.InstallmentPlan()
	count := cfg.InstallmentCount
	monthly := (course.Price - payment.Amount) / float64(count-1)

	installments := make([]models.PaymentInstallment, 0, count)
	installments = append(installments, models.PaymentInstallment{
		InstallmentNumber: 1,
		Amount:            payment.Amount,
		DueDate:           paidAt,
		Status:            models.InstallmentStatusPaid,
		PaidAt:            &paidAt,
		PaymentID:         &payment.ID,
	})

	for i := 2; i <= count; i++ {
		amount := monthly
		if i-2 < len(cfg.Shares) && cfg.Shares[i-2] > 0 {
			amount = course.Price * cfg.Shares[i-2] / 100
		}
		installments = append(installments, models.PaymentInstallment{
			InstallmentNumber: i,
			Amount:            amount,
			DueDate:           paidAt.AddDate(0, i-1, 0),
			Status:            models.InstallmentStatusPending,
		})
	}

	plan := models.PaymentPlan{
		UserID:           payment.UserID,
		CourseID:         courseID,
		TotalAmount:      course.Price,
		InstallmentCount: count,
		MonthlyAmount:    monthly,
		StartDate:        paidAt,
		EndDate:          paidAt.AddDate(0, count-1, 0),
		Status:           models.PaymentPlanStatusActive,
		Installments:     installments,
	}
	if err := tx.Payments.CreatePlan(ctx, &plan); err != nil {
		return false, err
	}

	if err := tx.Payments.LinkEnrollment(ctx, payment.ID, enrollment.ID); err != nil {
		return false, err
	}
	payment.EnrollmentID = &enrollment.ID

	return true, nil
}

// settleNextInstallment marks the earliest pending installment of the
// existing plan as paid by this payment.
func (s *paymentService) settleNextInstallment(ctx context.Context, tx repository.Repositories, payment *models.Payment, courseID uint, paidAt time.Time) (bool, error) {
	plan, err := tx.Payments.GetPlanByUserAndCourse(ctx, payment.UserID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().
				Str("reference", payment.Reference).
				Uint("course_id", courseID).
				Msg("installment payment received but no plan exists")
			return false, nil
		}
		return false, err
	}

	settled := false
	remaining := 0
	for i := range plan.Installments {
		installment := &plan.Installments[i]
		if installment.Status != models.InstallmentStatusPending {
			continue
		}
		if !settled {
			installment.Status = models.InstallmentStatusPaid
			installment.PaidAt = &paidAt
			installment.PaymentID = &payment.ID
			if err := tx.Payments.UpdateInstallment(ctx, installment); err != nil {
				return false, err
			}
			settled = true
			continue
		}
		remaining++
	}

	if !settled {
		s.logger.Warn().Str("reference", payment.Reference).Msg("installment payment received but every installment is already paid")
	}

	if settled && remaining == 0 {
		plan.Status = models.PaymentPlanStatusSettled
		if err := tx.Payments.UpdatePlan(ctx, &plan); err != nil {
			return false, err
		}
	}

	enrollment, err := tx.Enrollments.GetByUserAndCourse(ctx, payment.UserID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := tx.Payments.LinkEnrollment(ctx, payment.ID, enrollment.ID); err != nil {
		return false, err
	}
	payment.EnrollmentID = &enrollment.ID

	return enrollment.IsActive(), nil
}

func (s *paymentService) sendConfirmations(ctx context.Context, payment models.Payment, enrollmentActive bool) {
	if s.notifier == nil {
		return
	}

	courseTitle := resolveCourseTitle(payment)

	message := fmt.Sprintf("Your payment of %.2f for %s was confirmed.", payment.Amount, courseTitle)
	s.notifier.Notify(ctx, payment.UserID, models.NotificationKindPayment, message, map[string]interface{}{
		"reference": payment.Reference,
		"type":      payment.Type,
		"amount":    payment.Amount,
	})

	if enrollmentActive && payment.EnrollmentID != nil {
		message := fmt.Sprintf("Your enrollment in %s is now active.", courseTitle)
		s.notifier.Notify(ctx, payment.UserID, models.NotificationKindEnrollment, message, map[string]interface{}{
			"reference":     payment.Reference,
			"enrollment_id": *payment.EnrollmentID,
		})
	}
}

// resolveCourseTitle prefers the enrollment's course, then the application's,
// then a generic fallback.
func resolveCourseTitle(payment models.Payment) string {
	if payment.Enrollment != nil && payment.Enrollment.Course.Title != "" {
		return payment.Enrollment.Course.Title
	}
	if payment.Application != nil && payment.Application.Course.Title != "" {
		return payment.Application.Course.Title
	}
	return "Course"
}
