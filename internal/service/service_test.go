package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeSubmissionRepo is an in-memory SubmissionRepository.
type fakeSubmissionRepo struct {
	submissions map[uint]models.AssignmentSubmission
	history     []models.GradingHistory
	nextID      uint
	updateCalls int
	historyErr  error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[uint]models.AssignmentSubmission), nextID: 1}
}

func (f *fakeSubmissionRepo) add(submission models.AssignmentSubmission) models.AssignmentSubmission {
	if submission.ID == 0 {
		submission.ID = f.nextID
	}
	if submission.ID >= f.nextID {
		f.nextID = submission.ID + 1
	}
	f.submissions[submission.ID] = submission
	return submission
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.AssignmentSubmission, error) {
	submission, ok := f.submissions[id]
	if !ok {
		return models.AssignmentSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.AssignmentSubmission, error) {
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return models.AssignmentSubmission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.AssignmentSubmission) error {
	if _, err := f.GetByAssignmentAndStudent(ctx, submission.AssignmentID, submission.StudentID); err == nil {
		return gorm.ErrDuplicatedKey
	}
	submission.ID = f.nextID
	f.nextID++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.AssignmentSubmission) error {
	f.updateCalls++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) ListByAssignment(ctx context.Context, assignmentID uint, filter repository.SubmissionFilter) ([]models.AssignmentSubmission, int64, error) {
	var result []models.AssignmentSubmission
	for _, submission := range f.submissions {
		if submission.AssignmentID != assignmentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		result = append(result, submission)
	}
	return result, int64(len(result)), nil
}

func (f *fakeSubmissionRepo) ListByStudent(ctx context.Context, studentID uint, filter repository.SubmissionFilter) ([]models.AssignmentSubmission, int64, error) {
	var result []models.AssignmentSubmission
	for _, submission := range f.submissions {
		if submission.StudentID != studentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		result = append(result, submission)
	}
	return result, int64(len(result)), nil
}

func (f *fakeSubmissionRepo) ListGraded(ctx context.Context, assignmentID uint) ([]models.AssignmentSubmission, error) {
	var result []models.AssignmentSubmission
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.IsGraded() {
			result = append(result, submission)
		}
	}
	return result, nil
}

func (f *fakeSubmissionRepo) CountNonDraft(ctx context.Context, assignmentID uint) (int64, error) {
	var total int64
	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.Status != models.SubmissionStatusDraft {
			total++
		}
	}
	return total, nil
}

func (f *fakeSubmissionRepo) CreateHistory(ctx context.Context, entry *models.GradingHistory) error {
	if f.historyErr != nil {
		return f.historyErr
	}
	entry.ID = uint(len(f.history) + 1)
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeSubmissionRepo) ListHistory(ctx context.Context, submissionID uint) ([]models.GradingHistory, error) {
	var entries []models.GradingHistory
	for _, entry := range f.history {
		if entry.SubmissionID == submissionID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// fakeAssignmentRepo is an in-memory AssignmentRepository with counter spies.
type fakeAssignmentRepo struct {
	assignments          map[uint]models.Assignment
	submissionIncrements int
	gradedIncrements     int
}

func newFakeAssignmentRepo(assignments ...models.Assignment) *fakeAssignmentRepo {
	repo := &fakeAssignmentRepo{assignments: make(map[uint]models.Assignment)}
	for _, assignment := range assignments {
		repo.assignments[assignment.ID] = assignment
	}
	return repo
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) IncrementSubmissionCount(ctx context.Context, id uint) error {
	f.submissionIncrements++
	assignment := f.assignments[id]
	assignment.SubmissionCount++
	f.assignments[id] = assignment
	return nil
}

func (f *fakeAssignmentRepo) IncrementGradedCount(ctx context.Context, id uint) error {
	f.gradedIncrements++
	assignment := f.assignments[id]
	assignment.GradedCount++
	f.assignments[id] = assignment
	return nil
}

// fakeEnrollmentRepo is an in-memory EnrollmentRepository.
type fakeEnrollmentRepo struct {
	enrollments map[uint]models.Enrollment
	nextID      uint
}

func newFakeEnrollmentRepo(enrollments ...models.Enrollment) *fakeEnrollmentRepo {
	repo := &fakeEnrollmentRepo{enrollments: make(map[uint]models.Enrollment), nextID: 1}
	for _, enrollment := range enrollments {
		if enrollment.ID == 0 {
			enrollment.ID = repo.nextID
		}
		if enrollment.ID >= repo.nextID {
			repo.nextID = enrollment.ID + 1
		}
		repo.enrollments[enrollment.ID] = enrollment
	}
	return repo
}

func (f *fakeEnrollmentRepo) GetByID(ctx context.Context, id uint) (models.Enrollment, error) {
	enrollment, ok := f.enrollments[id]
	if !ok {
		return models.Enrollment{}, gorm.ErrRecordNotFound
	}
	return enrollment, nil
}

func (f *fakeEnrollmentRepo) GetByUserAndCourse(ctx context.Context, userID, courseID uint) (models.Enrollment, error) {
	for _, enrollment := range f.enrollments {
		if enrollment.UserID == userID && enrollment.CourseID == courseID {
			return enrollment, nil
		}
	}
	return models.Enrollment{}, gorm.ErrRecordNotFound
}

func (f *fakeEnrollmentRepo) GetActive(ctx context.Context, userID, courseID uint) (models.Enrollment, error) {
	enrollment, err := f.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil || !enrollment.IsActive() {
		return models.Enrollment{}, gorm.ErrRecordNotFound
	}
	return enrollment, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = f.nextID
	f.nextID++
	f.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (f *fakeEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	f.enrollments[enrollment.ID] = *enrollment
	return nil
}

// fakeCourseRepo is an in-memory CourseRepository.
type fakeCourseRepo struct {
	courses map[uint]models.Course
}

func newFakeCourseRepo(courses ...models.Course) *fakeCourseRepo {
	repo := &fakeCourseRepo{courses: make(map[uint]models.Course)}
	for _, course := range courses {
		repo.courses[course.ID] = course
	}
	return repo
}

func (f *fakeCourseRepo) GetByID(ctx context.Context, id uint) (models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

// fakeApplicationRepo is an in-memory ApplicationRepository.
type fakeApplicationRepo struct {
	applications map[uint]models.Application
	drafts       map[uint]models.ApplicationDraft
	nextID       uint
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{
		applications: make(map[uint]models.Application),
		drafts:       make(map[uint]models.ApplicationDraft),
		nextID:       1,
	}
}

func (f *fakeApplicationRepo) addApplication(application models.Application) models.Application {
	if application.ID == 0 {
		application.ID = f.nextID
	}
	if application.ID >= f.nextID {
		f.nextID = application.ID + 1
	}
	f.applications[application.ID] = application
	return application
}

func (f *fakeApplicationRepo) addDraft(draft models.ApplicationDraft) models.ApplicationDraft {
	if draft.ID == 0 {
		draft.ID = f.nextID
	}
	if draft.ID >= f.nextID {
		f.nextID = draft.ID + 1
	}
	f.drafts[draft.ID] = draft
	return draft
}

func (f *fakeApplicationRepo) GetByID(ctx context.Context, id uint) (models.Application, error) {
	application, ok := f.applications[id]
	if !ok {
		return models.Application{}, gorm.ErrRecordNotFound
	}
	return application, nil
}

func (f *fakeApplicationRepo) Create(ctx context.Context, application *models.Application) error {
	application.ID = f.nextID
	f.nextID++
	f.applications[application.ID] = *application
	return nil
}

func (f *fakeApplicationRepo) Update(ctx context.Context, application *models.Application) error {
	f.applications[application.ID] = *application
	return nil
}

func (f *fakeApplicationRepo) GetDraft(ctx context.Context, userID, courseID uint) (models.ApplicationDraft, error) {
	for _, draft := range f.drafts {
		if draft.UserID == userID && draft.CourseID == courseID {
			return draft, nil
		}
	}
	return models.ApplicationDraft{}, gorm.ErrRecordNotFound
}

func (f *fakeApplicationRepo) DeleteDraft(ctx context.Context, id uint) error {
	delete(f.drafts, id)
	return nil
}

// fakePaymentRepo is an in-memory PaymentRepository with compare-and-set
// semantics matching the real implementation.
type fakePaymentRepo struct {
	payments map[string]models.Payment
	plans    map[uint]models.PaymentPlan
	nextID   uint
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[string]models.Payment),
		plans:    make(map[uint]models.PaymentPlan),
		nextID:   1,
	}
}

func (f *fakePaymentRepo) add(payment models.Payment) models.Payment {
	if payment.ID == 0 {
		payment.ID = f.nextID
	}
	if payment.ID >= f.nextID {
		f.nextID = payment.ID + 1
	}
	f.payments[payment.Reference] = payment
	return payment
}

func (f *fakePaymentRepo) GetByReference(ctx context.Context, reference string) (models.Payment, error) {
	payment, ok := f.payments[reference]
	if !ok {
		return models.Payment{}, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = f.nextID
	f.nextID++
	f.payments[payment.Reference] = *payment
	return nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	f.payments[payment.Reference] = *payment
	return nil
}

func (f *fakePaymentRepo) MarkCompleted(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	payment, ok := f.payments[reference]
	if !ok || payment.Status != models.PaymentStatusPending {
		return false, nil
	}
	payment.Status = models.PaymentStatusCompleted
	payment.PaidAt = &paidAt
	f.payments[reference] = payment
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(ctx context.Context, reference string) (bool, error) {
	payment, ok := f.payments[reference]
	if !ok || payment.Status != models.PaymentStatusPending {
		return false, nil
	}
	payment.Status = models.PaymentStatusFailed
	f.payments[reference] = payment
	return true, nil
}

func (f *fakePaymentRepo) byID(id uint) (string, models.Payment, bool) {
	for reference, payment := range f.payments {
		if payment.ID == id {
			return reference, payment, true
		}
	}
	return "", models.Payment{}, false
}

func (f *fakePaymentRepo) LinkApplication(ctx context.Context, paymentID, applicationID uint) error {
	if reference, payment, ok := f.byID(paymentID); ok {
		payment.ApplicationID = &applicationID
		f.payments[reference] = payment
	}
	return nil
}

func (f *fakePaymentRepo) LinkEnrollment(ctx context.Context, paymentID, enrollmentID uint) error {
	if reference, payment, ok := f.byID(paymentID); ok {
		payment.EnrollmentID = &enrollmentID
		f.payments[reference] = payment
	}
	return nil
}

func (f *fakePaymentRepo) CreatePlan(ctx context.Context, plan *models.PaymentPlan) error {
	plan.ID = f.nextID
	f.nextID++
	for i := range plan.Installments {
		plan.Installments[i].ID = f.nextID
		f.nextID++
		plan.Installments[i].PaymentPlanID = plan.ID
	}
	f.plans[plan.ID] = *plan
	return nil
}

func (f *fakePaymentRepo) GetPlanByUserAndCourse(ctx context.Context, userID, courseID uint) (models.PaymentPlan, error) {
	for _, plan := range f.plans {
		if plan.UserID == userID && plan.CourseID == courseID {
			return plan, nil
		}
	}
	return models.PaymentPlan{}, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) UpdatePlan(ctx context.Context, plan *models.PaymentPlan) error {
	stored := f.plans[plan.ID]
	stored.Status = plan.Status
	f.plans[plan.ID] = stored
	return nil
}

func (f *fakePaymentRepo) UpdateInstallment(ctx context.Context, installment *models.PaymentInstallment) error {
	plan := f.plans[installment.PaymentPlanID]
	for i := range plan.Installments {
		if plan.Installments[i].ID == installment.ID {
			plan.Installments[i] = *installment
		}
	}
	f.plans[installment.PaymentPlanID] = plan
	return nil
}

// fakeNotificationRepo is an in-memory NotificationRepository.
type fakeNotificationRepo struct {
	notifications []models.Notification
	createErr     error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	notification.ID = uint(len(f.notifications) + 1)
	f.notifications = append(f.notifications, *notification)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	var result []models.Notification
	for _, notification := range f.notifications {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID uint) (models.Notification, error) {
	for i, notification := range f.notifications {
		if notification.ID == id && notification.UserID == userID {
			f.notifications[i].Read = true
			return f.notifications[i], nil
		}
	}
	return models.Notification{}, gorm.ErrRecordNotFound
}

// fakeTxManager hands a fixed repository set to the closure without any real
// transaction semantics.
type fakeTxManager struct {
	repos repository.Repositories
	err   error
}

func (f *fakeTxManager) Transaction(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f.repos)
}

type sentNotification struct {
	UserID  uint
	Kind    string
	Message string
	Data    map[string]interface{}
}

// recordingNotifier captures notifications instead of delivering them.
type recordingNotifier struct {
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID uint, kind, message string, data map[string]interface{}) {
	r.sent = append(r.sent, sentNotification{UserID: userID, Kind: kind, Message: message, Data: data})
}

func (r *recordingNotifier) List(ctx context.Context, userID uint, limit, offset int) ([]dto.NotificationResponse, error) {
	return nil, nil
}

func (r *recordingNotifier) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, nil
}

func (r *recordingNotifier) kinds() []string {
	kinds := make([]string, 0, len(r.sent))
	for _, notification := range r.sent {
		kinds = append(kinds, notification.Kind)
	}
	return kinds
}
