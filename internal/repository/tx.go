package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository bound to one *gorm.DB handle, so a
// unit of work can run all of its writes against a single transaction.
type Repositories struct {
	Courses       CourseRepository
	Enrollments   EnrollmentRepository
	Applications  ApplicationRepository
	Assignments   AssignmentRepository
	Submissions   SubmissionRepository
	Payments      PaymentRepository
	Notifications NotificationRepository
}

// NewRepositories constructs the repository set for the given handle.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Courses:       NewCourseRepository(db),
		Enrollments:   NewEnrollmentRepository(db),
		Applications:  NewApplicationRepository(db),
		Assignments:   NewAssignmentRepository(db),
		Submissions:   NewSubmissionRepository(db),
		Payments:      NewPaymentRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

// TxManager runs a closure inside a database transaction. All repositories
// handed to the closure share that transaction; an error rolls everything
// back.
type TxManager interface {
	Transaction(ctx context.Context, fn func(tx Repositories) error) error
}

type txManager struct {
	db *gorm.DB
}

// NewTxManager instantiates the transaction manager.
func NewTxManager(db *gorm.DB) TxManager {
	return &txManager{db: db}
}

func (m *txManager) Transaction(ctx context.Context, fn func(tx Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
