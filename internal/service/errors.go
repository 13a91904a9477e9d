package service

import (
	"errors"
	"strings"
)

// ErrAssignmentNotFound indicates the referenced assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrAssignmentNotPublished indicates the assignment is not open for submissions.
var ErrAssignmentNotPublished = errors.New("assignment is not published")

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrPaymentNotFound indicates no payment exists for the given reference.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrNotEnrolled indicates the student has no active enrollment in the course.
var ErrNotEnrolled = errors.New("student is not enrolled in this course")

// ErrAlreadySubmitted indicates a submission already exists and no resubmission was requested.
var ErrAlreadySubmitted = errors.New("assignment has already been submitted")

// ErrAlreadyGraded indicates the submission is frozen against student edits.
var ErrAlreadyGraded = errors.New("submission has already been graded")

// ErrDeadlinePassed indicates the due date passed and late submissions are not allowed.
var ErrDeadlinePassed = errors.New("submission deadline has passed")

// ErrAccessDenied indicates the actor does not own the entity they are acting on.
var ErrAccessDenied = errors.New("access denied")

// ErrVerificationUnavailable indicates the payment verifier could not be
// reached; the payment stays pending and the call is safe to retry.
var ErrVerificationUnavailable = errors.New("payment verification unavailable")

// ValidationError carries every validation problem found in one pass, so the
// caller can surface all of them at once instead of fixing them one by one.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role string
}
