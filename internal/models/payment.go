package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment is a single gateway transaction. The reference is assigned before
// the gateway redirect and is unique; status leaves pending exactly once.
type Payment struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Reference    string            `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	UserID       uint              `gorm:"index;not null" json:"user_id"`
	Type         string            `gorm:"size:32;not null" json:"type"`
	Amount       float64           `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status       string            `gorm:"size:32;not null" json:"status"`
	ApplicationID *uint            `gorm:"index" json:"application_id"`
	EnrollmentID  *uint            `gorm:"index" json:"enrollment_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	PaidAt        *time.Time       `json:"paid_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Application   *Application     `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`
	Enrollment    *Enrollment      `gorm:"foreignKey:EnrollmentID" json:"enrollment,omitempty"`
}

const (
	// PaymentTypeApplicationFee covers the course application fee.
	PaymentTypeApplicationFee = "application_fee"
	// PaymentTypeTuition covers full tuition paid in one transaction.
	PaymentTypeTuition = "tuition"
	// PaymentTypeInstallment covers one installment of a payment plan.
	PaymentTypeInstallment = "installment"

	// PaymentStatusPending indicates the gateway has not confirmed yet.
	PaymentStatusPending = "pending"
	// PaymentStatusCompleted indicates the gateway confirmed the charge.
	PaymentStatusCompleted = "completed"
	// PaymentStatusFailed indicates the gateway rejected the charge.
	PaymentStatusFailed = "failed"
)

// MetadataUint reads an unsigned integer value out of the metadata map,
// accepting the numeric shapes JSON decoding produces.
func (p Payment) MetadataUint(key string) (uint, bool) {
	value, ok := p.Metadata[key]
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	default:
		return 0, false
	}
}

// MetadataBool reads a boolean flag out of the metadata map.
func (p Payment) MetadataBool(key string) bool {
	value, ok := p.Metadata[key]
	if !ok {
		return false
	}

	flag, ok := value.(bool)
	return ok && flag
}

// PaymentPlan is an installment schedule for one enrollment's tuition.
type PaymentPlan struct {
	ID               uint                 `gorm:"primaryKey" json:"id"`
	UserID           uint                 `gorm:"index;not null" json:"user_id"`
	CourseID         uint                 `gorm:"index;not null" json:"course_id"`
	TotalAmount      float64              `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	InstallmentCount int                  `gorm:"not null" json:"installment_count"`
	MonthlyAmount    float64              `gorm:"type:numeric(12,2);not null" json:"monthly_amount"`
	StartDate        time.Time            `gorm:"not null" json:"start_date"`
	EndDate          time.Time            `gorm:"not null" json:"end_date"`
	Status           string               `gorm:"size:32;not null" json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Installments     []PaymentInstallment `gorm:"foreignKey:PaymentPlanID" json:"installments"`
}

const (
	// PaymentPlanStatusActive indicates future installments remain due.
	PaymentPlanStatusActive = "active"
	// PaymentPlanStatusSettled indicates every installment has been paid.
	PaymentPlanStatusSettled = "settled"
)

// PaymentInstallment is one scheduled payment within a plan.
type PaymentInstallment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	PaymentPlanID     uint       `gorm:"index;not null" json:"payment_plan_id"`
	InstallmentNumber int        `gorm:"not null" json:"installment_number"`
	Amount            float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	DueDate           time.Time  `gorm:"not null" json:"due_date"`
	Status            string     `gorm:"size:32;not null" json:"status"`
	PaidAt            *time.Time `json:"paid_at"`
	PaymentID         *uint      `gorm:"index" json:"payment_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

const (
	// InstallmentStatusPending indicates the installment awaits payment.
	InstallmentStatusPending = "pending"
	// InstallmentStatusPaid indicates a payment settled the installment.
	InstallmentStatusPaid = "paid"
)
