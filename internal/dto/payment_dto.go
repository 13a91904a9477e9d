package dto

import (
	"time"

	"github.com/noah-isme/eduflow-api/internal/models"
)

// PaymentInitRequest creates a pending payment ahead of the gateway redirect.
type PaymentInitRequest struct {
	UserID        uint                   `json:"user_id" validate:"required,gt=0"`
	Type          string                 `json:"type" validate:"required,oneof=application_fee tuition installment"`
	Amount        float64                `json:"amount" validate:"required,gt=0"`
	ApplicationID *uint                  `json:"application_id"`
	EnrollmentID  *uint                  `json:"enrollment_id"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// PaymentResponse serializes a payment row.
type PaymentResponse struct {
	ID            uint                   `json:"id"`
	Reference     string                 `json:"reference"`
	UserID        uint                   `json:"user_id"`
	Type          string                 `json:"type"`
	Amount        float64                `json:"amount"`
	Status        string                 `json:"status"`
	ApplicationID *uint                  `json:"application_id"`
	EnrollmentID  *uint                  `json:"enrollment_id"`
	Metadata      map[string]interface{} `json:"metadata"`
	PaidAt        *time.Time             `json:"paid_at"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ReconcileResult reports the outcome of reconciling one gateway reference.
type ReconcileResult struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Payment PaymentResponse `json:"payment"`
}

// NewPaymentResponse converts a payment model into a DTO.
func NewPaymentResponse(model models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            model.ID,
		Reference:     model.Reference,
		UserID:        model.UserID,
		Type:          model.Type,
		Amount:        model.Amount,
		Status:        model.Status,
		ApplicationID: model.ApplicationID,
		EnrollmentID:  model.EnrollmentID,
		Metadata:      model.Metadata,
		PaidAt:        model.PaidAt,
		CreatedAt:     model.CreatedAt,
	}
}
