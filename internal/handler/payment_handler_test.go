package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/models"
	"github.com/noah-isme/eduflow-api/internal/service"
)

type stubVerifier struct {
	result service.VerificationResult
	err    error
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, _ string) (service.VerificationResult, error) {
	v.calls++
	if v.err != nil {
		return service.VerificationResult{}, v.err
	}
	return v.result, nil
}

func TestPaymentHandlerInitializeAndVerify(t *testing.T) {
	verifier := &stubVerifier{result: service.VerificationResult{
		Success:       true,
		PaidAt:        time.Now(),
		GatewayStatus: "success",
	}}
	app, db := setupApp(t, verifier)

	course := models.Course{Title: "Go Basics", InstructorID: 3, Price: 3000}
	require.NoError(t, db.Create(&course).Error)
	enrollment := models.Enrollment{UserID: 1, CourseID: course.ID, Status: models.EnrollmentStatusSuspended}
	require.NoError(t, db.Create(&enrollment).Error)

	payload, err := json.Marshal(map[string]interface{}{
		"type":          "tuition",
		"amount":        3000,
		"enrollment_id": enrollment.ID,
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/payments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool                `json:"success"`
		Data    dto.PaymentResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.NotEmpty(t, created.Data.Reference)
	require.Equal(t, models.PaymentStatusPending, created.Data.Status)
	require.Equal(t, uint(1), created.Data.UserID, "payer is the authenticated user")

	verifyReq := httptest.NewRequest("POST", "/api/v1/payments/"+created.Data.Reference+"/verify", nil)
	verifyResp, err := app.Test(verifyReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, verifyResp.StatusCode)

	var verified struct {
		Success bool                `json:"success"`
		Data    dto.ReconcileResult `json:"data"`
	}
	decodeResponse(t, verifyResp, &verified)
	require.True(t, verified.Data.Success)
	require.Equal(t, models.PaymentStatusCompleted, verified.Data.Status)

	var stored models.Enrollment
	require.NoError(t, db.First(&stored, enrollment.ID).Error)
	require.Equal(t, models.EnrollmentStatusActive, stored.Status)
}

func TestPaymentHandlerWebhookReconciles(t *testing.T) {
	verifier := &stubVerifier{result: service.VerificationResult{
		Success:       true,
		PaidAt:        time.Now(),
		GatewayStatus: "success",
	}}
	app, db := setupApp(t, verifier)

	course := models.Course{Title: "Go Basics", InstructorID: 3, Price: 3000}
	require.NoError(t, db.Create(&course).Error)
	enrollment := models.Enrollment{UserID: 1, CourseID: course.ID, Status: models.EnrollmentStatusSuspended}
	require.NoError(t, db.Create(&enrollment).Error)

	payment := models.Payment{
		Reference:    "hook-ref",
		UserID:       1,
		Type:         models.PaymentTypeTuition,
		Amount:       3000,
		Status:       models.PaymentStatusPending,
		EnrollmentID: &enrollment.ID,
	}
	require.NoError(t, db.Create(&payment).Error)

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "hook-ref"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var stored models.Payment
	require.NoError(t, db.First(&stored, payment.ID).Error)
	require.Equal(t, models.PaymentStatusCompleted, stored.Status)

	// Replaying the delivery is acknowledged without another gateway call.
	req = httptest.NewRequest("POST", "/api/v1/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 1, verifier.calls)
}

func TestPaymentHandlerWebhookUnknownReference(t *testing.T) {
	app, _ := setupApp(t, &stubVerifier{})

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  map[string]interface{}{"reference": "never-issued"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var ack struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &ack)
	require.True(t, ack.Success)
	require.Equal(t, "reference not recognized", ack.Message)
}
