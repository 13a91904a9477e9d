package service

import (
	"context"
	"strings"

	"github.com/noah-isme/eduflow-api/pkg/paystack"
)

// paystackVerifier adapts the Paystack client to the PaymentVerifier contract.
type paystackVerifier struct {
	client *paystack.Client
}

// NewPaystackVerifier wraps a Paystack client as a PaymentVerifier.
func NewPaystackVerifier(client *paystack.Client) PaymentVerifier {
	return &paystackVerifier{client: client}
}

func (v *paystackVerifier) Verify(ctx context.Context, reference string) (VerificationResult, error) {
	tx, err := v.client.VerifyTransaction(ctx, reference)
	if err != nil {
		return VerificationResult{}, err
	}

	return VerificationResult{
		Success:          strings.EqualFold(tx.Status, "success"),
		AmountMinorUnits: tx.Amount,
		PaidAt:           tx.PaidAt,
		GatewayStatus:    tx.Status,
		Metadata:         tx.Metadata,
	}, nil
}
