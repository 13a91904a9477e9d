package paystack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestVerifyTransactionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/ref-123", r.URL.Path)
		require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"success","amount":300000,"currency":"NGN","channel":"card","paid_at":"2026-08-01T10:00:00Z","metadata":{"course_id":2}}}`))
	}))
	defer server.Close()

	client, err := New(Config{SecretKey: "sk_test_secret", BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	tx, err := client.VerifyTransaction(context.Background(), "ref-123")
	require.NoError(t, err)
	require.Equal(t, "success", tx.Status)
	require.Equal(t, int64(300000), tx.Amount)
	require.Equal(t, "NGN", tx.Currency)
	require.False(t, tx.PaidAt.IsZero())
	require.Equal(t, float64(2), tx.Metadata["course_id"])
}

func TestVerifyTransactionDeclinedCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"abandoned","amount":300000,"currency":"NGN"}}`))
	}))
	defer server.Close()

	client, err := New(Config{SecretKey: "sk_test_secret", BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	// A declined charge is not a transport error; the caller inspects Status.
	tx, err := client.VerifyTransaction(context.Background(), "ref-123")
	require.NoError(t, err)
	require.Equal(t, "abandoned", tx.Status)
}

func TestVerifyTransactionNonSuccessStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(Config{SecretKey: "sk_test_secret", BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.VerifyTransaction(context.Background(), "ref-123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestVerifyTransactionEnvelopeRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer server.Close()

	client, err := New(Config{SecretKey: "sk_test_secret", BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.VerifyTransaction(context.Background(), "ref-missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Transaction reference not found")
}

func TestNewRequiresSecretKey(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.Error(t, err)
}
