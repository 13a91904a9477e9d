package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

// Config contains credentials and tuning for the Paystack client.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Paystack REST API.
type Client struct {
	http    *http.Client
	baseURL string
	secret  string
	logger  zerolog.Logger
}

// Transaction is the subset of a Paystack transaction the caller needs to
// settle a payment. Amount is in minor units (kobo/cents).
type Transaction struct {
	Status   string                 `json:"status"`
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Channel  string                 `json:"channel"`
	PaidAt   time.Time              `json:"paid_at"`
	Metadata map[string]interface{} `json:"metadata"`
}

type verifyEnvelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// New constructs a Paystack client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key must be provided")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		secret:  cfg.SecretKey,
		logger:  logger.With().Str("component", "paystack").Logger(),
	}, nil
}

// VerifyTransaction fetches the authoritative state of a transaction by
// reference. A non-2xx response or transport failure returns an error; a
// declined charge returns the transaction with its gateway status.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (Transaction, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("reference", reference).
			Msg("gateway returned non-success status")
		return Transaction{}, fmt.Errorf("gateway responded with status %d", resp.StatusCode)
	}

	var envelope verifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Transaction{}, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if !envelope.Status {
		return Transaction{}, fmt.Errorf("gateway rejected verification: %s", envelope.Message)
	}

	return envelope.Data, nil
}
