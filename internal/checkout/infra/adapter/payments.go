package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bloemendal/storefront/internal/checkout/app"
	"github.com/bloemendal/storefront/internal/checkout/domain"
)

// PaymentClient talks to the payment service. Confirmation and challenge
// flows are handled entirely by the service's own widget; this client only
// creates intents.
type PaymentClient struct {
	baseURL string
	client  *http.Client
}

func NewPaymentClient(baseURL string) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type intentRequest struct {
	OrderID        string  `json:"order_id"`
	PaymentMethod  string  `json:"payment_method"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	ReceiptEmail   string  `json:"receipt_email"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Error        string `json:"error"`
}

func (c *PaymentClient) CreateIntent(ctx context.Context, req app.IntentRequest) (domain.PaymentIntent, error) {
	body, err := json.Marshal(intentRequest{
		OrderID:        req.OrderID,
		PaymentMethod:  req.Method,
		Amount:         req.Amount.InexactFloat64(),
		Currency:       "eur",
		ReceiptEmail:   req.Email,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("payment service: %w", err)
	}
	defer resp.Body.Close()

	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || out.ClientSecret == "" {
		return domain.PaymentIntent{}, fmt.Errorf("payment service returned %d: %s", resp.StatusCode, out.Error)
	}

	return domain.PaymentIntent{
		ID:           out.ID,
		ClientSecret: out.ClientSecret,
	}, nil
}
