package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bloemendal/storefront/internal/promo/app"
	"github.com/bloemendal/storefront/internal/promo/domain"
	"github.com/shopspring/decimal"
)

// Validator calls the external promo validation endpoint.
type Validator struct {
	endpoint string
	client   *http.Client
}

func NewValidator(endpoint string) *Validator {
	return &Validator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type validateRequest struct {
	Code       string         `json:"code"`
	OrderTotal float64        `json:"orderTotal"`
	Items      []validateItem `json:"items,omitempty"`
}

type validateItem struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type validateResponse struct {
	Valid          bool    `json:"valid"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  float64 `json:"discountValue"`
	DiscountAmount float64 `json:"discountAmount"`
	Error          string  `json:"error"`
}

func (v *Validator) Validate(ctx context.Context, code string, orderTotal decimal.Decimal, lines []app.CartLine) (app.Result, error) {
	req := validateRequest{
		Code:       code,
		OrderTotal: orderTotal.InexactFloat64(),
	}
	for _, l := range lines {
		req.Items = append(req.Items, validateItem{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return app.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return app.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return app.Result{}, fmt.Errorf("promo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return app.Result{}, fmt.Errorf("promo endpoint returned %d", resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return app.Result{}, fmt.Errorf("decode response: %w", err)
	}

	if !out.Valid {
		return app.Result{Valid: false, Reason: out.Error}, nil
	}

	return app.Result{
		Valid:  true,
		Type:   domain.DiscountType(out.DiscountType),
		Value:  decimal.NewFromFloat(out.DiscountValue),
		Amount: decimal.NewFromFloat(out.DiscountAmount),
	}, nil
}
