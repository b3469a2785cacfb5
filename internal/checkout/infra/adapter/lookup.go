package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bloemendal/storefront/internal/checkout/app"
)

// LookupClient queries the Dutch postcode lookup service.
type LookupClient struct {
	endpoint string
	client   *http.Client
}

func NewLookupClient(endpoint string) *LookupClient {
	return &LookupClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	FullAddress string `json:"fullAddress"`
	Error       string `json:"error"`
}

func (c *LookupClient) Lookup(ctx context.Context, postcode, houseNumber, addition string) (app.LookupResult, error) {
	q := url.Values{}
	q.Set("postcode", postcode)
	q.Set("number", houseNumber)
	if addition != "" {
		q.Set("addition", addition)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return app.LookupResult{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return app.LookupResult{}, fmt.Errorf("lookup service: %w", err)
	}
	defer resp.Body.Close()

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return app.LookupResult{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return app.LookupResult{}, fmt.Errorf("lookup failed: %s", out.Error)
	}

	return app.LookupResult{
		Street:      out.Street,
		City:        out.City,
		FullAddress: out.FullAddress,
	}, nil
}
