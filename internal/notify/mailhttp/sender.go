package mailhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bloemendal/storefront/internal/notify"
)

// Sender posts render-and-send requests to the transactional mail API.
type Sender struct {
	endpoint string
	from     string
	client   *http.Client
}

func NewSender(endpoint, from string) *Sender {
	return &Sender{
		endpoint: endpoint,
		from:     from,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	Template string         `json:"template"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Props    map[string]any `json:"props,omitempty"`
}

func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(sendRequest{
		Template: msg.Template,
		From:     s.from,
		To:       msg.To,
		Props:    msg.Props,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mail service returned %d", resp.StatusCode)
	}
	return nil
}
