package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"match-engine/models"

	"github.com/rotisserie/eris"
)

// PaymentServiceClient asks the external payment service to authorize a
// participant's seat.
type PaymentServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type authorizeResponse struct {
	Status string `json:"status"`
}

func NewPaymentServiceClient(baseURL, token string) *PaymentServiceClient {
	return &PaymentServiceClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authorize calls POST /payments/authorize. Unknown statuses are errors so the
// participant stays pending.
func (c *PaymentServiceClient) Authorize(ctx context.Context, matchID, userID string) (models.PaymentStatus, error) {
	url := fmt.Sprintf("%s/payments/authorize", c.BaseURL)

	jsonData, err := json.Marshal(map[string]string{
		"match_id": matchID,
		"user_id":  userID,
	})
	if err != nil {
		return "", eris.Wrap(err, "failed to encode authorize request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", eris.Wrap(err, "failed to build authorize request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "payment service unreachable")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("payment authorize returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out authorizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", eris.Wrap(err, "failed to decode authorize response")
	}

	switch status := models.PaymentStatus(strings.ToUpper(out.Status)); status {
	case models.PaymentPending, models.PaymentConfirmed, models.PaymentFailed:
		return status, nil
	default:
		return "", eris.Errorf("unknown payment status %q", out.Status)
	}
}
