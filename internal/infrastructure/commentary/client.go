package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/predictbet/internal/domain"
)

// Client asks an external text service for a short settlement blurb.
// Strictly best-effort: callers treat any error as an empty commentary.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Second},
	}
}

type describeRequest struct {
	Result        domain.Result     `json:"result"`
	ProfitPercent float64           `json:"profit_percent"`
	ExitReason    domain.ExitReason `json:"exit_reason"`
	Locale        string            `json:"locale"`
}

type describeResponse struct {
	Text string `json:"text"`
}

func (c *Client) Describe(ctx context.Context, result domain.Result, profitPercent float64, reason domain.ExitReason, locale string) (string, error) {
	body, err := json.Marshal(describeRequest{
		Result:        result,
		ProfitPercent: profitPercent,
		ExitReason:    reason,
		Locale:        locale,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/describe", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: commentary endpoint returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var dr describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("decode commentary response: %w", err)
	}
	return dr.Text, nil
}
