package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quiz-room-service/internal/domain"
)

const maxResponseBytes = 1 << 20

// Client calls the external question generator. It POSTs {topic, difficulty}
// and expects either a JSON array of questions or {"message": "..."} when the
// generator declines the request.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type request struct {
	Topic      string            `json:"topic"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

type failure struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	body, err := json.Marshal(request{Topic: topic, Difficulty: difficulty})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read generator response: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(raw) > 0 && raw[0] == '[' {
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("decode generator response: %w", err)
		}
		return questions, nil
	}

	var f failure
	if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &f) == nil && f.Message != "" {
		return nil, &domain.ProviderError{
			Message: f.Message,
			Err:     fmt.Errorf("generator status %d: %s", resp.StatusCode, f.Error),
		}
	}
	return nil, fmt.Errorf("unexpected generator response (status %d)", resp.StatusCode)
}
