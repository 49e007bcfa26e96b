// Package gemini calls the Gemini generateContent API with a
// pool-supplied credential per request.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/trace"
	"dual-llm-trader/internal/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Client struct {
	baseURL string
	http    *http.Client
}

var _ interfaces.Inference = (*Client)(nil)

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Generate issues one generateContent call and returns the raw
// response text. Credential failure modes come back as typed errors
// the caller reports to the pool.
func (c *Client) Generate(ctx context.Context, cred types.Credential, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini.Generate")
	defer span.End()

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	bb, _ := json.Marshal(body)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", cred.Key)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("inference call: %w", context.DeadlineExceeded)
		}
		return "", err
	}
	defer resp.Body.Close()

	if kindErr := faults.ClassifyHTTP(resp.StatusCode); kindErr != nil {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s", kindErr, strings.TrimSpace(string(slurp)))
	}

	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: %v", faults.ErrResponseMalformed, err)
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", faults.ErrResponseMalformed)
	}
	return strings.TrimSpace(r.Candidates[0].Content.Parts[0].Text), nil
}
