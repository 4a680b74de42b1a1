// Package moderation scores user submitted text with an external classifier.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Classifier returns a toxicity score in [0, 1] for text
type Classifier interface {
	Score(ctx context.Context, text string) (float64, error)
}

// HTTPClassifier posts text to a moderation model served over HTTP.
// The endpoint accepts {"text": "..."} and answers {"toxicity": 0.12}.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier creates a classifier client
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Toxicity float64 `json:"toxicity"`
}

// Score calls the classifier
func (h *HTTPClassifier) Score(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("moderation status %d", resp.StatusCode)
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("moderation decode: %w", err)
	}
	if out.Toxicity < 0 || out.Toxicity > 1 {
		return 0, fmt.Errorf("moderation score %v out of range", out.Toxicity)
	}
	return out.Toxicity, nil
}

// NoopClassifier scores everything as clean
type NoopClassifier struct{}

// Score always returns 0
func (NoopClassifier) Score(context.Context, string) (float64, error) { return 0, nil }

// FixedClassifier returns a preset score or error, for tests
type FixedClassifier struct {
	Value float64
	Err   error
}

// Score returns the preset result
func (f FixedClassifier) Score(context.Context, string) (float64, error) { return f.Value, f.Err }
