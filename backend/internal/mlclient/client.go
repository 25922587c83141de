// Package mlclient is a thin HTTP client for the external ML prediction
// service. It performs no retries; callers own the retry policy.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"studentpredict/backend/internal/shared"
)

// Result is one inference outcome as returned by the predictor.
type Result struct {
	PredictedLabel    string             `json:"predicted_label"`
	RiskCategory      string             `json:"risk_category"`
	RiskScore         float64            `json:"risk_score"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// UpstreamError reports a failed call to the external predictor: a network
// failure, a non-2xx status, or a malformed response body.
type UpstreamError struct {
	Status  int // 0 when the request never completed
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("ML API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ML API error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client calls the external predictor. Batch calls get a longer timeout
// since payloads can be large.
type Client struct {
	baseURL      string
	singleClient *http.Client
	batchClient  *http.Client
}

// New builds a Client from ML service configuration.
func New(cfg shared.MLConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		singleClient: &http.Client{Timeout: cfg.SingleTimeout},
		batchClient:  &http.Client{Timeout: cfg.BatchTimeout},
	}
}

// PredictSingle sends one feature record to POST /predict/single.
func (c *Client) PredictSingle(ctx context.Context, features map[string]interface{}) (*Result, error) {
	body, err := c.post(ctx, c.singleClient, "/predict/single", map[string]interface{}{
		"features": features,
	})
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UpstreamError{Message: "invalid response from ML API: malformed prediction", Err: err}
	}
	return &result, nil
}

// PredictBatch sends all records in one POST /predict/batch request, no
// chunking. The response is `{items: [...]}` (or a bare array, tolerated for
// backward compatibility) with results index-aligned to the input records.
// A response whose item count differs from the record count is rejected:
// the caller zips results to records purely by position.
func (c *Client) PredictBatch(ctx context.Context, records []map[string]interface{}) ([]Result, error) {
	log.Printf("Calling ML API batch predict with %d records", len(records))

	body, err := c.post(ctx, c.batchClient, "/predict/batch", map[string]interface{}{
		"records": records,
	})
	if err != nil {
		return nil, err
	}

	results, err := unwrapBatchResults(body)
	if err != nil {
		return nil, err
	}

	if len(results) != len(records) {
		return nil, &UpstreamError{
			Message: fmt.Sprintf("invalid response from ML API: got %d results for %d records", len(results), len(records)),
		}
	}

	return results, nil
}

// unwrapBatchResults accepts either the `{items: [...]}` envelope or a bare
// array of results.
func unwrapBatchResults(body []byte) ([]Result, error) {
	var envelope struct {
		Items []Result `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Items != nil {
		return envelope.Items, nil
	}

	var bare []Result
	if err := json.Unmarshal(body, &bare); err == nil && bare != nil {
		return bare, nil
	}

	return nil, &UpstreamError{Message: "invalid response from ML API: expected array of results"}
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &UpstreamError{Message: "failed to encode request payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &UpstreamError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("ML API unreachable: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(body)}
	}

	return body, nil
}

// upstreamMessage pulls a human-readable message out of an error body,
// trying the common FastAPI/envelope keys before falling back to raw text.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "request failed"
	}
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
