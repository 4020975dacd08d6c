package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "MoritzLaurer/DeBERTa-v3-base-mnli-fever-anli"
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 4 << 10
)

// Client calls a Hugging Face Inference compatible zero-shot classification
// endpoint over HTTP.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for model at baseURL. apiKey may be empty for
// self-hosted endpoints. A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// classifyRequest is the JSON body for POST /models/{model}.
type classifyRequest struct {
	Inputs     []string           `json:"inputs"`
	Parameters classifyParameters `json:"parameters"`
}

type classifyParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

// classifyResult mirrors one element of the response array.
type classifyResult struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// Classify sends all texts in a single request with multi-label scoring.
// Every failure is wrapped with ErrUnavailable; no partial output is returned.
func (c *Client) Classify(ctx context.Context, texts []string, labels []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(classifyRequest{
		Inputs: texts,
		Parameters: classifyParameters{
			CandidateLabels: labels,
			MultiLabel:      true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", ErrUnavailable, err)
	}

	endpoint := c.baseURL + "/models/" + escapeModel(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw []classifyResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrUnavailable, err)
	}

	results := make([]Result, len(raw))
	for i, r := range raw {
		results[i] = Result{Labels: r.Labels, Scores: r.Scores}
	}
	if err := validate(results, texts, labels); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrUnavailable, err)
	}
	return results, nil
}

// escapeModel escapes each path segment of an "org/name" model id.
func escapeModel(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
