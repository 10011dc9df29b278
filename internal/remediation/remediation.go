// Package remediation is the boundary to the external analysis
// backend. The pipeline treats it as an opaque long-running function:
// a problem statement goes in, a JSON document comes out.
package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Analyzer runs remediation analysis for a problem statement. The
// returned value must be JSON-serializable.
type Analyzer interface {
	Analyze(ctx context.Context, problem string) (json.RawMessage, error)
}

// HTTPAnalyzer calls the orchestrator service over HTTP.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
}

func NewHTTPAnalyzer(url string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Problem string `json:"problem"`
}

// Analyze posts the problem statement and returns the raw JSON body.
// Calls can run for minutes; the context and client timeout bound them.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, problem string) (json.RawMessage, error) {
	body, err := json.Marshal(analyzeRequest{Problem: problem})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remediation call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remediation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remediation backend returned status %d", resp.StatusCode)
	}

	if !json.Valid(data) {
		// Non-JSON output still has to reach the results topic;
		// stringify it the way the worker serializes any other
		// unstructured value.
		data, err = json.Marshal(string(data))
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}
