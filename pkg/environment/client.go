// Package environment talks to the external challenge-evaluation service.
// The service itself (how a challenge is executed against an LLM agent) is
// out of scope for this module — this package only defines the HTTP
// contract it exposes: POST /run-challenge, JSON request/response.
package environment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request is the payload sent to the environment service for one challenge
// evaluation. Concept is a single comma-joined string even though a node may
// carry several concepts, since the environment's RunChallenge contract
// takes one concept field — see pkg/mcts/common.go's joinConcepts.
type Request struct {
	EnvironmentName  string   `json:"environment_name"`
	Concept          string   `json:"concept"`
	DifficultyLevel  string   `json:"difficulty_level"`
	MaxAttempts      int      `json:"max_attempts"`
	PreviousProblems []string `json:"previous_problems,omitempty"`
}

// Attempt is one try at solving a challenge within a single evaluation run.
type Attempt struct {
	ProblemStatement    string `json:"problem_statement,omitempty"`
	TestsPassedNum      int    `json:"tests_passed_num"`
	TestsFailedNum      int    `json:"tests_failed_num"`
	TestsErroredNum     int    `json:"tests_errored_num"`
	Success             bool   `json:"success"`
	FixedByProblemFixer bool   `json:"fixed_by_problem_fixer"`
	AttemptNum          int    `json:"attempt_num"`
}

// Results is the environment service's response, decoded regardless of
// success — failures surface as Success=false with a populated Error field,
// never as a Go error, so callers don't need to special-case transport
// failure vs. a reported-but-unsuccessful run. The one exception is context
// cancellation, which is returned as a Go error so it composes with the
// scheduler's per-node timeout handling. Scoring is not computed here: each
// phase derives its own node value from DataTrail.
type Results struct {
	Success   bool      `json:"success"`
	DataTrail []Attempt `json:"data_trail,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Client is an HTTP client for the environment service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client whose HTTP requests time out after timeout (zero
// means no client-side timeout), grounded on the teacher's pkg/llm/client.go
// HTTP-client-with-timeout idiom.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// RunChallenge submits one challenge for evaluation. Network, HTTP-status,
// and decode errors are captured into Results.Error rather than returned, so
// callers don't need to special-case transport failure vs. a
// reported-but-unsuccessful run; only ctx cancellation is returned as an
// error.
func (c *Client) RunChallenge(ctx context.Context, req Request) (Results, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Results{Success: false, Error: fmt.Sprintf("encode request: %v", err)}, nil
	}

	endpoint := fmt.Sprintf("%s/run-challenge?environment_name=%s", c.BaseURL, url.QueryEscape(req.EnvironmentName))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Results{Success: false, Error: fmt.Sprintf("build request: %v", err)}, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Results{}, ctx.Err()
		}
		return Results{Success: false, Error: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Results{Success: false, Error: fmt.Sprintf("read response: %v", err)}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return Results{Success: false, Error: fmt.Sprintf("environment service returned %d: %s", resp.StatusCode, string(respBody))}, nil
	}

	var results Results
	if err := json.Unmarshal(respBody, &results); err != nil {
		return Results{Success: false, Error: fmt.Sprintf("decode response: %v", err)}, nil
	}
	return results, nil
}
