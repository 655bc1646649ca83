// Package client is a thin Go client for the testgen HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Minute // generation holds the response open

// Client calls the testgen HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// APIError is a non-2xx response decoded from the service error body.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("testgen api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Credentials override the server-side tracker defaults for one call.
type Credentials struct {
	Username string `json:"username,omitempty"`
	APIToken string `json:"api_token,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// TestCase is a single generated manual test case.
type TestCase struct {
	TestID         string   `json:"test_id"`
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
}

// TestCaseRecord is a stored test case set for one ticket.
type TestCaseRecord struct {
	TicketID    string     `json:"ticket_id"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"test_cases"`
	StoredAt    time.Time  `json:"stored_at"`
	Cached      bool       `json:"cached,omitempty"`
}

// SearchResult pairs a record with its similarity score.
type SearchResult struct {
	TestCaseRecord
	Score float64 `json:"score"`
}

// Health is the service health report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type generateRequest struct {
	TicketID    string       `json:"ticket_id"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

type searchRequest struct {
	Query    string   `json:"query"`
	Limit    int      `json:"limit,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// GenerateTestCase generates (or returns the stored) test case set for a ticket.
func (c *Client) GenerateTestCase(ctx context.Context, ticketID string, creds *Credentials) (TestCaseRecord, error) {
	var rec TestCaseRecord
	err := c.doJSON(ctx, http.MethodPost, "/generate-test-case",
		generateRequest{TicketID: ticketID, Credentials: creds}, &rec)
	return rec, err
}

// FetchStoredCase returns the stored record for a ticket.
func (c *Client) FetchStoredCase(ctx context.Context, ticketID string) (TestCaseRecord, error) {
	var rec TestCaseRecord
	err := c.doJSON(ctx, http.MethodGet, "/fetch-stored-case/"+url.PathEscape(ticketID), nil, &rec)
	return rec, err
}

// TestCaseCSV returns the CSV export for a ticket's stored record.
func (c *Client) TestCaseCSV(ctx context.Context, ticketID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/get-test-case-csv/"+url.PathEscape(ticketID), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read csv body: %w", err)
	}
	return data, nil
}

// SearchTestCases runs a semantic search over stored records. limit <= 0
// uses the server default; minScore nil uses the server default floor.
func (c *Client) SearchTestCases(ctx context.Context, query string, limit int, minScore *float64) ([]SearchResult, error) {
	var resp searchResponse
	err := c.doJSON(ctx, http.MethodPost, "/search-test-cases",
		searchRequest{Query: query, Limit: limit, MinScore: minScore}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// HealthCheck returns the service health report. A degraded service is not
// an error here; inspect Status.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Health{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return Health{}, decodeAPIError(resp)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
		apiErr.Code = "unknown"
		apiErr.Message = resp.Status
	}
	return apiErr
}
