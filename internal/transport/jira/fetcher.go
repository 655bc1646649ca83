// Package jira fetches ticket descriptions from the Jira REST API v2
// using basic auth (username + API token).
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
)

// noDescription is returned when a ticket exists but carries no description.
const noDescription = "No description available"

// Fetcher retrieves ticket descriptions from Jira.
type Fetcher struct {
	httpClient *http.Client
	defaults   domain.Credentials
	logger     *zap.Logger
}

// Config holds the tracker connection settings. The credentials act as
// server-side defaults; requests may override them per call.
type Config struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewFetcher creates a Jira ticket fetcher.
func NewFetcher(cfg *Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		defaults: domain.Credentials{
			Username: cfg.Username,
			APIToken: cfg.APIToken,
			BaseURL:  cfg.BaseURL,
		},
		logger: cfg.Logger,
	}
}

// issueResponse mirrors the subset of the Jira issue payload we read.
type issueResponse struct {
	Fields struct {
		Description string `json:"description"`
	} `json:"fields"`
}

// FetchDescription returns the description of the given ticket. Request
// credentials are merged over the configured defaults; incomplete merged
// credentials fail up front with domain.ErrAuthFailure.
func (f *Fetcher) FetchDescription(ctx context.Context, ticketID string, creds domain.Credentials) (string, error) {
	merged := creds.Merge(f.defaults)
	if !merged.Complete() {
		return "", fmt.Errorf("tracker credentials are incomplete: %w", domain.ErrAuthFailure)
	}

	u, err := url.JoinPath(merged.BaseURL, "rest", "api", "2", "issue", ticketID)
	if err != nil {
		return "", fmt.Errorf("build issue URL: %w", domain.ErrInvalidRequest)
	}
	u += "?fields=description"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(merged.Username, merged.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tracker request failed: %w", domain.ErrTrackerUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("ticket %s: %w", ticketID, domain.ErrTicketNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("tracker rejected credentials (%d): %w", resp.StatusCode, domain.ErrAuthFailure)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tracker returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrTrackerUnavailable)
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return "", fmt.Errorf("decode issue payload: %w", domain.ErrTrackerUnavailable)
	}

	description := strings.TrimSpace(issue.Fields.Description)
	if description == "" {
		f.logger.Debug("ticket has no description", zap.String("ticket_id", ticketID))
		return noDescription, nil
	}

	return description, nil
}

// HealthCheck reports whether default credentials are configured. The
// tracker itself is not probed: it is an external system and requests
// carry per-call credentials anyway.
func (f *Fetcher) HealthCheck(_ context.Context) error {
	if !f.defaults.Complete() {
		return errors.New("default tracker credentials not configured")
	}
	return nil
}
