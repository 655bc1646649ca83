package generation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
)

// mockFetcher implements TicketFetcher for tests.
type mockFetcher struct {
	fetchFn func(ctx context.Context, ticketID string, creds domain.Credentials) (string, error)
}

func (m *mockFetcher) FetchDescription(ctx context.Context, ticketID string, creds domain.Credentials) (string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, ticketID, creds)
	}
	return "As a user I want to log in", nil
}

// mockCompleter implements Completer for tests.
type mockCompleter struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	calls      int
	prompts    []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return validModelOutput, nil
}

// mockRecords implements RecordStore for tests.
type mockRecords struct {
	storeFn func(ctx context.Context, ticketID, description string, cases []domain.TestCase) (*domain.TestCaseRecord, error)
	fetchFn func(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error)
}

func (m *mockRecords) Store(ctx context.Context, ticketID, description string, cases []domain.TestCase) (*domain.TestCaseRecord, error) {
	if m.storeFn != nil {
		return m.storeFn(ctx, ticketID, description, cases)
	}
	return &domain.TestCaseRecord{
		TicketID:    ticketID,
		Description: description,
		TestCases:   cases,
		StoredAt:    time.UnixMilli(1756684800000).UTC(),
	}, nil
}

func (m *mockRecords) Fetch(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, ticketID)
	}
	return nil, domain.ErrRecordNotFound
}

const validModelOutput = `[
  {
    "test_id": "TC-099",
    "title": "Verify login with valid credentials",
    "steps": ["Open the login page", "Enter credentials", "Click Login"],
    "expected_result": "User is logged in"
  }
]`

func newTestService(t *testing.T) (*Service, *mockFetcher, *mockCompleter, *mockRecords) {
	t.Helper()
	f := &mockFetcher{}
	c := &mockCompleter{}
	r := &mockRecords{}
	svc := New(f, c, r, "test-model", zap.NewNop())
	return svc, f, c, r
}
