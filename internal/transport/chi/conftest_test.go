package chi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
	generationuc "github.com/intellix-ai/testgen/internal/usecase/generation"
	healthuc "github.com/intellix-ai/testgen/internal/usecase/health"
	recorduc "github.com/intellix-ai/testgen/internal/usecase/record"
)

// mockFetcher implements the ticket fetching contract for handler tests.
type mockFetcher struct {
	fetchFn func(ctx context.Context, ticketID string, creds domain.Credentials) (string, error)
}

func (m *mockFetcher) FetchDescription(ctx context.Context, ticketID string, creds domain.Credentials) (string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, ticketID, creds)
	}
	return "As a user I want to log in", nil
}

type mockCompleter struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	calls      int
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return validModelOutput, nil
}

type mockRepo struct {
	saveFn   func(ctx context.Context, rec *domain.TestCaseRecord) error
	getFn    func(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error)
	searchFn func(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
}

func (m *mockRepo) Save(ctx context.Context, rec *domain.TestCaseRecord) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, rec)
	}
	return nil
}

func (m *mockRepo) Get(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ticketID)
	}
	return nil, domain.ErrRecordNotFound
}

func (m *mockRepo) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, k)
	}
	return nil, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 3}, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

const validModelOutput = `[
  {
    "test_id": "TC-099",
    "title": "Verify login with valid credentials",
    "steps": ["Open the login page", "Enter credentials", "Click Login"],
    "expected_result": "User is logged in"
  }
]`

// testDeps carries the stubbed collaborators behind a test server.
type testDeps struct {
	fetcher   *mockFetcher
	completer *mockCompleter
	repo      *mockRepo
	embedder  *mockEmbedder
	pinger    *mockPinger
}

// newTestServer wires a full handler stack on stubbed collaborators and
// returns a routed handler plus the stubs for per-test overrides.
func newTestServer(t *testing.T) (http.Handler, *testDeps) {
	t.Helper()

	deps := &testDeps{
		fetcher:   &mockFetcher{},
		completer: &mockCompleter{},
		repo:      &mockRepo{},
		embedder:  &mockEmbedder{},
		pinger:    &mockPinger{},
	}

	logger := zap.NewNop()
	records := recorduc.New(deps.repo, deps.embedder, recorduc.Config{}, logger)
	generation := generationuc.New(deps.fetcher, deps.completer, records, "test-model", logger)
	health := healthuc.New(deps.pinger, nil, nil)

	srv := NewServer(generation, records, health, logger)
	r := chi.NewRouter()
	srv.Routes(r)
	return r, deps
}

func storedRecord(ticketID string) *domain.TestCaseRecord {
	return &domain.TestCaseRecord{
		TicketID:    ticketID,
		Description: "As a user I want to log in",
		TestCases: []domain.TestCase{
			{
				TestID:         "TC-001",
				Title:          "Verify login with valid credentials",
				Steps:          []string{"Open the login page", "Enter credentials", "Click Login"},
				ExpectedResult: "User is logged in",
			},
		},
		Embedding: []float32{0.1, 0.2},
		StoredAt:  time.UnixMilli(1756684800000).UTC(),
	}
}
