package record

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
)

// mockRepo implements Repository for tests.
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

// mockEmbedder implements Embedder for tests.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockEmbedder) {
	t.Helper()
	repo := &mockRepo{}
	emb := &mockEmbedder{}
	svc := New(repo, emb, Config{DefaultLimit: 5, MaxLimit: 50}, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1756684800000) }
	return svc, repo, emb
}

func searchResult(ticketID string, score float64) domain.SearchResult {
	return domain.SearchResult{
		Record: domain.TestCaseRecord{TicketID: ticketID},
		Score:  score,
	}
}
