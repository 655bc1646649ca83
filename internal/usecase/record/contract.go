package record

import (
	"context"

	"github.com/intellix-ai/testgen/internal/domain"
)

// Repository defines the storage contract for test case records.
type Repository interface {
	Save(ctx context.Context, rec *domain.TestCaseRecord) error
	Get(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error)
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
