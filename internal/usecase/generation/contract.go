package generation

import (
	"context"

	"github.com/intellix-ai/testgen/internal/domain"
)

// TicketFetcher retrieves ticket descriptions from the tracker.
type TicketFetcher interface {
	FetchDescription(ctx context.Context, ticketID string, creds domain.Credentials) (string, error)
}

// Completer produces raw model output for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RecordStore persists and reads back generated records.
type RecordStore interface {
	Store(ctx context.Context, ticketID, description string, cases []domain.TestCase) (*domain.TestCaseRecord, error)
	Fetch(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error)
}
