package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/intellix-ai/testgen/internal/db"
	"github.com/intellix-ai/testgen/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	upsertFn func(ctx context.Context, rec *db.Record) error
	getFn    func(ctx context.Context, ticketID string) (*db.Record, error)
	searchFn func(ctx context.Context, vector []float32, k int) ([]db.SearchHit, error)
}

func (m *mockStore) UpsertRecord(ctx context.Context, rec *db.Record) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec)
	}
	return nil
}

func (m *mockStore) GetRecord(ctx context.Context, ticketID string) (*db.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ticketID)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SearchKNN(ctx context.Context, vector []float32, k int) ([]db.SearchHit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, k)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testDomainRecord(t *testing.T, ticketID string) *domain.TestCaseRecord {
	t.Helper()
	return &domain.TestCaseRecord{
		TicketID:    ticketID,
		Description: "As a user I want to log in",
		TestCases: []domain.TestCase{
			{
				TestID:         "TC-001",
				Title:          "Verify login with valid credentials",
				Steps:          []string{"Open login page", "Enter credentials", "Submit"},
				ExpectedResult: "User is logged in",
			},
		},
		Embedding: []float32{0.1, 0.2, 0.3},
		StoredAt:  time.UnixMilli(1756684800000).UTC(),
	}
}

func testDBRecord(t *testing.T, ticketID string, storedAt int64) db.Record {
	t.Helper()
	cases, err := json.Marshal([]domain.TestCase{
		{TestID: "TC-001", Title: "t", Steps: []string{"s"}, ExpectedResult: "r"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return db.Record{
		TicketID:    ticketID,
		Description: "desc",
		TestCases:   cases,
		Vector:      []float32{0.1, 0.2},
		StoredAt:    storedAt,
	}
}
