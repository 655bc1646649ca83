// Package record maps domain test case records onto the storage facade.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/intellix-ai/testgen/internal/db"
	"github.com/intellix-ai/testgen/internal/domain"
)

// store is the consumer interface for record persistence (ISP).
type store interface {
	UpsertRecord(ctx context.Context, rec *db.Record) error
	GetRecord(ctx context.Context, ticketID string) (*db.Record, error)
	SearchKNN(ctx context.Context, vector []float32, k int) ([]db.SearchHit, error)
}

// Repo implements the record repository over a db.Store driver.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save persists the record, replacing any prior record for the same ticket.
func (r *Repo) Save(ctx context.Context, rec *domain.TestCaseRecord) error {
	cases, err := json.Marshal(rec.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}

	dbRec := &db.Record{
		TicketID:    rec.TicketID,
		Description: rec.Description,
		TestCases:   cases,
		Vector:      rec.Embedding,
		StoredAt:    rec.StoredAt.UnixMilli(),
	}

	if err := r.store.UpsertRecord(ctx, dbRec); err != nil {
		return fmt.Errorf("upsert record %s: %w: %w", rec.TicketID, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the record for a ticket, or domain.ErrRecordNotFound.
func (r *Repo) Get(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error) {
	dbRec, err := r.store.GetRecord(ctx, ticketID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("record %s: %w", ticketID, domain.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("get record %s: %w: %w", ticketID, domain.ErrStoreUnavailable, err)
	}
	return toDomain(dbRec)
}

// Search returns up to k records ordered by similarity descending, with
// newer records winning score ties.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	hits, err := r.store.SearchKNN(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", domain.ErrStoreUnavailable, err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := toDomain(&hit.Record)
		if err != nil {
			continue
		}
		results = append(results, domain.SearchResult{Record: *rec, Score: hit.Score})
	}

	// Drivers generally return hits sorted already; re-sorting here pins the
	// cross-driver contract including the stored_at tiebreak.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.StoredAt.After(results[j].Record.StoredAt)
	})

	return results, nil
}

func toDomain(dbRec *db.Record) (*domain.TestCaseRecord, error) {
	var cases []domain.TestCase
	if err := json.Unmarshal(dbRec.TestCases, &cases); err != nil {
		return nil, fmt.Errorf("record %s: unmarshal test cases: %w", dbRec.TicketID, err)
	}

	return &domain.TestCaseRecord{
		TicketID:    dbRec.TicketID,
		Description: dbRec.Description,
		TestCases:   cases,
		Embedding:   dbRec.Vector,
		StoredAt:    time.UnixMilli(dbRec.StoredAt).UTC(),
	}, nil
}
