package record

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/intellix-ai/testgen/internal/db"
	"github.com/intellix-ai/testgen/internal/domain"
)

func TestSave_MapsToStorageRecord(t *testing.T) {
	repo, ms := newTestRepo(t)

	var captured *db.Record
	ms.upsertFn = func(_ context.Context, rec *db.Record) error {
		captured = rec
		return nil
	}

	rec := testDomainRecord(t, "PROJ-42")
	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured == nil {
		t.Fatal("store was not called")
	}
	if captured.TicketID != "PROJ-42" {
		t.Errorf("unexpected ticket id: %s", captured.TicketID)
	}
	if captured.StoredAt != 1756684800000 {
		t.Errorf("expected unix millis, got %d", captured.StoredAt)
	}

	var cases []domain.TestCase
	if err := json.Unmarshal(captured.TestCases, &cases); err != nil {
		t.Fatalf("test cases not valid JSON: %v", err)
	}
	if len(cases) != 1 || cases[0].TestID != "TC-001" {
		t.Errorf("unexpected cases: %+v", cases)
	}
}

func TestSave_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.upsertFn = func(_ context.Context, _ *db.Record) error {
		return errors.New("connection refused")
	}

	err := repo.Save(context.Background(), testDomainRecord(t, "PROJ-1"))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, ms := newTestRepo(t)
	dbRec := testDBRecord(t, "PROJ-42", 1756684800000)
	ms.getFn = func(_ context.Context, ticketID string) (*db.Record, error) {
		if ticketID != "PROJ-42" {
			t.Errorf("unexpected ticket id: %s", ticketID)
		}
		return &dbRec, nil
	}

	rec, err := repo.Get(context.Background(), "PROJ-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.TicketID != "PROJ-42" {
		t.Errorf("unexpected ticket id: %s", rec.TicketID)
	}
	if rec.StoredAt.UnixMilli() != 1756684800000 {
		t.Errorf("unexpected stored_at: %v", rec.StoredAt)
	}
	if len(rec.TestCases) != 1 {
		t.Errorf("expected 1 test case, got %d", len(rec.TestCases))
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "MISSING-1")
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.getFn = func(_ context.Context, _ string) (*db.Record, error) {
		return nil, errors.New("connection refused")
	}

	_, err := repo.Get(context.Background(), "PROJ-1")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrRecordNotFound) {
		t.Error("store errors must not masquerade as not-found")
	}
}

func TestSearch_OrdersByScoreThenRecency(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFn = func(_ context.Context, _ []float32, _ int) ([]db.SearchHit, error) {
		return []db.SearchHit{
			{Record: testDBRecord(t, "OLD-TIE", 1000), Score: 0.8},
			{Record: testDBRecord(t, "LOW", 3000), Score: 0.5},
			{Record: testDBRecord(t, "NEW-TIE", 2000), Score: 0.8},
			{Record: testDBRecord(t, "TOP", 500), Score: 0.9},
		}, nil
	}

	results, err := repo.Search(context.Background(), []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"TOP", "NEW-TIE", "OLD-TIE", "LOW"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, id := range want {
		if results[i].Record.TicketID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].Record.TicketID)
		}
	}
}

func TestSearch_SkipsCorruptRecords(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFn = func(_ context.Context, _ []float32, _ int) ([]db.SearchHit, error) {
		corrupt := testDBRecord(t, "BAD-1", 1000)
		corrupt.TestCases = []byte("not json")
		return []db.SearchHit{
			{Record: corrupt, Score: 0.9},
			{Record: testDBRecord(t, "GOOD-1", 1000), Score: 0.8},
		}, nil
	}

	results, err := repo.Search(context.Background(), []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Record.TicketID != "GOOD-1" {
		t.Errorf("expected only GOOD-1, got %+v", results)
	}
}

func TestSearch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFn = func(_ context.Context, _ []float32, _ int) ([]db.SearchHit, error) {
		return nil, errors.New("index missing")
	}

	_, err := repo.Search(context.Background(), []float32{0.1}, 10)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSearch_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	results, err := repo.Search(context.Background(), []float32{0.1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}
