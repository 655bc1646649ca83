package generation

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/intellix-ai/testgen/internal/domain"
	"github.com/intellix-ai/testgen/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

func TestGenerate_HappyPath(t *testing.T) {
	svc, _, completer, _ := newTestService(t)

	result, err := svc.Generate(context.Background(), "PROJ-42", domain.Credentials{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Error("fresh generation must not be marked cached")
	}
	if completer.calls != 1 {
		t.Errorf("expected 1 model call, got %d", completer.calls)
	}
	if result.Record.TicketID != "PROJ-42" {
		t.Errorf("unexpected ticket id: %s", result.Record.TicketID)
	}
	// Renumbering overrides the model-assigned TC-099.
	if result.Record.TestCases[0].TestID != "TC-001" {
		t.Errorf("expected renumbered TC-001, got %s", result.Record.TestCases[0].TestID)
	}
}

func TestGenerate_ReturnsStoredRecord(t *testing.T) {
	svc, fetcher, completer, records := newTestService(t)

	records.fetchFn = func(_ context.Context, ticketID string) (*domain.TestCaseRecord, error) {
		return &domain.TestCaseRecord{TicketID: ticketID}, nil
	}
	fetcher.fetchFn = func(_ context.Context, _ string, _ domain.Credentials) (string, error) {
		t.Error("tracker must not be called when a record exists")
		return "", nil
	}

	result, err := svc.Generate(context.Background(), "PROJ-42", domain.Credentials{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cached {
		t.Error("existing record must be marked cached")
	}
	if completer.calls != 0 {
		t.Errorf("model must not be called, got %d calls", completer.calls)
	}
}

func TestGenerate_StoreCheckError(t *testing.T) {
	svc, _, _, records := newTestService(t)
	records.fetchFn = func(_ context.Context, _ string) (*domain.TestCaseRecord, error) {
		return nil, domain.ErrStoreUnavailable
	}

	_, err := svc.Generate(context.Background(), "PROJ-1", domain.Credentials{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGenerate_TicketNotFound(t *testing.T) {
	svc, fetcher, completer, _ := newTestService(t)
	fetcher.fetchFn = func(_ context.Context, _ string, _ domain.Credentials) (string, error) {
		return "", domain.ErrTicketNotFound
	}

	_, err := svc.Generate(context.Background(), "MISSING-1", domain.Credentials{})
	if !errors.Is(err, domain.ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got %v", err)
	}
	if completer.calls != 0 {
		t.Error("model must not be called when the ticket is missing")
	}
}

func TestGenerate_PassesCredentials(t *testing.T) {
	svc, fetcher, _, _ := newTestService(t)

	var gotCreds domain.Credentials
	fetcher.fetchFn = func(_ context.Context, _ string, creds domain.Credentials) (string, error) {
		gotCreds = creds
		return "desc", nil
	}

	creds := domain.Credentials{Username: "alice", APIToken: "tok", BaseURL: "https://jira.example.com"}
	if _, err := svc.Generate(context.Background(), "PROJ-1", creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCreds != creds {
		t.Errorf("credentials not forwarded: %+v", gotCreds)
	}
}

func TestGenerate_RetriesExactlyOnceOnMalformed(t *testing.T) {
	svc, _, completer, _ := newTestService(t)

	completer.completeFn = func(_ context.Context, prompt string) (string, error) {
		if completer.calls == 1 {
			return "I think these test cases would work well...", nil
		}
		return validModelOutput, nil
	}

	result, err := svc.Generate(context.Background(), "PROJ-42", domain.Credentials{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completer.calls != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", completer.calls)
	}
	if !strings.Contains(completer.prompts[1], "ONLY a valid JSON array") {
		t.Error("retry prompt must carry the stricter instruction")
	}
	if strings.Contains(completer.prompts[0], "ONLY a valid JSON array") {
		t.Error("first prompt must not carry the retry instruction")
	}
	if len(result.Record.TestCases) != 1 {
		t.Errorf("unexpected cases: %+v", result.Record.TestCases)
	}
}

func TestGenerate_MalformedAfterRetry(t *testing.T) {
	svc, _, completer, records := newTestService(t)

	completer.completeFn = func(_ context.Context, _ string) (string, error) {
		return "still not json", nil
	}
	records.storeFn = func(_ context.Context, _, _ string, _ []domain.TestCase) (*domain.TestCaseRecord, error) {
		t.Error("nothing must be stored for malformed output")
		return nil, nil
	}

	_, err := svc.Generate(context.Background(), "PROJ-42", domain.Credentials{})
	if !errors.Is(err, domain.ErrGenerationMalformed) {
		t.Fatalf("expected ErrGenerationMalformed, got %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("expected exactly 2 model calls, got %d", completer.calls)
	}

	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatal("expected a GenerationError carrying the raw output")
	}
	if genErr.Raw != "still not json" {
		t.Errorf("unexpected raw output: %q", genErr.Raw)
	}
}

func TestGenerate_ModelTimeout(t *testing.T) {
	svc, _, completer, _ := newTestService(t)
	completer.completeFn = func(_ context.Context, _ string) (string, error) {
		return "", domain.ErrGenerationTimeout
	}

	_, err := svc.Generate(context.Background(), "PROJ-1", domain.Credentials{})
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Errorf("expected ErrGenerationTimeout, got %v", err)
	}
	// Transport failures are not malformed output: no retry.
	if completer.calls != 1 {
		t.Errorf("expected 1 model call, got %d", completer.calls)
	}
}

func TestGenerate_StoreError(t *testing.T) {
	svc, _, _, records := newTestService(t)
	records.storeFn = func(_ context.Context, _, _ string, _ []domain.TestCase) (*domain.TestCaseRecord, error) {
		return nil, domain.ErrStoreUnavailable
	}

	_, err := svc.Generate(context.Background(), "PROJ-1", domain.Credentials{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGenerate_SurvivesCanceledRequestContext(t *testing.T) {
	svc, _, completer, records := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())

	completer.completeFn = func(callCtx context.Context, _ string) (string, error) {
		cancel() // client disconnects mid-generation
		if callCtx.Err() != nil {
			t.Error("model context must be detached from the request context")
		}
		return validModelOutput, nil
	}

	var stored bool
	records.storeFn = func(storeCtx context.Context, ticketID, description string, cases []domain.TestCase) (*domain.TestCaseRecord, error) {
		if storeCtx.Err() != nil {
			t.Error("store context must be detached from the request context")
		}
		stored = true
		return &domain.TestCaseRecord{TicketID: ticketID, Description: description, TestCases: cases}, nil
	}

	if _, err := svc.Generate(ctx, "PROJ-1", domain.Credentials{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Error("record must be stored despite the canceled request")
	}
}
