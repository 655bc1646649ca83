// Package generation implements the ticket-to-test-cases pipeline: fetch
// the ticket description, prompt the model, validate the output, and
// persist the resulting record.
package generation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
	"github.com/intellix-ai/testgen/internal/metrics"
)

// Result is the outcome of a generation call.
type Result struct {
	Record *domain.TestCaseRecord
	// Cached reports that a stored record was returned without calling
	// the model.
	Cached bool
}

// Service orchestrates the generation pipeline.
type Service struct {
	tickets TicketFetcher
	model   Completer
	records RecordStore
	modelID string
	logger  *zap.Logger
}

// New creates a generation service. modelID labels metrics only.
func New(tickets TicketFetcher, model Completer, records RecordStore, modelID string, logger *zap.Logger) *Service {
	return &Service{
		tickets: tickets,
		model:   model,
		records: records,
		modelID: modelID,
		logger:  logger,
	}
}

// Generate runs the full pipeline for a ticket. If a record already exists
// it is returned as-is, so repeated calls are cheap and idempotent. Once the
// model has been called the pipeline runs to completion even if the client
// disconnects; a generated record is never lost to a dropped connection.
func (s *Service) Generate(ctx context.Context, ticketID string, creds domain.Credentials) (Result, error) {
	if rec, err := s.records.Fetch(ctx, ticketID); err == nil {
		s.logger.Info("returning stored record", zap.String("ticket_id", ticketID))
		return Result{Record: rec, Cached: true}, nil
	} else if !errors.Is(err, domain.ErrRecordNotFound) {
		return Result{}, fmt.Errorf("check stored record: %w", err)
	}

	description, err := s.tickets.FetchDescription(ctx, ticketID, creds)
	if err != nil {
		return Result{}, fmt.Errorf("fetch ticket %s: %w", ticketID, err)
	}

	// Detach from the request context: generation and the store write
	// complete even if the caller goes away mid-flight.
	ctx = context.WithoutCancel(ctx)

	cases, err := s.generateCases(ctx, ticketID, description)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.records.Store(ctx, ticketID, description, cases)
	if err != nil {
		return Result{}, fmt.Errorf("store record: %w", err)
	}

	return Result{Record: rec}, nil
}

// generateCases calls the model and validates its output, retrying exactly
// once with a stricter instruction on malformed output.
func (s *Service) generateCases(ctx context.Context, ticketID, description string) ([]domain.TestCase, error) {
	prompt := buildPrompt(description)

	raw, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}

	cases, parseErr := parseTestCases(raw)
	if parseErr == nil {
		return cases, nil
	}

	s.logger.Warn("malformed model output, retrying once",
		zap.String("ticket_id", ticketID),
		zap.Error(parseErr),
	)
	metrics.GenerationRetriesTotal.WithLabelValues(s.modelID).Inc()

	raw, err = s.model.Complete(ctx, prompt+retryInstruction)
	if err != nil {
		return nil, fmt.Errorf("model completion (retry): %w", err)
	}

	cases, parseErr = parseTestCases(raw)
	if parseErr != nil {
		return nil, domain.NewGenerationError(raw, parseErr)
	}
	return cases, nil
}
