// Package record implements storage, retrieval and semantic search over
// persisted test case records.
package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
)

// SearchOptions tune a semantic search call. Nil fields fall back to the
// configured defaults.
type SearchOptions struct {
	// Limit is the maximum number of results; nil means the configured
	// default. A provided value below 1 is rejected.
	Limit *int
	// MinScore is a similarity floor; nil means use the configured default.
	MinScore *float64
}

// Config holds search tuning defaults.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	// MinScore is the default similarity floor; 0 disables the floor.
	MinScore float64
}

// Service handles record persistence and semantic search.
type Service struct {
	repo   Repository
	embed  Embedder
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a record service.
func New(repo Repository, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	return &Service{
		repo:   repo,
		embed:  embed,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Store embeds the description and persists a record for the ticket,
// replacing any prior record (last write wins).
func (s *Service) Store(
	ctx context.Context, ticketID, description string, cases []domain.TestCase,
) (*domain.TestCaseRecord, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("at least one test case is required: %w", domain.ErrInvalidRequest)
	}

	embResult, err := s.embed.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("vectorize description: %w", err)
	}

	rec := &domain.TestCaseRecord{
		TicketID:    ticketID,
		Description: description,
		TestCases:   cases,
		Embedding:   embResult.Embedding,
		StoredAt:    s.now().UTC(),
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	s.logger.Info("record stored",
		zap.String("ticket_id", ticketID),
		zap.Int("test_cases", len(cases)),
	)
	return rec, nil
}

// Fetch returns the stored record for a ticket.
func (s *Service) Fetch(ctx context.Context, ticketID string) (*domain.TestCaseRecord, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, fmt.Errorf("ticket_id is required: %w", domain.ErrInvalidRequest)
	}

	rec, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("fetch record: %w", err)
	}
	return rec, nil
}

// Search embeds the query and returns the most similar records ordered by
// similarity descending. An empty store yields an empty result, not an error.
func (s *Service) Search(
	ctx context.Context, query string, opts SearchOptions,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}

	limit := s.cfg.DefaultLimit
	if opts.Limit != nil {
		if *opts.Limit < 1 {
			return nil, fmt.Errorf("limit must be at least 1: %w", domain.ErrInvalidRequest)
		}
		limit = *opts.Limit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	// An explicit floor of 0 still filters; only an absent floor with a
	// zero default disables filtering.
	minScore := s.cfg.MinScore
	applyFloor := minScore != 0
	if opts.MinScore != nil {
		minScore = *opts.MinScore
		applyFloor = true
	}
	if minScore < -1 || minScore > 1 {
		return nil, fmt.Errorf("min_score must be within [-1, 1]: %w", domain.ErrInvalidRequest)
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.repo.Search(ctx, embResult.Embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}

	if applyFloor {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= minScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
