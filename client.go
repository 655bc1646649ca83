// Package testgen is the embedded client: the same generation, storage and
// semantic search pipeline as the HTTP server, usable as a library without
// running the API.
package testgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/db"
	dbQdrant "github.com/intellix-ai/testgen/internal/db/qdrant"
	dbRedis "github.com/intellix-ai/testgen/internal/db/redis"
	"github.com/intellix-ai/testgen/internal/domain"
	"github.com/intellix-ai/testgen/internal/metrics"
	"github.com/intellix-ai/testgen/internal/repository/embcache"
	recordrepo "github.com/intellix-ai/testgen/internal/repository/record"
	"github.com/intellix-ai/testgen/internal/transport/jira"
	"github.com/intellix-ai/testgen/internal/transport/ollama"
	openaiEmb "github.com/intellix-ai/testgen/internal/transport/openai"
	"github.com/intellix-ai/testgen/internal/usecase/export"
	generationuc "github.com/intellix-ai/testgen/internal/usecase/generation"
	recorduc "github.com/intellix-ai/testgen/internal/usecase/record"
)

const defaultReadinessTimeout = 10 * time.Second

// Exported sentinel errors, matched with errors.Is.
var (
	ErrTicketNotFound = domain.ErrTicketNotFound
	ErrRecordNotFound = domain.ErrRecordNotFound
	ErrAuthFailure    = domain.ErrAuthFailure
)

// Client is the embedded testgen entry point.
type Client struct {
	store      db.Store
	records    *recorduc.Service
	generation *generationuc.Service
}

// New creates a Client, connects to the vector store and ensures the index
// exists. The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "redis",
		collection:       "test_cases",
		dimensions:       768,
		embeddingBaseURL: "http://localhost:11434/v1",
		embeddingModel:   "nomic-embed-text",
		modelMaxTokens:   2048,
		modelTimeout:     2 * time.Minute,
		trackerTimeout:   30 * time.Second,
		logger:           zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("testgen: store address required (use WithRedis or WithQdrant)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("testgen: store not ready: %w", err)
	}
	if err := store.Init(ctx, cfg.dimensions); err != nil {
		store.Close()
		return nil, fmt.Errorf("testgen: init index: %w", err)
	}

	return wireClient(store, cfg), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Collection: cfg.collection,
		})
		if err != nil {
			return nil, fmt.Errorf("testgen: create redis store: %w", err)
		}
		return s, nil
	case "qdrant":
		s, err := dbQdrant.NewStore(dbQdrant.Config{
			Addr:       cfg.addrs[0],
			Collection: cfg.collection,
		})
		if err != nil {
			return nil, fmt.Errorf("testgen: create qdrant store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("testgen: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.embeddingAPIKey,
		BaseURL:    cfg.embeddingBaseURL,
		Model:      cfg.embeddingModel,
		Dimensions: cfg.dimensions,
		Provider:   "embedded",
		Logger:     cfg.logger,
	})
	if cfg.cacheEmbeddings {
		if kv, ok := store.(db.KVStore); ok {
			embedder = embcache.New(embedder, kv, metrics.EmbeddingCacheTotal, cfg.logger)
		}
	}

	repo := recordrepo.New(store)
	records := recorduc.New(repo, embedder, recorduc.Config{
		DefaultLimit: cfg.defaultLimit,
		MaxLimit:     cfg.maxLimit,
		MinScore:     cfg.minScore,
	}, cfg.logger)

	c := &Client{store: store, records: records}

	// Generation requires both a tracker and a model endpoint; without them
	// the client still serves Fetch, ExportCSV and Search.
	if cfg.modelBaseURL != "" && cfg.modelName != "" {
		fetcher := jira.NewFetcher(&jira.Config{
			BaseURL:  cfg.trackerBaseURL,
			Username: cfg.trackerUsername,
			APIToken: cfg.trackerAPIToken,
			Timeout:  cfg.trackerTimeout,
			Logger:   cfg.logger,
		})
		completer := ollama.NewCompleter(&ollama.Config{
			BaseURL:   cfg.modelBaseURL,
			APIKey:    cfg.modelAPIKey,
			Model:     cfg.modelName,
			MaxTokens: cfg.modelMaxTokens,
			Timeout:   cfg.modelTimeout,
			Logger:    cfg.logger,
		})
		c.generation = generationuc.New(fetcher, completer, records, cfg.modelName, cfg.logger)
	}

	return c
}

// Close releases the store connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Generate fetches the ticket description, generates test cases and stores
// the record. Returns the stored record for the ticket if one already exists.
func (c *Client) Generate(ctx context.Context, ticketID string, creds *Credentials) (TestCaseRecord, error) {
	if c.generation == nil {
		return TestCaseRecord{}, errors.New(
			"testgen: generation not configured (use WithModel, and WithJira for default credentials)")
	}

	var domCreds domain.Credentials
	if creds != nil {
		domCreds = domain.Credentials{
			Username: creds.Username,
			APIToken: creds.APIToken,
			BaseURL:  creds.BaseURL,
		}
	}

	result, err := c.generation.Generate(ctx, ticketID, domCreds)
	if err != nil {
		return TestCaseRecord{}, fmt.Errorf("generate: %w", err)
	}

	rec := recordFromDomain(result.Record)
	rec.Cached = result.Cached
	return rec, nil
}

// Fetch returns the stored record for a ticket, or ErrRecordNotFound.
func (c *Client) Fetch(ctx context.Context, ticketID string) (TestCaseRecord, error) {
	rec, err := c.records.Fetch(ctx, ticketID)
	if err != nil {
		return TestCaseRecord{}, fmt.Errorf("fetch: %w", err)
	}
	return recordFromDomain(rec), nil
}

// ExportCSV renders the stored record for a ticket as a CSV document.
func (c *Client) ExportCSV(ctx context.Context, ticketID string) ([]byte, error) {
	rec, err := c.records.Fetch(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	data, err := export.CSV(rec)
	if err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return data, nil
}

// Search returns stored records ranked by semantic similarity to the query.
// limit <= 0 uses the configured default.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	opts := recorduc.SearchOptions{}
	if limit > 0 {
		opts.Limit = &limit
	}
	results, err := c.records.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			TestCaseRecord: recordFromDomain(&r.Record),
			Score:          r.Score,
		}
	}
	return out, nil
}
