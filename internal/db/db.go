// Package db defines the vector index facade implemented by the redis and
// qdrant drivers. Consumers depend on the narrow sub-interfaces.
package db

import (
	"context"
	"time"
)

// Record is the storage-level representation of a stored test case set.
// TestCases is the JSON-encoded test case array, opaque to the store.
type Record struct {
	TicketID    string
	Description string
	TestCases   []byte
	Vector      []float32
	StoredAt    int64 // unix milliseconds
}

// SearchHit pairs a record with its cosine similarity to the query vector.
type SearchHit struct {
	Record Record
	Score  float64
}

// Store is the main facade combining all sub-interfaces.
type Store interface {
	Pinger
	RecordStore
	Searcher
	// Init creates the backing collection/index for the given vector
	// dimension if it does not exist yet.
	Init(ctx context.Context, vectorDim int) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordStore provides record persistence keyed by ticket identifier.
type RecordStore interface {
	// UpsertRecord replaces any prior record stored under the same ticket id.
	UpsertRecord(ctx context.Context, rec *Record) error
	// GetRecord returns ErrKeyNotFound when no record exists for the id.
	GetRecord(ctx context.Context, ticketID string) (*Record, error)
	DeleteRecord(ctx context.Context, ticketID string) error
}

// Searcher provides nearest-neighbor search over stored records.
type Searcher interface {
	// SearchKNN returns up to k hits ordered by descending similarity.
	SearchKNN(ctx context.Context, vector []float32, k int) ([]SearchHit, error)
}

// KVStore is an optional capability for drivers that expose plain key-value
// storage (used by the embedding cache). The qdrant driver does not.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
