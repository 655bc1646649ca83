// Package qdrant implements the db.Store facade over the Qdrant gRPC API.
// Each record is one point; the point id is derived deterministically from
// the ticket id so re-storing a ticket overwrites the prior point.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/intellix-ai/testgen/internal/db"
)

var _ db.Store = (*Store)(nil)

// Payload field names.
const (
	payloadTicketID    = "ticket_id"
	payloadDescription = "description"
	payloadTestCases   = "test_cases"
	payloadStoredAt    = "stored_at"
)

// Config holds connection parameters for a Qdrant store.
type Config struct {
	Addr       string
	Collection string
}

// Store implements db.Store via the Qdrant gRPC clients.
type Store struct {
	conn        *grpc.ClientConn
	points      qd.PointsClient
	collections qd.CollectionsClient
	collection  string
}

// NewStore connects to Qdrant over gRPC.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "test_cases"
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{
		conn:        conn,
		points:      qd.NewPointsClient(conn),
		collections: qd.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Init creates the collection for the given vector dimension if absent.
func (s *Store) Init(ctx context.Context, vectorDim int) error {
	if vectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", vectorDim)
	}

	_, err := s.collections.Get(ctx, &qd.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err == nil {
		return nil
	}

	_, err = s.collections.Create(ctx, &qd.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qd.VectorsConfig{
			Config: &qd.VectorsConfig_Params{
				Params: &qd.VectorParams{
					Size:     uint64(vectorDim),
					Distance: qd.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return &db.Error{Op: db.OpCollectionCreate, Err: err}
	}
	return nil
}

// Ping checks connectivity by listing collections.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.collections.List(ctx, &qd.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the gRPC connection.
func (s *Store) Close() {
	_ = s.conn.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// pointID derives a stable UUID from the ticket id so each ticket maps to
// exactly one point and upserts overwrite.
func pointID(ticketID string) *qd.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(ticketID))
	return &qd.PointId{PointIdOptions: &qd.PointId_Uuid{Uuid: id.String()}}
}

// UpsertRecord writes the record as a single point, replacing any prior one.
func (s *Store) UpsertRecord(ctx context.Context, rec *db.Record) error {
	point := &qd.PointStruct{
		Id: pointID(rec.TicketID),
		Vectors: &qd.Vectors{
			VectorsOptions: &qd.Vectors_Vector{Vector: &qd.Vector{Data: rec.Vector}},
		},
		Payload: map[string]*qd.Value{
			payloadTicketID:    {Kind: &qd.Value_StringValue{StringValue: rec.TicketID}},
			payloadDescription: {Kind: &qd.Value_StringValue{StringValue: rec.Description}},
			payloadTestCases:   {Kind: &qd.Value_StringValue{StringValue: string(rec.TestCases)}},
			payloadStoredAt:    {Kind: &qd.Value_IntegerValue{IntegerValue: rec.StoredAt}},
		},
	}

	_, err := s.points.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qd.PointStruct{point},
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return &db.Error{Op: db.OpPointsUpsert, Err: err}
	}
	return nil
}

// GetRecord returns the record stored under ticketID.
func (s *Store) GetRecord(ctx context.Context, ticketID string) (*db.Record, error) {
	resp, err := s.points.Get(ctx, &qd.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qd.PointId{pointID(ticketID)},
		WithPayload: &qd.WithPayloadSelector{
			SelectorOptions: &qd.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &qd.WithVectorsSelector{
			SelectorOptions: &qd.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpPointsGet, Err: err}
	}
	if len(resp.GetResult()) == 0 {
		return nil, db.ErrKeyNotFound
	}

	point := resp.GetResult()[0]
	rec, err := recordFromPayload(point.GetPayload())
	if err != nil {
		return nil, err
	}
	if v := point.GetVectors().GetVector(); v != nil {
		rec.Vector = v.GetData()
	}
	return rec, nil
}

// DeleteRecord removes the record stored under ticketID.
func (s *Store) DeleteRecord(ctx context.Context, ticketID string) error {
	_, err := s.points.Delete(ctx, &qd.DeletePoints{
		CollectionName: s.collection,
		Points: &qd.PointsSelector{
			PointsSelectorOneOf: &qd.PointsSelector_Points{
				Points: &qd.PointsIdsList{Ids: []*qd.PointId{pointID(ticketID)}},
			},
		},
		Wait: proto.Bool(true),
	})
	if err != nil {
		return &db.Error{Op: db.OpPointsDelete, Err: err}
	}
	return nil
}

// SearchKNN runs a cosine similarity search. Qdrant returns similarity
// scores directly for cosine collections, so no conversion is needed.
func (s *Store) SearchKNN(ctx context.Context, vector []float32, k int) ([]db.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	resp, err := s.points.Search(ctx, &qd.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qd.WithPayloadSelector{
			SelectorOptions: &qd.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpPointsSearch, Err: err}
	}

	hits := make([]db.SearchHit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		rec, err := recordFromPayload(scored.GetPayload())
		if err != nil {
			continue
		}
		hits = append(hits, db.SearchHit{
			Record: *rec,
			Score:  float64(scored.GetScore()),
		})
	}
	return hits, nil
}

func recordFromPayload(payload map[string]*qd.Value) (*db.Record, error) {
	if payload == nil {
		return nil, fmt.Errorf("point has no payload")
	}

	rec := &db.Record{
		TicketID:    payload[payloadTicketID].GetStringValue(),
		Description: payload[payloadDescription].GetStringValue(),
		TestCases:   []byte(payload[payloadTestCases].GetStringValue()),
		StoredAt:    payload[payloadStoredAt].GetIntegerValue(),
	}
	if rec.TicketID == "" {
		return nil, fmt.Errorf("point payload missing ticket_id")
	}
	if len(rec.TestCases) == 0 {
		return nil, fmt.Errorf("record %s: missing test_cases field", rec.TicketID)
	}
	return rec, nil
}
