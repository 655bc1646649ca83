package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/intellix-ai/testgen/internal/db"
)

// Hash field names. The double underscore keeps the vector field out of the
// way of payload fields, matching the FT schema below.
const (
	fieldDescription = "description"
	fieldTestCases   = "test_cases"
	fieldStoredAt    = "stored_at"
	fieldVector      = "__vector"
	fieldVectorScore = "__vector_score"
)

// Init creates the FT index for KNN search if it does not exist yet.
func (s *Store) Init(ctx context.Context, vectorDim int) error {
	if vectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", vectorDim)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(
		s.index,
		"ON", "HASH",
		"PREFIX", "1", s.prefix,
		"SCHEMA",
		fieldStoredAt, "NUMERIC", "SORTABLE",
		fieldVector, "AS", "vector", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(vectorDim),
		"DISTANCE_METRIC", "COSINE",
	).Build()

	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// UpsertRecord writes the record hash, replacing any prior fields.
// Existing keys are deleted first so stale fields cannot survive an overwrite.
func (s *Store) UpsertRecord(ctx context.Context, rec *db.Record) error {
	key := s.recordKey(rec.TicketID)

	delCmd := s.b().Del().Key(key).Build()
	setCmd := s.b().Hset().Key(key).FieldValue().
		FieldValue(fieldDescription, rec.Description).
		FieldValue(fieldTestCases, string(rec.TestCases)).
		FieldValue(fieldStoredAt, strconv.FormatInt(rec.StoredAt, 10)).
		FieldValue(fieldVector, vectorToBytes(rec.Vector)).
		Build()

	results := s.client.DoMulti(ctx, delCmd, setCmd)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", key, err)}
		}
	}
	return nil
}

// GetRecord returns the record stored under ticketID.
func (s *Store) GetRecord(ctx context.Context, ticketID string) (*db.Record, error) {
	key := s.recordKey(ticketID)

	cmd := s.b().Hgetall().Key(key).Build()
	fields, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(fields) == 0 {
		return nil, db.ErrKeyNotFound
	}

	return parseRecordFields(ticketID, fields)
}

// DeleteRecord removes the record stored under ticketID.
func (s *Store) DeleteRecord(ctx context.Context, ticketID string) error {
	cmd := s.b().Del().Key(s.recordKey(ticketID)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, vector []float32, k int) ([]db.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	cmd := s.b().Arbitrary("FT.SEARCH").Args(
		s.index, queryStr,
		"RETURN", "5",
		fieldDescription, fieldTestCases, fieldStoredAt, fieldVector, fieldVectorScore,
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	).Build()

	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return s.parseKNNResult(raw)
}

// parseKNNResult walks the RESP2 reply: [total, key1, fields1, key2, fields2, ...].
func (s *Store) parseKNNResult(raw []rueidis.RedisMessage) ([]db.SearchHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]db.SearchHit, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldPairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		fields := parseFieldPairs(fieldPairs)

		hit := db.SearchHit{}
		if scoreStr, ok := fields[fieldVectorScore]; ok {
			if dist, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				// Redis reports cosine distance; similarity = 1 - distance,
				// which stays within [-1, 1].
				hit.Score = 1.0 - dist
			}
			delete(fields, fieldVectorScore)
		}

		rec, err := parseRecordFields(s.ticketIDFromKey(key), fields)
		if err != nil {
			continue
		}
		hit.Record = *rec
		hits = append(hits, hit)
	}

	return hits, nil
}

func parseRecordFields(ticketID string, fields map[string]string) (*db.Record, error) {
	rec := &db.Record{TicketID: ticketID}

	rec.Description = fields[fieldDescription]
	rec.TestCases = []byte(fields[fieldTestCases])
	if len(rec.TestCases) == 0 {
		return nil, fmt.Errorf("record %s: missing test_cases field", ticketID)
	}

	if v, ok := fields[fieldStoredAt]; ok {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("record %s: parse stored_at: %w", ticketID, err)
		}
		rec.StoredAt = ts
	}

	if v, ok := fields[fieldVector]; ok {
		rec.Vector = bytesToVector(v)
	}

	return rec, nil
}

func parseFieldPairs(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		value, err := pairs[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
