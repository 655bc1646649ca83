package testgen

import (
	"time"

	"github.com/intellix-ai/testgen/internal/domain"
)

// TestCase is a single manual test case generated from a ticket description.
type TestCase struct {
	TestID         string   `json:"test_id"`
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
}

// TestCaseRecord is a stored test case set for one ticket.
type TestCaseRecord struct {
	TicketID    string     `json:"ticket_id"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"test_cases"`
	StoredAt    time.Time  `json:"stored_at"`
	// Cached reports that the record came from the store without a model call.
	Cached bool `json:"cached,omitempty"`
}

// SearchResult pairs a stored record with its similarity to the query.
type SearchResult struct {
	TestCaseRecord
	Score float64 `json:"score"`
}

// Credentials override the configured tracker defaults for a single call.
type Credentials struct {
	Username string
	APIToken string
	BaseURL  string
}

func recordFromDomain(rec *domain.TestCaseRecord) TestCaseRecord {
	cases := make([]TestCase, len(rec.TestCases))
	for i, tc := range rec.TestCases {
		cases[i] = TestCase{
			TestID:         tc.TestID,
			Title:          tc.Title,
			Steps:          tc.Steps,
			ExpectedResult: tc.ExpectedResult,
		}
	}
	return TestCaseRecord{
		TicketID:    rec.TicketID,
		Description: rec.Description,
		TestCases:   cases,
		StoredAt:    rec.StoredAt,
	}
}
