// Package domain holds the core types shared between layers: test cases,
// stored records, search results, and the contracts for embedding and
// text generation providers.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TestCase is a single manual test case generated from a ticket description.
type TestCase struct {
	TestID         string   `json:"test_id"`
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
}

// TestCaseRecord is the persisted unit: one live record per ticket identifier.
type TestCaseRecord struct {
	TicketID    string     `json:"ticket_id"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"test_cases"`
	Embedding   []float32  `json:"-"`
	StoredAt    time.Time  `json:"stored_at"`
}

// SearchResult pairs a stored record with its cosine similarity to a query.
// Score is within [-1, 1]; results are never persisted.
type SearchResult struct {
	Record TestCaseRecord
	Score  float64
}

// Credentials override the process-wide tracker defaults for a single call.
// Empty fields fall back to the configured defaults individually.
type Credentials struct {
	Username string `json:"username"`
	APIToken string `json:"api_token"`
	BaseURL  string `json:"base_url"`
}

// Merge layers c over defaults, field by field. Request-supplied values win.
func (c Credentials) Merge(defaults Credentials) Credentials {
	out := c
	if out.Username == "" {
		out.Username = defaults.Username
	}
	if out.APIToken == "" {
		out.APIToken = defaults.APIToken
	}
	if out.BaseURL == "" {
		out.BaseURL = defaults.BaseURL
	}
	return out
}

// Complete reports whether all three fields are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.APIToken != "" && c.BaseURL != ""
}

// NormalizeTestCases validates a generated test case list and renumbers
// test ids to TC-001, TC-002, ... in emission order. The generator, not the
// model, is the source of truth for numbering, so inconsistent model ids are
// overwritten rather than rejected. Returns the normalized copy.
func NormalizeTestCases(cases []TestCase) ([]TestCase, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("test case list is empty")
	}

	out := make([]TestCase, len(cases))
	for i, tc := range cases {
		if strings.TrimSpace(tc.Title) == "" {
			return nil, fmt.Errorf("test case %d: title is empty", i+1)
		}
		if strings.TrimSpace(tc.ExpectedResult) == "" {
			return nil, fmt.Errorf("test case %d: expected_result is empty", i+1)
		}
		if len(tc.Steps) == 0 {
			return nil, fmt.Errorf("test case %d: steps is empty", i+1)
		}

		steps := make([]string, len(tc.Steps))
		for j, step := range tc.Steps {
			step = strings.TrimSpace(step)
			if step == "" {
				return nil, fmt.Errorf("test case %d: step %d is empty", i+1, j+1)
			}
			steps[j] = step
		}

		out[i] = TestCase{
			TestID:         fmt.Sprintf("TC-%03d", i+1),
			Title:          strings.TrimSpace(tc.Title),
			Steps:          steps,
			ExpectedResult: strings.TrimSpace(tc.ExpectedResult),
		}
	}

	return out, nil
}
