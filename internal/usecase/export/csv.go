// Package export renders stored records into downloadable formats.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/intellix-ai/testgen/internal/domain"
)

// stepSeparator joins multi-step sequences into a single CSV cell.
const stepSeparator = "; "

// csvHeader is the fixed column set, in order.
var csvHeader = []string{"test_id", "title", "steps", "expected_result"}

// CSV renders a record's test cases as a CSV document with a fixed header.
// Steps are joined into one cell; quoting and escaping follow RFC 4180 via
// the encoder, so embedded commas, quotes and newlines survive round-trips.
func CSV(rec *domain.TestCaseRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, tc := range rec.TestCases {
		row := []string{
			tc.TestID,
			tc.Title,
			strings.Join(tc.Steps, stepSeparator),
			tc.ExpectedResult,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %s: %w", tc.TestID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download filename for a ticket's CSV export.
func Filename(ticketID string) string {
	return fmt.Sprintf("test_cases_%s.csv", ticketID)
}
