package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/intellix-ai/testgen/internal/domain"
)

// parseTestCases extracts and validates the test case array from raw model
// output. Models often wrap JSON in code fences, prefix it with chatter, or
// emit <think> blocks; everything outside the outermost [...] is discarded.
func parseTestCases(raw string) ([]domain.TestCase, error) {
	jsonText, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var cases []domain.TestCase
	if err := json.Unmarshal([]byte(jsonText), &cases); err != nil {
		return nil, fmt.Errorf("parse JSON array: %w", err)
	}

	normalized, err := domain.NormalizeTestCases(cases)
	if err != nil {
		return nil, fmt.Errorf("validate test cases: %w", err)
	}
	return normalized, nil
}

func extractJSONArray(raw string) (string, error) {
	text := stripThinkBlocks(raw)
	text = stripCodeFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON array found in output")
	}
	return text[start : end+1], nil
}

// stripThinkBlocks removes <think>...</think> reasoning emitted by some
// local models before the actual answer.
func stripThinkBlocks(text string) string {
	for {
		open := strings.Index(text, "<think>")
		if open == -1 {
			return text
		}
		close := strings.Index(text[open:], "</think>")
		if close == -1 {
			return text[:open]
		}
		text = text[:open] + text[open+close+len("</think>"):]
	}
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
