package generation

import "fmt"

// promptTemplate asks the model for structured manual test cases. The JSON
// example anchors the schema; local models follow examples far better than
// prose field lists.
const promptTemplate = `You are an experienced QA analyst. Based on the following ticket description, write manual test cases.

Ticket description:
%s

Return a JSON array where every element has exactly these fields:
- "test_id": string, e.g. "TC-001"
- "title": short name of the test case
- "steps": array of strings, the actions to perform in order
- "expected_result": the observable outcome

Example:
[
  {
    "test_id": "TC-001",
    "title": "Verify login with valid credentials",
    "steps": [
      "Open the login page",
      "Enter a valid username and password",
      "Click the Login button"
    ],
    "expected_result": "The user is logged in and redirected to the dashboard"
  }
]

Return ONLY valid JSON without any extra text.`

// retryInstruction is appended verbatim on the single malformed-output retry.
const retryInstruction = "\n\nYour previous answer was not valid JSON. Return ONLY a valid JSON array, no other text."

func buildPrompt(description string) string {
	return fmt.Sprintf(promptTemplate, description)
}
