package rewrite

import (
	"fmt"
	"strings"
)

const promptTemplate = `Rewrite this task into a clear, actionable goal. Return ONLY a JSON object with this exact structure:
{
  "title": "Clear, specific task title",
  "tags": ["tag1", "tag2"],
  "urgency": 0-3,
  "due": "YYYY-MM-DD" (optional, only if date is mentioned)
}

Task: "%s"`

// BuildPrompt renders the instruction prompt for raw. Non-empty user rules
// are appended verbatim as a trailing line.
func BuildPrompt(raw, userRules string) string {
	prompt := fmt.Sprintf(promptTemplate, raw)
	if strings.TrimSpace(userRules) != "" {
		prompt += "\n\nUser rules: " + userRules
	}
	return prompt
}
