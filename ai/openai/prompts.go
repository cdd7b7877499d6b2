package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/masterdb/ai"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "index": {"type": "integer", "minimum": 1},
          "mid": {"type": "string"},
          "sub": {"type": "string"}
        },
        "required": ["index", "mid", "sub"],
        "additionalProperties": false
      }
    }
  },
  "required": ["results"],
  "additionalProperties": false
}`

const classificationPromptTemplate = `Classify employee survey questions into a fixed two-level scheme and return the result as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble or explanation.
Start your response directly with the opening brace { and end with the closing brace }:

%s

Scheme (mid category: sub categories):
%s
Rules:
- Pick the single best mid category and one of its sub categories for every numbered question.
- Use the labels exactly as written above.
- If nothing fits, use "%s" for both mid and sub.
- "index" is the number of the question in the input list.

Example:
Input:
1. 상사는 나의 의견을 경청한다
2. 회사의 보상 수준에 만족한다
Output:
{
  "results": [
    {"index":1,"mid":"리더십","sub":"소통/경청"},
    {"index":2,"mid":"인사제도","sub":"보상급여"}
  ]
}`

// buildSystemPrompt creates the system prompt with the legacy scheme embedded.
func buildSystemPrompt() string {
	var scheme strings.Builder
	for i, g := range ai.LegacyScheme {
		fmt.Fprintf(&scheme, "%d. %s: %s\n", i+1, g.Mid, strings.Join(g.Subs, ", "))
	}
	return fmt.Sprintf(classificationPromptTemplate,
		classificationResponseSchema,
		scheme.String(),
		ai.Unclassified)
}

// buildBatchPrompt numbers the questions from 1 so results can be matched by index.
func buildBatchPrompt(texts []string) string {
	var sb strings.Builder
	sb.WriteString("Classify each of the following survey questions:\n\n")
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, cleanText(t))
	}
	return sb.String()
}
