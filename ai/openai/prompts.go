package openai

import "fmt"

const tagPromptTemplate = `You label search queries for a document library.

Return 3 to %d short topical tags that describe what the query is about. Output ONLY a JSON
array of strings. Do not include any preamble, explanation, or code fences. Start your response
with [ and end it with ].

Rules:
- Tags are lowercase, 1-3 words, with words joined by hyphens.
- Prefer the subject area over generic words: "data-retention", not "policy".
- Include jurisdictions, departments or document types when the query names them.
- Do not invent topics the query does not mention or clearly imply.
- If no tag applies, return [].

Example:
Input: "How long must we keep payroll records in Germany?"
Output:
["payroll", "record-retention", "germany", "employment-law"]

Example:
Input: "who approves vendor contracts over 50k"
Output:
["vendor-contracts", "procurement", "approval-authority"]`

// buildTagPrompt creates the system prompt with the tag cap embedded.
func buildTagPrompt(maxTags int) string {
	return fmt.Sprintf(tagPromptTemplate, maxTags)
}
