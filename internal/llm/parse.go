package llm

import (
	"encoding/json"
	"strings"
)

// ExtractionOutcome discriminates the three shapes an extraction response can
// take once parsed.
type ExtractionOutcome int

const (
	// OutcomeInsights means the response parsed into a non-empty insight object.
	OutcomeInsights ExtractionOutcome = iota
	// OutcomeSkip means the model itself declared the conversation not worth
	// extracting. A model-declared skip is a classification, not an error.
	OutcomeSkip
	// OutcomeParseFailure means the response was not valid JSON after fence
	// stripping. The raw text is preserved for diagnostics.
	OutcomeParseFailure
)

// ExtractionResult is the tagged union returned by ParseExtraction. Exactly
// one of Insights, SkipReason, or Raw is meaningful depending on Outcome.
type ExtractionResult struct {
	Outcome    ExtractionOutcome
	Insights   map[string]any
	SkipReason string
	Raw        string
}

// StripFences removes an optional Markdown code fence wrapper from a model
// response. Handles "```json" and bare "```" fences; anything else is
// returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// drop a language tag like "json" on the opening fence line
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isFenceTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseExtraction parses an extraction response into its tagged result.
// The completion service does not guarantee strict JSON, so all tolerance
// (fence stripping, skip detection) is isolated here.
func ParseExtraction(response string) ExtractionResult {
	cleaned := StripFences(response)

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return ExtractionResult{Outcome: OutcomeParseFailure, Raw: response}
	}

	if skipped, ok := payload["skipped"].(bool); ok && skipped {
		reason, _ := payload["reason"].(string)
		if reason == "" {
			reason = "model declined"
		}
		return ExtractionResult{Outcome: OutcomeSkip, SkipReason: reason}
	}

	return ExtractionResult{Outcome: OutcomeInsights, Insights: payload}
}

// ParseMerge parses a profile-merge response. Returns the merged object and
// true on success; false means the caller should fall back to the
// deterministic batch merge.
func ParseMerge(response string) (map[string]any, bool) {
	cleaned := StripFences(response)

	var merged map[string]any
	if err := json.Unmarshal([]byte(cleaned), &merged); err != nil {
		return nil, false
	}
	return merged, true
}
