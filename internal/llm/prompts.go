package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/profiled-go/internal/models"
)

// ExtractionSystemPrompt instructs the model to distill one conversation into
// structured insights, or to declare a skip when there is nothing to learn.
const ExtractionSystemPrompt = `You are a memory extraction assistant. You read one conversation between a user and an assistant and extract durable facts about the user worth remembering for personalization.

Respond with a single JSON object and nothing else. Use keys such as:
- "interests": list of strings
- "preferences": object of preference name to value
- "facts": list of strings (stable biographical or situational facts)
- "goals": list of strings
- "communication_style": object

Only include keys you have evidence for. Do not invent information.

If the conversation contains no durable signal about the user, respond with exactly:
{"skipped": true, "reason": "<short reason>"}`

// MergeSystemPrompt instructs the model to reconcile new batch insights with
// the previously persisted profile.
const MergeSystemPrompt = `You are a memory consolidation assistant. You receive a user's existing profile and newly extracted insights, both as JSON objects.

Merge them into one coherent profile:
- keep established facts unless the new insights clearly supersede them
- combine and deduplicate lists
- prefer newer information on direct conflicts

Respond with the merged profile as a single JSON object and nothing else.`

// SummarySystemPrompt derives the short natural-language digest injected into
// later chat sessions.
const SummarySystemPrompt = `You are a profile summarization assistant. Given a user profile as JSON, write a natural-language summary of the user in at most 5 sentences. Write in third person, present tense. Mention only what the profile supports. Respond with the summary text only.`

// BuildTranscript renders a conversation's messages into the plain-text
// transcript submitted for extraction.
func BuildTranscript(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildMergePrompt renders the user prompt for the profile merge call.
func BuildMergePrompt(existing, incoming map[string]any) (string, error) {
	existingJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal existing profile: %w", err)
	}
	incomingJSON, err := json.MarshalIndent(incoming, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal new insights: %w", err)
	}

	return fmt.Sprintf(`Existing profile:
%s

New insights:
%s

Merged profile:`, existingJSON, incomingJSON), nil
}

// BuildSummaryPrompt renders the user prompt for the summary call.
func BuildSummaryPrompt(profileData map[string]any) (string, error) {
	profileJSON, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile data: %w", err)
	}

	return fmt.Sprintf(`Profile:
%s

Summary:`, profileJSON), nil
}

// EstimateTokens approximates the token count of a transcript using the
// conventional 4-characters-per-token heuristic. Used only for the too_long
// gate, so precision does not matter.
func EstimateTokens(text string) int {
	return len(text) / 4
}
