package service

import (
	"testing"

	"github.com/raphaelgruber/profiled-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func msgs(pairs ...[2]string) []models.Message {
	out := make([]models.Message, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.Message{Role: p[0], Content: p[1]})
	}
	return out
}

func TestAssessQualitySufficient(t *testing.T) {
	long := "I have been building a distributed job scheduler in Go and keep hitting etcd lease expiry problems."

	stats := AssessQuality(msgs(
		[2]string{models.RoleUser, long},
		[2]string{models.RoleAssistant, "answer"},
		[2]string{models.RoleUser, long},
		[2]string{models.RoleAssistant, "answer"},
		[2]string{models.RoleUser, long},
		[2]string{models.RoleAssistant, "answer"},
	))

	assert.True(t, stats.Sufficient())
	assert.Equal(t, 6, stats.MessageCount)
	assert.Equal(t, 3, stats.UserMessageCount)
	assert.InDelta(t, 1.0, stats.Score(), 0.001)
}

func TestAssessQualityTooFewMessages(t *testing.T) {
	stats := AssessQuality(msgs(
		[2]string{models.RoleUser, "short question with enough characters to clear the per user content threshold if repeated a couple of times over and over and over again until it is long"},
		[2]string{models.RoleUser, "short question with enough characters to clear the per user content threshold if repeated a couple of times over and over and over again until it is long"},
		[2]string{models.RoleUser, "third"},
		[2]string{models.RoleAssistant, "answer"},
	))

	assert.False(t, stats.Sufficient())
	assert.Less(t, stats.Score(), 1.0)
}

func TestAssessQualityTooFewUserMessages(t *testing.T) {
	long := "plenty of user content in one single message that easily clears two hundred characters when written out fully like this sentence does, with room to spare because it keeps going and going and going"

	stats := AssessQuality(msgs(
		[2]string{models.RoleUser, long},
		[2]string{models.RoleAssistant, "a"},
		[2]string{models.RoleAssistant, "b"},
		[2]string{models.RoleAssistant, "c"},
		[2]string{models.RoleAssistant, "d"},
		[2]string{models.RoleAssistant, "e"},
	))

	assert.False(t, stats.Sufficient())
	assert.Equal(t, 1, stats.UserMessageCount)
}

func TestAssessQualityCountsRawUserContent(t *testing.T) {
	stats := AssessQuality(msgs(
		[2]string{models.RoleUser, "  padded question  "},
		[2]string{models.RoleAssistant, "ignored"},
	))
	assert.Equal(t, len("  padded question  "), stats.UserContentChars)
}

func TestAssessQualitySystemMessagesIgnoredForUserStats(t *testing.T) {
	stats := AssessQuality(msgs(
		[2]string{models.RoleSystem, "system prompt text"},
		[2]string{models.RoleUser, "hi"},
	))
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, 1, stats.UserMessageCount)
	assert.Equal(t, 2, stats.UserContentChars)
}
