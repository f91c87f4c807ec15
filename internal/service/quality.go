package service

import (
	"github.com/raphaelgruber/profiled-go/internal/models"
)

// Quality thresholds. A conversation below any of them carries too little
// signal to be worth an LLM call.
const (
	MinMessages         = 6
	MinUserMessages     = 3
	MinUserContentChars = 200
)

// QualityStats summarizes the signal available in one conversation.
type QualityStats struct {
	MessageCount     int
	UserMessageCount int
	UserContentChars int
}

// Score is a coarse 0..1 quality indicator stored on the ledger row for
// later inspection. Each satisfied threshold contributes a third.
func (q QualityStats) Score() float64 {
	score := 0.0
	if q.MessageCount >= MinMessages {
		score += 1.0 / 3.0
	}
	if q.UserMessageCount >= MinUserMessages {
		score += 1.0 / 3.0
	}
	if q.UserContentChars >= MinUserContentChars {
		score += 1.0 / 3.0
	}
	return score
}

// Sufficient reports whether all thresholds are met.
func (q QualityStats) Sufficient() bool {
	return q.MessageCount >= MinMessages &&
		q.UserMessageCount >= MinUserMessages &&
		q.UserContentChars >= MinUserContentChars
}

// AssessQuality computes quality stats over a conversation's messages. The
// character count is the raw concatenated length of user-authored content.
func AssessQuality(messages []models.Message) QualityStats {
	stats := QualityStats{MessageCount: len(messages)}
	for _, m := range messages {
		if m.Role == models.RoleUser {
			stats.UserMessageCount++
			stats.UserContentChars += len(m.Content)
		}
	}
	return stats
}
