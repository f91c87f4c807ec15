package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/models"
)

// selectConversations picks the next batch of unanalyzed conversations for a
// user: the first batchSize conversations that have no ledger row yet, most
// recent first. The settle delay runs first so conversations written just
// before the trigger are visible to the listing.
func (p *Pipeline) selectConversations(ctx context.Context, userID string, batchSize int) ([]models.Conversation, error) {
	if p.cfg.SettleDelay > 0 {
		select {
		case <-time.After(p.cfg.SettleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	conversations, err := p.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	analyzedIDs, err := p.store.ListAnalyzedConversationIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list analyzed: %w", err)
	}
	analyzed := make(map[string]struct{}, len(analyzedIDs))
	for _, id := range analyzedIDs {
		analyzed[id] = struct{}{}
	}

	pending := make([]models.Conversation, 0, batchSize)
	// ListConversations returns most recent first; keep that order so the
	// batch covers the newest unanalyzed conversations.
	for _, conv := range conversations {
		if _, done := analyzed[models.MustRecordIDString(conv.ID)]; done {
			continue
		}
		pending = append(pending, conv)
		if len(pending) == batchSize {
			break
		}
	}
	return pending, nil
}

// countPending returns how many conversations a new job for this user would
// have to examine, capped at batchSize. Used to size the job at creation.
func countPending(ctx context.Context, store Store, userID string, batchSize int) (int, error) {
	conversations, err := store.ListConversations(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}
	analyzedIDs, err := store.ListAnalyzedConversationIDs(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list analyzed: %w", err)
	}
	analyzed := make(map[string]struct{}, len(analyzedIDs))
	for _, id := range analyzedIDs {
		analyzed[id] = struct{}{}
	}

	n := 0
	for _, conv := range conversations {
		if _, done := analyzed[models.MustRecordIDString(conv.ID)]; !done {
			n++
			if n == batchSize {
				break
			}
		}
	}
	return n, nil
}
