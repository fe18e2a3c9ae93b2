package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/notify"
	"github.com/foxseedlab/kaiwarank/internal/observability"
	"github.com/foxseedlab/kaiwarank/internal/repository"
)

const (
	CloseReasonExpired = "expired"
	CloseReasonForced  = "forced"
)

// Tracker runs the per-channel conversation state machine. It is the only
// writer of conversation state and the only trigger of ledger increments
// and history appends; ranking reads go straight to the repository.
type Tracker struct {
	cfg      *config.Config
	repo     repository.Repository
	notifier notify.Sender
	metrics  *observability.Metrics

	mu        sync.Mutex
	botUserID string
}

func NewTracker(cfg *config.Config, repo repository.Repository, notifier notify.Sender, metrics *observability.Metrics) *Tracker {
	return &Tracker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (t *Tracker) SetBotUserID(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.botUserID = userID
}

// HandleMessage consumes one message event to completion. Events are
// serialized through a single mutex so read-modify-write of a channel's
// state never races.
func (t *Tracker) HandleMessage(ctx context.Context, ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.SpeakerID == "" || ev.SpeakerID == t.botUserID {
		t.metrics.ObserveMessageEvent("ignored_bot")
		return nil
	}
	if ev.IsAutomated && !t.cfg.CountOtherBots {
		t.metrics.ObserveMessageEvent("ignored_bot")
		return nil
	}
	if ev.GuildID == "" {
		// Direct messages have no guild and are never scored.
		t.metrics.ObserveMessageEvent("ignored_dm")
		return nil
	}

	prev, err := t.repo.GetConversation(ctx, ev.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	if prev != nil && prev.GuildID == "" {
		slog.Error("open conversation is missing guild id; purging corrupt row", "channel_id", prev.ChannelID)
		if err := t.repo.DeleteConversation(ctx, prev.ChannelID); err != nil {
			return fmt.Errorf("failed to purge corrupt conversation: %w", err)
		}
		t.metrics.ObserveMessageEvent("corrupt_purged")
		t.metrics.DecActiveConversations()
		prev = nil
	}

	if prev == nil {
		state := Start(ev)
		if err := t.repo.UpsertConversation(ctx, state); err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}
		slog.Debug("conversation opened", "guild_id", ev.GuildID, "channel_id", ev.ChannelID)
		t.metrics.ObserveMessageEvent("started")
		t.metrics.IncActiveConversations()
		return nil
	}

	if Evaluate(prev, ev) == VerdictExpired {
		if err := t.closeLocked(ctx, *prev, ev.Timestamp, CloseReasonExpired); err != nil {
			return err
		}
		state := Start(ev)
		if err := t.repo.UpsertConversation(ctx, state); err != nil {
			return fmt.Errorf("failed to reopen conversation: %w", err)
		}
		slog.Debug("conversation closed and reopened", "guild_id", ev.GuildID, "channel_id", ev.ChannelID)
		t.metrics.ObserveMessageEvent("closed_reopened")
		t.metrics.IncActiveConversations()
		return nil
	}

	state := Continue(*prev, ev)
	if err := t.repo.UpsertConversation(ctx, state); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	t.metrics.ObserveMessageEvent("continued")
	return nil
}

// ForceClose finalizes one channel's open conversation, crediting the
// guild ledger as usual. Closing a channel with no open conversation is a
// no-op.
func (t *Tracker) ForceClose(ctx context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.repo.GetConversation(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == nil {
		return nil
	}
	if state.GuildID == "" {
		slog.Error("open conversation is missing guild id; purging corrupt row", "channel_id", channelID)
		if err := t.repo.DeleteConversation(ctx, channelID); err != nil {
			return fmt.Errorf("failed to purge corrupt conversation: %w", err)
		}
		t.metrics.DecActiveConversations()
		return nil
	}
	return t.closeLocked(ctx, *state, state.LastEventAt, CloseReasonForced)
}

// ForceCloseAll is the shutdown sweep: every open conversation is closed
// with its last event time as the end so no live score is lost. One
// channel's failure never stops the sweep; failures are joined and
// reported to the caller.
func (t *Tracker) ForceCloseAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states, err := t.repo.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open conversations: %w", err)
	}

	var errs []error
	for _, state := range states {
		if state.GuildID == "" {
			slog.Error("open conversation is missing guild id; purging corrupt row", "channel_id", state.ChannelID)
			if err := t.repo.DeleteConversation(ctx, state.ChannelID); err != nil {
				errs = append(errs, fmt.Errorf("channel %s: %w", state.ChannelID, err))
			}
			t.metrics.DecActiveConversations()
			continue
		}
		if err := t.closeLocked(ctx, state, state.LastEventAt, CloseReasonForced); err != nil {
			slog.Error("failed to force-close conversation", "error", err, "channel_id", state.ChannelID, "guild_id", state.GuildID)
			errs = append(errs, fmt.Errorf("channel %s: %w", state.ChannelID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) closeLocked(ctx context.Context, state repository.ConversationState, endedAt time.Time, reason string) error {
	if err := t.repo.InsertHistory(ctx, repository.InsertHistoryInput{
		GuildID:           state.GuildID,
		ChannelID:         state.ChannelID,
		Score:             state.Score,
		ParticipantsCount: len(state.Participants),
		StartedAt:         state.StartedAt,
		EndedAt:           endedAt,
	}); err != nil {
		return fmt.Errorf("failed to append conversation history: %w", err)
	}
	if err := t.repo.AddGuildScore(ctx, repository.AddGuildScoreInput{
		GuildID:   state.GuildID,
		Score:     state.Score,
		UpdatedAt: endedAt,
	}); err != nil {
		return fmt.Errorf("failed to credit guild ledger: %w", err)
	}
	if err := t.repo.DeleteConversation(ctx, state.ChannelID); err != nil {
		return fmt.Errorf("failed to delete closed conversation: %w", err)
	}
	slog.Info("conversation closed",
		"guild_id", state.GuildID,
		"channel_id", state.ChannelID,
		"score", state.Score,
		"participants", len(state.Participants),
		"reason", reason)
	t.metrics.ObserveConversationClosed(reason, state.Score)
	t.metrics.DecActiveConversations()

	// Notification is best effort; its failure must never touch the
	// bookkeeping above.
	if t.notifier != nil {
		if err := t.notifier.SendConversationClose(ctx, notify.ConversationClosePayload{
			GuildID:           state.GuildID,
			ChannelID:         state.ChannelID,
			Score:             state.Score,
			ParticipantsCount: len(state.Participants),
			StartedAt:         state.StartedAt,
			EndedAt:           endedAt,
			Reason:            reason,
		}); err != nil {
			slog.Warn("failed to send close notification", "error", err, "channel_id", state.ChannelID)
		}
	}
	return nil
}
