package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/repository"
)

type fakeStore struct {
	guilds        []repository.GuildRecord
	conversations []repository.ConversationState

	listGuildsErr error
}

func (f *fakeStore) GetGuild(_ context.Context, guildID string) (*repository.GuildRecord, error) {
	for _, g := range f.guilds {
		if g.GuildID == guildID {
			copied := g
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpsertGuildName(_ context.Context, _, _ string, _ time.Time) error { return nil }

func (f *fakeStore) AddGuildScore(_ context.Context, _ repository.AddGuildScoreInput) error {
	return nil
}

func (f *fakeStore) ListGuilds(_ context.Context) ([]repository.GuildRecord, error) {
	if f.listGuildsErr != nil {
		return nil, f.listGuildsErr
	}
	return f.guilds, nil
}

func (f *fakeStore) GetConversation(_ context.Context, _ string) (*repository.ConversationState, error) {
	return nil, nil
}

func (f *fakeStore) UpsertConversation(_ context.Context, _ repository.ConversationState) error {
	return nil
}

func (f *fakeStore) DeleteConversation(_ context.Context, _ string) error { return nil }

func (f *fakeStore) ListConversations(_ context.Context) ([]repository.ConversationState, error) {
	return f.conversations, nil
}

func (f *fakeStore) ListGuildConversations(_ context.Context, guildID string) ([]repository.ConversationState, error) {
	var list []repository.ConversationState
	for _, c := range f.conversations {
		if c.GuildID == guildID {
			list = append(list, c)
		}
	}
	return list, nil
}

func (f *fakeStore) DeleteBrokenConversations(_ context.Context) (int64, error) { return 0, nil }

func newTestService(store *fakeStore) *Service {
	return NewService(store, store)
}

func TestRanking_BlendsLiveScoresAndSorts(t *testing.T) {
	store := &fakeStore{
		guilds: []repository.GuildRecord{
			{GuildID: "guild-a", GuildName: "Alpha", TotalScore: 10, ConversationsCount: 4},
			{GuildID: "guild-b", GuildName: "Beta", TotalScore: 12, ConversationsCount: 2},
		},
		conversations: []repository.ConversationState{
			{ChannelID: "channel-1", GuildID: "guild-a", Score: 3.5},
			{ChannelID: "channel-2", GuildID: "guild-a", Score: 1.0},
		},
	}
	svc := newTestService(store)

	ranked, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected two rows, got %d", len(ranked))
	}
	if ranked[0].GuildID != "guild-a" {
		t.Fatalf("expected guild-a first (10 + 4.5 live), got %s", ranked[0].GuildID)
	}
	if ranked[0].Score != 14.5 || ranked[0].LiveScore != 4.5 {
		t.Fatalf("unexpected blended score: %+v", ranked[0])
	}
	if ranked[0].ActiveConversations != 2 {
		t.Fatalf("expected two active conversations, got %d", ranked[0].ActiveConversations)
	}
	if ranked[1].Score != 12 || ranked[1].LiveScore != 0 {
		t.Fatalf("unexpected second row: %+v", ranked[1])
	}
}

func TestRanking_TieBreaksByGuildID(t *testing.T) {
	store := &fakeStore{
		guilds: []repository.GuildRecord{
			{GuildID: "guild-z", TotalScore: 5},
			{GuildID: "guild-a", TotalScore: 5},
		},
	}
	svc := newTestService(store)

	ranked, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ranked[0].GuildID != "guild-a" || ranked[1].GuildID != "guild-z" {
		t.Fatalf("expected guild id tie break, got %s then %s", ranked[0].GuildID, ranked[1].GuildID)
	}
}

func TestRanking_EmptyNameFallsBack(t *testing.T) {
	store := &fakeStore{
		guilds: []repository.GuildRecord{{GuildID: "guild-a", TotalScore: 1}},
	}
	svc := newTestService(store)

	ranked, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ranked[0].GuildName != "Unknown Server" {
		t.Fatalf("expected fallback name, got %q", ranked[0].GuildName)
	}
}

func TestRanking_ExcludesGuildsWithoutLedgerRow(t *testing.T) {
	store := &fakeStore{
		conversations: []repository.ConversationState{
			{ChannelID: "channel-1", GuildID: "guild-live-only", Score: 2},
		},
	}
	svc := newTestService(store)

	ranked, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ranked) != 0 {
		t.Fatalf("expected no rows for ledger-less guilds, got %d", len(ranked))
	}
}

func TestGuildStats_CombinesLedgerAndLive(t *testing.T) {
	store := &fakeStore{
		guilds: []repository.GuildRecord{
			{GuildID: "guild-a", TotalScore: 10, ConversationsCount: 3},
		},
		conversations: []repository.ConversationState{
			{ChannelID: "channel-1", GuildID: "guild-a", Score: 3.5},
		},
	}
	svc := newTestService(store)

	stats, err := svc.GuildStats(context.Background(), "guild-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.TotalScore != 10 || stats.LiveScore != 3.5 || stats.TotalWithLive != 13.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ConversationsCount != 3 || stats.ActiveConversations != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestGuildStats_UnknownGuildIsZeroed(t *testing.T) {
	svc := newTestService(&fakeStore{})

	stats, err := svc.GuildStats(context.Background(), "guild-missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats != (GuildStats{}) {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestGlobalStats_Aggregates(t *testing.T) {
	store := &fakeStore{
		guilds: []repository.GuildRecord{
			{GuildID: "guild-a", TotalScore: 10, ConversationsCount: 4},
			{GuildID: "guild-b", TotalScore: 2, ConversationsCount: 1},
		},
		conversations: []repository.ConversationState{
			{ChannelID: "channel-1", GuildID: "guild-a", Score: 1},
			{ChannelID: "channel-2", GuildID: "guild-b", Score: 2},
			{ChannelID: "channel-3", GuildID: "guild-b", Score: 3},
		},
	}
	svc := newTestService(store)

	stats, err := svc.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.TotalGuilds != 2 || stats.TotalScore != 12 || stats.TotalConversations != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ActiveConversations != 3 {
		t.Fatalf("expected three active conversations, got %d", stats.ActiveConversations)
	}
	if stats.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}
}

func TestRanking_PropagatesStorageFailure(t *testing.T) {
	store := &fakeStore{listGuildsErr: errors.New("connection lost")}
	svc := newTestService(store)

	if _, err := svc.Ranking(context.Background()); err == nil {
		t.Fatal("expected storage failure to propagate")
	}
}
