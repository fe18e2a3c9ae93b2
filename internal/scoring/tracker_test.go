package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/notify"
	"github.com/foxseedlab/kaiwarank/internal/repository"
)

type mockRepository struct {
	conversations map[string]repository.ConversationState
	guilds        map[string]*repository.GuildRecord
	history       []repository.InsertHistoryInput

	getConversationErr error
	insertHistoryErr   error
	addGuildScoreErr   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		conversations: make(map[string]repository.ConversationState),
		guilds:        make(map[string]*repository.GuildRecord),
	}
}

func (m *mockRepository) GetGuild(_ context.Context, guildID string) (*repository.GuildRecord, error) {
	g, ok := m.guilds[guildID]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

func (m *mockRepository) UpsertGuildName(_ context.Context, guildID, guildName string, updatedAt time.Time) error {
	g, ok := m.guilds[guildID]
	if !ok {
		g = &repository.GuildRecord{GuildID: guildID}
		m.guilds[guildID] = g
	}
	g.GuildName = guildName
	g.LastUpdated = updatedAt
	return nil
}

func (m *mockRepository) AddGuildScore(_ context.Context, input repository.AddGuildScoreInput) error {
	if m.addGuildScoreErr != nil {
		return m.addGuildScoreErr
	}
	g, ok := m.guilds[input.GuildID]
	if !ok {
		g = &repository.GuildRecord{GuildID: input.GuildID}
		m.guilds[input.GuildID] = g
	}
	g.TotalScore += input.Score
	g.ConversationsCount++
	g.LastUpdated = input.UpdatedAt
	return nil
}

func (m *mockRepository) ListGuilds(_ context.Context) ([]repository.GuildRecord, error) {
	var list []repository.GuildRecord
	for _, g := range m.guilds {
		list = append(list, *g)
	}
	return list, nil
}

func (m *mockRepository) GetConversation(_ context.Context, channelID string) (*repository.ConversationState, error) {
	if m.getConversationErr != nil {
		return nil, m.getConversationErr
	}
	s, ok := m.conversations[channelID]
	if !ok {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (m *mockRepository) UpsertConversation(_ context.Context, state repository.ConversationState) error {
	m.conversations[state.ChannelID] = state
	return nil
}

func (m *mockRepository) DeleteConversation(_ context.Context, channelID string) error {
	delete(m.conversations, channelID)
	return nil
}

func (m *mockRepository) ListConversations(_ context.Context) ([]repository.ConversationState, error) {
	var list []repository.ConversationState
	for _, s := range m.conversations {
		list = append(list, s)
	}
	return list, nil
}

func (m *mockRepository) ListGuildConversations(_ context.Context, guildID string) ([]repository.ConversationState, error) {
	var list []repository.ConversationState
	for _, s := range m.conversations {
		if s.GuildID == guildID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockRepository) DeleteBrokenConversations(_ context.Context) (int64, error) {
	var purged int64
	for channelID, s := range m.conversations {
		if s.GuildID == "" {
			delete(m.conversations, channelID)
			purged++
		}
	}
	return purged, nil
}

func (m *mockRepository) InsertHistory(_ context.Context, input repository.InsertHistoryInput) error {
	if m.insertHistoryErr != nil {
		return m.insertHistoryErr
	}
	m.history = append(m.history, input)
	return nil
}

func (m *mockRepository) SaveRegistration(_ context.Context, _ repository.Registration) error {
	return nil
}

func (m *mockRepository) GetRegistrationByToken(_ context.Context, _ string) (*repository.Registration, error) {
	return nil, nil
}

func (m *mockRepository) CompleteRegistration(_ context.Context, _ string) error { return nil }

func (m *mockRepository) ClearAllData(_ context.Context) error {
	m.conversations = make(map[string]repository.ConversationState)
	m.guilds = make(map[string]*repository.GuildRecord)
	m.history = nil
	return nil
}

type mockNotifier struct {
	payloads []notify.ConversationClosePayload
	err      error
}

func (m *mockNotifier) SendConversationClose(_ context.Context, payload notify.ConversationClosePayload) error {
	m.payloads = append(m.payloads, payload)
	return m.err
}

func newTestTracker(repo repository.Repository, notifier notify.Sender) *Tracker {
	cfg := &config.Config{
		Env:           "test",
		DatabaseURL:   "postgres://localhost/test",
		DiscordToken:  "token",
		WebListenAddr: ":0",
		WebBaseURL:    "http://localhost",
	}
	tracker := NewTracker(cfg, repo, notifier, nil)
	tracker.SetBotUserID("bot-self")
	return tracker
}

func TestHandleMessage_OpensConversation(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	if err := tracker.HandleMessage(context.Background(), eventAt(0, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	state, ok := repo.conversations["channel-1"]
	if !ok {
		t.Fatal("expected an open conversation")
	}
	if state.Score != 1 || state.BurstCount != 1 {
		t.Fatalf("unexpected opening state: %+v", state)
	}
	if len(repo.history) != 0 {
		t.Fatalf("expected no history rows, got %d", len(repo.history))
	}
}

func TestHandleMessage_IgnoresBotAndOwnMessages(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	ev := eventAt(0, "bot-self")
	if err := tracker.HandleMessage(context.Background(), ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	other := eventAt(0, "other-bot")
	other.IsAutomated = true
	if err := tracker.HandleMessage(context.Background(), other); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(repo.conversations) != 0 {
		t.Fatalf("expected no conversations, got %d", len(repo.conversations))
	}
}

func TestHandleMessage_IgnoresDirectMessages(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	ev := eventAt(0, "user-x")
	ev.GuildID = ""
	if err := tracker.HandleMessage(context.Background(), ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.conversations) != 0 {
		t.Fatalf("expected no conversations, got %d", len(repo.conversations))
	}
}

func TestHandleMessage_ExpiryClosesAndReopens(t *testing.T) {
	repo := newMockRepository()
	notifier := &mockNotifier{}
	tracker := newTestTracker(repo, notifier)

	ctx := context.Background()
	if err := tracker.HandleMessage(ctx, eventAt(0, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := tracker.HandleMessage(ctx, eventAt(3*time.Second, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := tracker.HandleMessage(ctx, eventAt(50*time.Second, "user-y")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(repo.history) != 1 {
		t.Fatalf("expected one history row, got %d", len(repo.history))
	}
	closed := repo.history[0]
	if closed.Score != 1.1 {
		t.Fatalf("expected final score 1.1, got %v", closed.Score)
	}
	if !closed.StartedAt.Equal(baseTime) {
		t.Fatalf("unexpected started at: %v", closed.StartedAt)
	}
	if !closed.EndedAt.Equal(baseTime.Add(50 * time.Second)) {
		t.Fatalf("unexpected ended at: %v", closed.EndedAt)
	}

	guild := repo.guilds["guild-1"]
	if guild == nil || guild.TotalScore != 1.1 || guild.ConversationsCount != 1 {
		t.Fatalf("unexpected ledger state: %+v", guild)
	}

	reopened, ok := repo.conversations["channel-1"]
	if !ok {
		t.Fatal("expected a fresh open conversation")
	}
	if reopened.Score != 1 || reopened.LastSpeaker != "user-y" {
		t.Fatalf("unexpected reopened state: %+v", reopened)
	}
	if !reopened.StartedAt.Equal(baseTime.Add(50 * time.Second)) {
		t.Fatalf("unexpected reopened start: %v", reopened.StartedAt)
	}
	if len(notifier.payloads) != 1 || notifier.payloads[0].Reason != CloseReasonExpired {
		t.Fatalf("unexpected notifications: %+v", notifier.payloads)
	}
}

func TestHandleMessage_PurgesCorruptState(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	repo.conversations["channel-1"] = repository.ConversationState{
		ChannelID:    "channel-1",
		GuildID:      "",
		StartedAt:    baseTime,
		LastEventAt:  baseTime,
		LastSpeaker:  "user-x",
		Participants: []string{"user-x"},
		Score:        7,
		BurstCount:   1,
	}

	if err := tracker.HandleMessage(context.Background(), eventAt(time.Second, "user-y")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(repo.history) != 0 {
		t.Fatal("corrupt state must not produce history")
	}
	if len(repo.guilds) != 0 {
		t.Fatalf("corrupt state must not credit any ledger, got %d rows", len(repo.guilds))
	}
	state := repo.conversations["channel-1"]
	if state.Score != 1 || state.LastSpeaker != "user-y" {
		t.Fatalf("expected fresh conversation after purge, got %+v", state)
	}
}

func TestHandleMessage_PropagatesStorageFailure(t *testing.T) {
	repo := newMockRepository()
	repo.getConversationErr = errors.New("connection lost")
	tracker := newTestTracker(repo, nil)

	if err := tracker.HandleMessage(context.Background(), eventAt(0, "user-x")); err == nil {
		t.Fatal("expected storage failure to propagate")
	}
}

func TestHandleMessage_NotifierFailureDoesNotAffectBookkeeping(t *testing.T) {
	repo := newMockRepository()
	notifier := &mockNotifier{err: errors.New("webhook down")}
	tracker := newTestTracker(repo, notifier)

	ctx := context.Background()
	if err := tracker.HandleMessage(ctx, eventAt(0, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := tracker.HandleMessage(ctx, eventAt(40*time.Second, "user-y")); err != nil {
		t.Fatalf("expected no error despite notifier failure, got %v", err)
	}
	if len(repo.history) != 1 {
		t.Fatalf("expected one history row, got %d", len(repo.history))
	}
}

func TestForceClose_NoOpenConversationIsNoOp(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	if err := tracker.ForceClose(context.Background(), "channel-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(repo.history) != 0 || len(repo.guilds) != 0 {
		t.Fatal("forced close of a missing conversation must be a no-op")
	}
}

func TestForceCloseAll_ClosesEverythingWithLastEventTime(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	ctx := context.Background()
	if err := tracker.HandleMessage(ctx, eventAt(0, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second := eventAt(2*time.Second, "user-y")
	second.ChannelID = "channel-2"
	if err := tracker.HandleMessage(ctx, second); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	repo.conversations["channel-3"] = repository.ConversationState{
		ChannelID:   "channel-3",
		GuildID:     "",
		StartedAt:   baseTime,
		LastEventAt: baseTime,
	}

	if err := tracker.ForceCloseAll(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(repo.conversations) != 0 {
		t.Fatalf("expected all conversations closed, got %d", len(repo.conversations))
	}
	if len(repo.history) != 2 {
		t.Fatalf("expected two history rows, got %d", len(repo.history))
	}
	for _, h := range repo.history {
		if !h.EndedAt.Equal(h.StartedAt) {
			t.Fatalf("forced close must use the last event time as end, got %+v", h)
		}
	}
}

func TestForceCloseAll_ContinuesPastPerChannelFailures(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	ctx := context.Background()
	if err := tracker.HandleMessage(ctx, eventAt(0, "user-x")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second := eventAt(time.Second, "user-y")
	second.ChannelID = "channel-2"
	if err := tracker.HandleMessage(ctx, second); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	repo.insertHistoryErr = errors.New("disk full")
	err := tracker.ForceCloseAll(ctx)
	if err == nil {
		t.Fatal("expected joined error from failing closes")
	}
	// Both channels were attempted despite the first failure.
	if got := len(repo.conversations); got != 2 {
		t.Fatalf("expected both conversations kept on failure, got %d remaining", got)
	}
}

func TestReconciliationInvariant(t *testing.T) {
	repo := newMockRepository()
	tracker := newTestTracker(repo, nil)

	ctx := context.Background()
	offsets := []struct {
		offset  time.Duration
		speaker string
	}{
		{0, "user-x"},
		{3 * time.Second, "user-y"},
		{40 * time.Second, "user-x"}, // closes, reopens
		{42 * time.Second, "user-y"},
		{100 * time.Second, "user-z"}, // closes, reopens
	}
	for _, step := range offsets {
		if err := tracker.HandleMessage(ctx, eventAt(step.offset, step.speaker)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	var historySum float64
	for _, h := range repo.history {
		historySum += h.Score
	}
	var liveSum float64
	for _, s := range repo.conversations {
		liveSum += s.Score
	}
	guild := repo.guilds["guild-1"]
	if guild == nil {
		t.Fatal("expected a ledger row")
	}
	if !almostEqual(guild.TotalScore, historySum) {
		t.Fatalf("ledger total %v does not match history sum %v", guild.TotalScore, historySum)
	}
	totalWithLive := guild.TotalScore + liveSum
	if !almostEqual(totalWithLive, historySum+liveSum) {
		t.Fatalf("total with live %v does not reconcile", totalWithLive)
	}
	if guild.ConversationsCount != len(repo.history) {
		t.Fatalf("ledger count %d does not match history rows %d", guild.ConversationsCount, len(repo.history))
	}
}
