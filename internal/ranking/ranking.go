package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/repository"
)

const unknownGuildName = "Unknown Server"

// GuildRanking is one ranked row: the finalized ledger total blended with
// the scores of conversations still in flight.
type GuildRanking struct {
	GuildID             string    `json:"guildId"`
	GuildName           string    `json:"guildName"`
	TotalScore          float64   `json:"totalScore"`
	LiveScore           float64   `json:"liveScore"`
	Score               float64   `json:"score"`
	ConversationsCount  int       `json:"conversationsCount"`
	ActiveConversations int       `json:"activeConversations"`
	LastUpdated         time.Time `json:"lastUpdated"`
}

type GuildStats struct {
	TotalScore          float64 `json:"totalScore"`
	LiveScore           float64 `json:"liveScore"`
	TotalWithLive       float64 `json:"totalWithLive"`
	ConversationsCount  int     `json:"conversationsCount"`
	ActiveConversations int     `json:"activeConversations"`
}

type GlobalStats struct {
	TotalGuilds         int       `json:"totalGuilds"`
	TotalScore          float64   `json:"totalScore"`
	TotalConversations  int       `json:"totalConversations"`
	ActiveConversations int       `json:"activeConversations"`
	Timestamp           time.Time `json:"timestamp"`
}

// Service computes read-only projections over the guild ledger and the
// open conversation table. It never mutates state.
type Service struct {
	guilds        repository.GuildRepository
	conversations repository.ConversationRepository
}

func NewService(guilds repository.GuildRepository, conversations repository.ConversationRepository) *Service {
	return &Service{guilds: guilds, conversations: conversations}
}

// Ranking returns every guild present in the ledger ordered by combined
// score descending; equal scores break ties by guild id so the order is
// total. Guilds with no ledger row are not yet participating and are
// excluded.
func (s *Service) Ranking(ctx context.Context) ([]GuildRanking, error) {
	guilds, err := s.guilds.ListGuilds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	conversations, err := s.conversations.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open conversations: %w", err)
	}

	liveScore := make(map[string]float64)
	liveCount := make(map[string]int)
	for _, c := range conversations {
		liveScore[c.GuildID] += c.Score
		liveCount[c.GuildID]++
	}

	ranked := make([]GuildRanking, 0, len(guilds))
	for _, g := range guilds {
		name := g.GuildName
		if name == "" {
			name = unknownGuildName
		}
		ranked = append(ranked, GuildRanking{
			GuildID:             g.GuildID,
			GuildName:           name,
			TotalScore:          g.TotalScore,
			LiveScore:           liveScore[g.GuildID],
			Score:               g.TotalScore + liveScore[g.GuildID],
			ConversationsCount:  g.ConversationsCount,
			ActiveConversations: liveCount[g.GuildID],
			LastUpdated:         g.LastUpdated,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].GuildID < ranked[j].GuildID
	})
	return ranked, nil
}

// GuildStats returns the statistics snapshot of one guild. A guild with
// no ledger row yields zeroed stats, not an error.
func (s *Service) GuildStats(ctx context.Context, guildID string) (GuildStats, error) {
	guild, err := s.guilds.GetGuild(ctx, guildID)
	if err != nil {
		return GuildStats{}, fmt.Errorf("failed to get guild: %w", err)
	}
	conversations, err := s.conversations.ListGuildConversations(ctx, guildID)
	if err != nil {
		return GuildStats{}, fmt.Errorf("failed to list guild conversations: %w", err)
	}

	var stats GuildStats
	for _, c := range conversations {
		stats.LiveScore += c.Score
		stats.ActiveConversations++
	}
	if guild != nil {
		stats.TotalScore = guild.TotalScore
		stats.ConversationsCount = guild.ConversationsCount
	}
	stats.TotalWithLive = stats.TotalScore + stats.LiveScore
	return stats, nil
}

// GlobalStats aggregates the whole system for the dashboard header.
func (s *Service) GlobalStats(ctx context.Context) (GlobalStats, error) {
	guilds, err := s.guilds.ListGuilds(ctx)
	if err != nil {
		return GlobalStats{}, fmt.Errorf("failed to list guilds: %w", err)
	}
	conversations, err := s.conversations.ListConversations(ctx)
	if err != nil {
		return GlobalStats{}, fmt.Errorf("failed to list open conversations: %w", err)
	}

	stats := GlobalStats{
		TotalGuilds:         len(guilds),
		ActiveConversations: len(conversations),
		Timestamp:           time.Now(),
	}
	for _, g := range guilds {
		stats.TotalScore += g.TotalScore
		stats.TotalConversations += g.ConversationsCount
	}
	return stats, nil
}
