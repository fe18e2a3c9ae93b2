package bot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/discord"
	"github.com/foxseedlab/kaiwarank/internal/ranking"
	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/foxseedlab/kaiwarank/internal/scoring"
	"github.com/google/uuid"
)

const registrationTTL = 24 * time.Hour

// Manager connects gateway events to the scoring engine and implements
// the slash command surface.
type Manager struct {
	cfg      *config.Config
	repo     repository.Repository
	discord  discord.Client
	tracker  *scoring.Tracker
	rankings *ranking.Service
}

func NewManager(cfg *config.Config, repo repository.Repository, dc discord.Client, tracker *scoring.Tracker, rankings *ranking.Service) *Manager {
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		discord:  dc,
		tracker:  tracker,
		rankings: rankings,
	}
}

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{
			Name:        slashCommandRankingName,
			Description: slashCommandRankingDescription,
		},
		{
			Name:        slashCommandRegisterName,
			Description: slashCommandRegisterDescription,
			AdminOnly:   true,
			ChannelOption: &discord.ChannelOptionDefinition{
				Name:        registerChannelOptionName,
				Description: registerChannelOptionDescription,
			},
		},
	}
}

func (m *Manager) SetBotUserID(userID string) {
	m.tracker.SetBotUserID(userID)
}

func (m *Manager) HandleMessageCreate(event discord.MessageEvent) {
	err := m.tracker.HandleMessage(context.Background(), scoring.Event{
		GuildID:     event.GuildID,
		ChannelID:   event.ChannelID,
		SpeakerID:   event.AuthorID,
		Timestamp:   event.Timestamp,
		IsAutomated: event.AuthorIsBot,
	})
	if err != nil {
		slog.Error("failed to process message event", "error", err, "guild_id", event.GuildID, "channel_id", event.ChannelID)
	}
}

func (m *Manager) HandleGuildCreate(event discord.GuildEvent) {
	if err := m.repo.UpsertGuildName(context.Background(), event.GuildID, event.GuildName, time.Now()); err != nil {
		slog.Error("failed to upsert guild", "error", err, "guild_id", event.GuildID)
		return
	}
	slog.Info("guild registered", "guild_id", event.GuildID, "guild_name", event.GuildName)
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	switch event.CommandName {
	case slashCommandRankingName:
		m.handleRankingCommand(event)
	case slashCommandRegisterName:
		m.handleRegisterCommand(event)
	default:
		if err := event.RespondEphemeral(messageEphemeralUnknownCommand); err != nil {
			slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName)
		}
	}
}

func (m *Manager) handleRankingCommand(event discord.SlashCommandEvent) {
	if event.GuildID == "" {
		m.respondEphemeral(event, messageEphemeralGuildOnly)
		return
	}

	ranked, err := m.rankings.Ranking(context.Background())
	if err != nil {
		slog.Error("failed to compute ranking", "error", err, "guild_id", event.GuildID)
		m.respondEphemeral(event, messageEphemeralRankingFailed)
		return
	}

	myIndex := -1
	for i, row := range ranked {
		if row.GuildID == event.GuildID {
			myIndex = i
			break
		}
	}
	if myIndex == -1 {
		m.respondEphemeral(event, messageEphemeralNotRanked)
		return
	}

	embed := discord.Embed{
		Title:       rankingEmbedTitle,
		Description: rankingEmbedDescription(ranked, myIndex),
		Color:       rankColor(myIndex + 1),
		Footer:      rankingEmbedFooter,
	}
	if err := event.RespondEmbed(embed); err != nil {
		slog.Error("failed to respond with ranking embed", "error", err, "guild_id", event.GuildID)
	}
}

// rankingEmbedDescription renders this guild's rank with its direct
// neighbors plus a per-guild stats block, as the dashboard does.
func rankingEmbedDescription(ranked []ranking.GuildRanking, myIndex int) string {
	my := ranked[myIndex]
	myRank := myIndex + 1

	var lines []string
	if myIndex > 0 {
		upper := ranked[myIndex-1]
		lines = append(lines, fmt.Sprintf("⬆ **%d位** : %s - %.2f%s", myRank-1, upper.GuildName, upper.Score, liveMarker(upper.LiveScore)))
	}
	lines = append(lines, fmt.Sprintf("🏆 **%d位（このサーバー）** : %.2f%s", myRank, my.Score, liveMarker(my.LiveScore)))
	if myIndex+1 < len(ranked) {
		lower := ranked[myIndex+1]
		lines = append(lines, fmt.Sprintf("⬇ **%d位** : %s - %.2f%s", myRank+1, lower.GuildName, lower.Score, liveMarker(lower.LiveScore)))
	}

	stats := []string{
		"",
		"📈 **このサーバーの統計**",
		fmt.Sprintf("確定スコア: %.2f", my.TotalScore),
		fmt.Sprintf("進行中スコア: %.2f 🔥", my.LiveScore),
		fmt.Sprintf("完了した会話数: %d回", my.ConversationsCount),
		fmt.Sprintf("進行中の会話: %d個", my.ActiveConversations),
		"",
		fmt.Sprintf("参加サーバー総数: %dサーバー", len(ranked)),
	}
	return strings.Join(lines, "\n") + "\n" + strings.Join(stats, "\n")
}

func (m *Manager) handleRegisterCommand(event discord.SlashCommandEvent) {
	if event.GuildID == "" {
		m.respondEphemeral(event, messageEphemeralGuildOnly)
		return
	}
	if !event.UserIsAdmin {
		m.respondEphemeral(event, messageEphemeralAdminOnly)
		return
	}

	channelID := event.ChannelOptionID
	if channelID == "" {
		channelID = event.ChannelID
	}

	inviteURL, err := m.discord.CreateChannelInvite(channelID, "Webサイト登録用の招待リンク")
	if err != nil {
		slog.Error("failed to create channel invite", "error", err, "guild_id", event.GuildID, "channel_id", channelID)
		m.respondEphemeral(event, messageEphemeralRegisterFailed)
		return
	}

	token, err := newRegistrationToken()
	if err != nil {
		slog.Error("failed to generate registration token", "error", err)
		m.respondEphemeral(event, messageEphemeralRegisterFailed)
		return
	}

	now := time.Now()
	reg := repository.Registration{
		ID:          uuid.NewString(),
		GuildID:     event.GuildID,
		GuildName:   m.discord.ResolveGuildName(event.GuildID),
		InviteURL:   inviteURL,
		ChannelID:   channelID,
		ChannelName: m.discord.ResolveChannelName(channelID),
		Token:       token,
		CreatedBy:   event.UserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(registrationTTL),
		Status:      repository.RegistrationStatusPending,
	}
	if err := m.repo.SaveRegistration(context.Background(), reg); err != nil {
		slog.Error("failed to save registration", "error", err, "guild_id", event.GuildID)
		m.respondEphemeral(event, messageEphemeralRegisterFailed)
		return
	}

	m.respondEphemeral(event, registerEphemeralMessage(m.cfg.WebBaseURL, token))

	// Channel notice is best effort; missing permissions must not fail
	// the registration.
	if err := m.discord.SendChannelMessage(channelID, registerChannelNotice); err != nil {
		slog.Warn("failed to send registration notice", "error", err, "channel_id", channelID)
	}
}

func (m *Manager) respondEphemeral(event discord.SlashCommandEvent, content string) {
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName)
	}
}

// newRegistrationToken returns a 6-character uppercase hex token.
func newRegistrationToken() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
