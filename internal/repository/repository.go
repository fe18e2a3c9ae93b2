package repository

import (
	"context"
	"time"
)

type AddGuildScoreInput struct {
	GuildID   string
	Score     float64
	UpdatedAt time.Time
}

type InsertHistoryInput struct {
	GuildID           string
	ChannelID         string
	Score             float64
	ParticipantsCount int
	StartedAt         time.Time
	EndedAt           time.Time
}

type GuildRepository interface {
	// GetGuild returns nil without error when the guild has no ledger row.
	GetGuild(ctx context.Context, guildID string) (*GuildRecord, error)
	// UpsertGuildName creates the ledger row on first contact and refreshes
	// the display name afterwards; scores and counts are left untouched.
	UpsertGuildName(ctx context.Context, guildID, guildName string, updatedAt time.Time) error
	// AddGuildScore atomically folds one closed conversation into the
	// ledger: total_score += Score, conversations_count += 1.
	AddGuildScore(ctx context.Context, input AddGuildScoreInput) error
	ListGuilds(ctx context.Context) ([]GuildRecord, error)
}

type ConversationRepository interface {
	// GetConversation returns nil without error when the channel has no
	// open conversation.
	GetConversation(ctx context.Context, channelID string) (*ConversationState, error)
	UpsertConversation(ctx context.Context, state ConversationState) error
	DeleteConversation(ctx context.Context, channelID string) error
	ListConversations(ctx context.Context) ([]ConversationState, error)
	ListGuildConversations(ctx context.Context, guildID string) ([]ConversationState, error)
	// DeleteBrokenConversations purges rows whose guild_id is NULL or
	// empty and reports how many were removed.
	DeleteBrokenConversations(ctx context.Context) (int64, error)
}

type HistoryRepository interface {
	InsertHistory(ctx context.Context, input InsertHistoryInput) error
}

type RegistrationRepository interface {
	SaveRegistration(ctx context.Context, reg Registration) error
	// GetRegistrationByToken returns nil without error when the token is
	// unknown.
	GetRegistrationByToken(ctx context.Context, token string) (*Registration, error)
	CompleteRegistration(ctx context.Context, id string) error
}

type MaintenanceRepository interface {
	ClearAllData(ctx context.Context) error
}

type Repository interface {
	GuildRepository
	ConversationRepository
	HistoryRepository
	RegistrationRepository
	MaintenanceRepository
}
