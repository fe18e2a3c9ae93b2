package discord

import (
	"context"
	"time"
)

// MessageEvent is one posted channel message, reduced to what the scoring
// engine needs. GuildID is empty for direct messages.
type MessageEvent struct {
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorIsBot bool
	Timestamp   time.Time
}

// GuildEvent fires when the bot joins a guild or a guild becomes
// available after connect.
type GuildEvent struct {
	GuildID   string
	GuildName string
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	AdminOnly   bool
	// ChannelOption, when set, adds one required text-channel option.
	ChannelOption *ChannelOptionDefinition
}

type ChannelOptionDefinition struct {
	Name        string
	Description string
}

type EmbedField struct {
	Name  string
	Value string
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Fields      []EmbedField
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	UserIsAdmin      bool
	ChannelOptionID  string
	RespondEphemeral func(content string) error
	RespondEmbed     func(embed Embed) error
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	GetBotUserID() (string, error)
	RegisterMessageCreateHandler(handler func(MessageEvent))
	RegisterGuildCreateHandler(handler func(GuildEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGlobalSlashCommands(defs []SlashCommandDefinition) error
	CreateChannelInvite(channelID, reason string) (string, error)
	SendChannelMessage(channelID, content string) error
	ResolveGuildName(guildID string) string
	ResolveChannelName(channelID string) string
	Run() error
}
