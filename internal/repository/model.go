package repository

import "time"

type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusCompleted RegistrationStatus = "completed"
)

// GuildRecord is the cumulative ledger row for one guild. TotalScore and
// ConversationsCount only ever grow from closed conversations; live scores
// are never folded in here.
type GuildRecord struct {
	GuildID            string
	GuildName          string
	TotalScore         float64
	ConversationsCount int
	LastUpdated        time.Time
}

// ConversationState is the single open conversation of one channel. A row
// exists exactly while the conversation is open; GuildID must never be
// empty while the row exists.
type ConversationState struct {
	ChannelID    string
	GuildID      string
	StartedAt    time.Time
	LastEventAt  time.Time
	LastSpeaker  string
	Participants []string
	Score        float64
	BurstCount   int
}

// HistoryRecord is the immutable audit row written once per closed
// conversation.
type HistoryRecord struct {
	ID                int64
	GuildID           string
	ChannelID         string
	Score             float64
	ParticipantsCount int
	StartedAt         time.Time
	EndedAt           time.Time
	Duration          time.Duration
}

type Registration struct {
	ID          string
	GuildID     string
	GuildName   string
	InviteURL   string
	ChannelID   string
	ChannelName string
	Token       string
	CreatedBy   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Status      RegistrationStatus
}
