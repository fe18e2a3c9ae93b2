package notify

import (
	"context"
	"time"
)

// ConversationClosePayload is posted to the optional close-notification
// webhook every time a conversation is finalized.
type ConversationClosePayload struct {
	GuildID           string    `json:"guildId"`
	ChannelID         string    `json:"channelId"`
	Score             float64   `json:"score"`
	ParticipantsCount int       `json:"participantsCount"`
	StartedAt         time.Time `json:"startedAt"`
	EndedAt           time.Time `json:"endedAt"`
	Reason            string    `json:"reason"`
}

type Sender interface {
	SendConversationClose(ctx context.Context, payload ConversationClosePayload) error
}
