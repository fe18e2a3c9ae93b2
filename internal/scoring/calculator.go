package scoring

import (
	"time"

	"github.com/foxseedlab/kaiwarank/internal/repository"
)

// Scoring policy. A reply within fastReplyThreshold earns the full
// reward; up to slowReplyThreshold it earns a quarter; beyond that the
// conversation is considered over. Consecutive messages from the same
// speaker earn a diminishing burstBaseReward/burstCount instead of the
// full reward, so sustained multi-party exchange outranks monologue.
const (
	fastReplyThreshold = 5 * time.Second
	slowReplyThreshold = 30 * time.Second

	slowReplyFactor = 0.25
	burstBaseReward = 0.2
)

// Event is one message observation as delivered by the chat gateway.
type Event struct {
	GuildID     string
	ChannelID   string
	SpeakerID   string
	Timestamp   time.Time
	IsAutomated bool
}

type Verdict int

const (
	// VerdictContinue means the event extends the open conversation.
	VerdictContinue Verdict = iota
	// VerdictExpired means the open conversation went stale before this
	// event; it must be closed and the event starts a fresh one.
	VerdictExpired
)

// Evaluate decides whether an event continues the open conversation.
func Evaluate(prev *repository.ConversationState, ev Event) Verdict {
	if prev == nil {
		return VerdictExpired
	}
	if ev.Timestamp.Sub(prev.LastEventAt) > slowReplyThreshold {
		return VerdictExpired
	}
	return VerdictContinue
}

// Start builds the state of a brand-new conversation opened by ev.
func Start(ev Event) repository.ConversationState {
	return repository.ConversationState{
		ChannelID:    ev.ChannelID,
		GuildID:      ev.GuildID,
		StartedAt:    ev.Timestamp,
		LastEventAt:  ev.Timestamp,
		LastSpeaker:  ev.SpeakerID,
		Participants: []string{ev.SpeakerID},
		Score:        1,
		BurstCount:   1,
	}
}

// Continue applies one continuation event to an open conversation and
// returns the updated state. The caller must have checked Evaluate first.
func Continue(prev repository.ConversationState, ev Event) repository.ConversationState {
	next := prev
	next.Participants = append([]string(nil), prev.Participants...)

	timeFactor := 1.0
	if ev.Timestamp.Sub(prev.LastEventAt) > fastReplyThreshold {
		timeFactor = slowReplyFactor
	}

	if ev.SpeakerID == prev.LastSpeaker {
		next.BurstCount = prev.BurstCount + 1
		next.Score += burstBaseReward / float64(next.BurstCount) * timeFactor
	} else {
		next.BurstCount = 1
		next.Score += 1 * timeFactor
		if !containsParticipant(next.Participants, ev.SpeakerID) {
			next.Participants = append(next.Participants, ev.SpeakerID)
		}
	}

	next.LastEventAt = ev.Timestamp
	next.LastSpeaker = ev.SpeakerID
	return next
}

func containsParticipant(participants []string, speakerID string) bool {
	for _, p := range participants {
		if p == speakerID {
			return true
		}
	}
	return false
}
