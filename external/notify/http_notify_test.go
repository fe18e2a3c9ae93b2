package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	internalnotify "github.com/foxseedlab/kaiwarank/internal/notify"
)

func testPayload() internalnotify.ConversationClosePayload {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return internalnotify.ConversationClosePayload{
		GuildID:           "guild-1",
		ChannelID:         "channel-1",
		Score:             4.5,
		ParticipantsCount: 3,
		StartedAt:         started,
		EndedAt:           started.Add(2 * time.Minute),
		Reason:            "expired",
	}
}

func TestSendConversationClose_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendConversationClose(context.Background(), testPayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendConversationClose_Success(t *testing.T) {
	var got internalnotify.ConversationClosePayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendConversationClose(context.Background(), testPayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.GuildID != "guild-1" || got.ChannelID != "channel-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Score != 4.5 || got.ParticipantsCount != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Reason != "expired" {
		t.Fatalf("unexpected reason: %s", got.Reason)
	}
}

func TestSendConversationClose_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendConversationClose(context.Background(), testPayload()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
