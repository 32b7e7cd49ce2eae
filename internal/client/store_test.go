package client

import (
	"testing"

	"staychat/internal/models"
)

func TestStoreHydrate(t *testing.T) {
	s := NewStore("guest-1")
	s.Hydrate(
		[]models.Message{
			{ID: "m1", SenderID: "agent-1", ReceiverID: "guest-1", Content: "hello"},
			{ID: "m2", SenderID: "guest-1", ReceiverID: "agent-1", Content: "hi", IsRead: true},
		},
		[]models.SupportAgent{
			{ID: "agent-1", Name: "Anna", Status: models.AgentStatusOffline},
		},
	)

	if got := len(s.Messages()); got != 2 {
		t.Errorf("expected 2 messages, got %d", got)
	}
	if got := len(s.Agents()); got != 1 {
		t.Errorf("expected 1 agent, got %d", got)
	}
	if got := s.Unread(); got != 1 {
		t.Errorf("expected 1 unread, got %d", got)
	}

	// A second hydrate replaces, not appends.
	s.Hydrate(nil, nil)
	if got := len(s.Messages()); got != 0 {
		t.Errorf("expected empty store after rehydrate, got %d messages", got)
	}
	if got := s.Unread(); got != 0 {
		t.Errorf("expected 0 unread after rehydrate, got %d", got)
	}
}

func TestStoreDeduplicatesByID(t *testing.T) {
	s := NewStore("guest-1")

	msg := models.Message{ID: "m1", SenderID: "agent-1", ReceiverID: "guest-1", Content: "hello"}
	if !s.ApplyIncomingMessage(msg) {
		t.Error("first apply should report the message as new")
	}
	if s.ApplyIncomingMessage(msg) {
		t.Error("second apply of the same id should be dropped")
	}

	if got := len(s.Messages()); got != 1 {
		t.Errorf("expected 1 message after duplicate apply, got %d", got)
	}
	if got := s.Unread(); got != 1 {
		t.Errorf("expected 1 unread after duplicate apply, got %d", got)
	}
}

func TestStoreUnreadCounter(t *testing.T) {
	s := NewStore("guest-1")

	// Own outgoing messages never count as unread.
	s.ApplyIncomingMessage(models.Message{ID: "m1", SenderID: "guest-1", ReceiverID: "agent-1", Content: "hi"})
	if got := s.Unread(); got != 0 {
		t.Errorf("own message counted as unread: %d", got)
	}

	s.ApplyIncomingMessage(models.Message{ID: "m2", SenderID: "agent-1", ReceiverID: "guest-1", Content: "hello"})
	s.ApplyIncomingMessage(models.Message{ID: "m3", SenderID: "agent-1", ReceiverID: "guest-1", Content: "again"})
	if got := s.Unread(); got != 2 {
		t.Errorf("expected 2 unread, got %d", got)
	}

	if changed := s.MarkAllRead(); changed != 3 {
		t.Errorf("expected 3 messages changed, got %d", changed)
	}
	if got := s.Unread(); got != 0 {
		t.Errorf("expected 0 unread after mark all read, got %d", got)
	}
	if changed := s.MarkAllRead(); changed != 0 {
		t.Errorf("expected no changes on repeated mark all read, got %d", changed)
	}
}

func TestStorePresenceUnknownAgentIgnored(t *testing.T) {
	s := NewStore("guest-1")
	s.Hydrate(nil, []models.SupportAgent{
		{ID: "agent-1", Name: "Anna", Status: models.AgentStatusOffline},
	})

	s.ApplyPresence("agent-1", models.AgentStatusOnline)
	s.ApplyPresence("stranger", models.AgentStatusOnline)

	agents := s.Agents()
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}
	if agents[0].Status != models.AgentStatusOnline {
		t.Errorf("expected agent-1 online, got %s", agents[0].Status)
	}
}

func TestStoreReadReceiptMarksOwnMessagesInThread(t *testing.T) {
	s := NewStore("guest-1")
	s.Hydrate([]models.Message{
		{ID: "m1", SenderID: "guest-1", ReceiverID: "agent-1", ThreadID: "t1"},
		{ID: "m2", SenderID: "guest-1", ReceiverID: "agent-1", ThreadID: "t2"},
		{ID: "m3", SenderID: "agent-1", ReceiverID: "guest-1", ThreadID: "t1"},
	}, nil)

	s.ApplyReadReceipt("t1")

	msgs := s.Messages()
	if !msgs[0].IsRead {
		t.Error("own message in thread t1 should be read")
	}
	if msgs[1].IsRead {
		t.Error("own message in thread t2 should stay unread")
	}
	if msgs[2].IsRead {
		t.Error("counterparty message should not be touched by a receipt")
	}
}

func TestStoreReadReceiptThreadFallback(t *testing.T) {
	s := NewStore("guest-1")
	// No explicit thread: the grouping key falls back to the receiver.
	s.Hydrate([]models.Message{
		{ID: "m1", SenderID: "guest-1", ReceiverID: "agent-1"},
	}, nil)

	s.ApplyReadReceipt("agent-1")
	if !s.Messages()[0].IsRead {
		t.Error("receipt for the fallback thread should mark the message read")
	}
}
