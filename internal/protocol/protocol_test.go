package protocol

import (
	"testing"

	"staychat/internal/models"
)

func TestDecode_Message(t *testing.T) {
	data := []byte(`{"type":"message","id":"m1","content":"hi","senderId":"u1","receiverId":"agent-1"}`)
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Type != TypeMessage {
		t.Errorf("expected type message, got %s", env.Type)
	}
	msg := env.Message()
	if msg.Content != "hi" || msg.SenderID != "u1" || msg.ReceiverID != "agent-1" {
		t.Errorf("unexpected message fields: %+v", msg)
	}
	// threadId absent: grouping key falls back to receiver
	if msg.Thread() != "agent-1" {
		t.Errorf("expected thread agent-1, got %s", msg.Thread())
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"not an object", `[1,2,3]`},
		{"missing type", `{"content":"hi"}`},
		{"numeric type", `{"type":42}`},
		{"null type", `{"type":null}`},
		{"message without content", `{"type":"message","senderId":"u1","receiverId":"a1"}`},
		{"message without sender", `{"type":"message","content":"hi","receiverId":"a1"}`},
		{"mistyped content", `{"type":"message","content":7,"senderId":"u1","receiverId":"a1"}`},
		{"typing without thread", `{"type":"typing","isTyping":true}`},
		{"read without thread", `{"type":"read"}`},
		{"presence without identity", `{"type":"presence","status":"away"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.data)); err == nil {
				t.Errorf("expected decode error for %s", tc.data)
			}
		})
	}
}

func TestDecode_UnknownTypePasses(t *testing.T) {
	// Forward compatibility: unknown variants decode cleanly and are
	// ignored at dispatch, not rejected.
	env, err := Decode([]byte(`{"type":"reaction","content":"+1"}`))
	if err != nil {
		t.Fatalf("unknown type should decode, got error: %v", err)
	}
	if env.Type != "reaction" {
		t.Errorf("expected type reaction, got %s", env.Type)
	}
}

func TestDecode_Presence(t *testing.T) {
	env, err := Decode([]byte(`{"type":"presence","userId":"agent-1","status":"away"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.UserID != "agent-1" || env.Status != models.AgentStatusAway {
		t.Errorf("unexpected presence fields: %+v", env)
	}
}

func TestNewPresenceOnline(t *testing.T) {
	env := NewPresenceOnline("u1")
	if env.Type != TypePresence {
		t.Errorf("expected presence type, got %s", env.Type)
	}
	if env.SenderID != "u1" || env.Content != "online" {
		t.Errorf("unexpected connect-out presence shape: %+v", env)
	}
}

func TestNewMessage_ThreadDefault(t *testing.T) {
	env := NewMessage(models.Message{
		ID:         "m1",
		Content:    "hello",
		SenderID:   "u1",
		ReceiverID: "agent-1",
	})
	if env.ThreadID != "agent-1" {
		t.Errorf("expected threadId defaulted to receiver, got %q", env.ThreadID)
	}
}
