package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"staychat/internal/models"
)

type Type string

const (
	TypeMessage  Type = "message"
	TypeTyping   Type = "typing"
	TypePresence Type = "presence"
	TypeRead     Type = "read"
)

var ErrMalformed = errors.New("malformed envelope")

// Envelope is the unit of socket traffic. All variants share the
// required type tag; the remaining fields depend on the variant:
//
//	message:  content, senderId, receiverId, threadId (optional)
//	typing:   threadId, isTyping
//	presence: userId + status inbound, senderId + content on connect
//	read:     threadId
type Envelope struct {
	Type       Type                `json:"type"`
	ID         string              `json:"id,omitempty"`
	Content    string              `json:"content,omitempty"`
	SenderID   string              `json:"senderId,omitempty"`
	ReceiverID string              `json:"receiverId,omitempty"`
	ThreadID   string              `json:"threadId,omitempty"`
	UserID     string              `json:"userId,omitempty"`
	Status     models.AgentStatus  `json:"status,omitempty"`
	IsTyping   bool                `json:"isTyping,omitempty"`
	MsgType    string              `json:"msgType,omitempty"`
	Meta       *models.MessageMeta `json:"metadata,omitempty"`
}

// Decode parses a wire payload into an Envelope. Decoding is permissive
// by contract: envelopes with an unknown type decode fine and are ignored
// at dispatch, while payloads that are not well-formed objects, carry a
// non-string type tag, or miss required variant fields return ErrMalformed.
// Callers log and drop malformed payloads; nothing here panics.
func Decode(data []byte) (Envelope, error) {
	var probe struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := probe.Type.(string); !ok {
		return Envelope{}, fmt.Errorf("%w: type tag missing or not a string", ErrMalformed)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) validate() error {
	switch e.Type {
	case TypeMessage:
		if e.Content == "" || e.SenderID == "" || e.ReceiverID == "" {
			return fmt.Errorf("%w: message envelope missing required fields", ErrMalformed)
		}
	case TypeTyping:
		if e.ThreadID == "" {
			return fmt.Errorf("%w: typing envelope missing threadId", ErrMalformed)
		}
	case TypePresence:
		if e.UserID == "" && e.SenderID == "" {
			return fmt.Errorf("%w: presence envelope missing identity", ErrMalformed)
		}
	case TypeRead:
		if e.ThreadID == "" {
			return fmt.Errorf("%w: read envelope missing threadId", ErrMalformed)
		}
	}
	// Unknown types pass through for forward compatibility.
	return nil
}

// NewMessage builds a message envelope. An empty threadID falls back to
// the receiver id, matching the message grouping rule in models.
func NewMessage(msg models.Message) Envelope {
	return Envelope{
		Type:       TypeMessage,
		ID:         msg.ID,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		ThreadID:   msg.Thread(),
		MsgType:    msg.Type,
		Meta:       msg.Meta,
	}
}

// NewPresenceOnline is the liveness announcement emitted right after a
// successful handshake. It uses the connect-out shape (senderId + content).
func NewPresenceOnline(senderID string) Envelope {
	return Envelope{
		Type:     TypePresence,
		SenderID: senderID,
		Content:  string(models.AgentStatusOnline),
	}
}

func NewTyping(senderID, threadID string, isTyping bool) Envelope {
	return Envelope{
		Type:     TypeTyping,
		SenderID: senderID,
		ThreadID: threadID,
		IsTyping: isTyping,
	}
}

func NewRead(senderID, threadID string) Envelope {
	return Envelope{
		Type:     TypeRead,
		SenderID: senderID,
		ThreadID: threadID,
	}
}

// Message converts a message envelope back into the model type.
func (e Envelope) Message() models.Message {
	return models.Message{
		ID:         e.ID,
		Content:    e.Content,
		SenderID:   e.SenderID,
		ReceiverID: e.ReceiverID,
		ThreadID:   e.ThreadID,
		Type:       e.MsgType,
		Meta:       e.Meta,
	}
}
