package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusAway    AgentStatus = "away"
)

// SupportAgent represents a routable chat counterparty on the support side.
// Status is the only mutable field and is updated from presence envelopes.
type SupportAgent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatarUrl,omitempty"`
	Status    AgentStatus `json:"status"`
	Title     string      `json:"title,omitempty"`
	AgencyID  string      `json:"agencyId,omitempty"`
}

// MessageMeta carries optional display information attached to a message.
type MessageMeta struct {
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsStaff     bool   `json:"isStaff,omitempty"`
}

// Message represents a single unit of support-chat communication.
// ID, SenderID, ReceiverID and Timestamp never change after creation;
// only IsRead mutates in place.
type Message struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	SenderID   string       `json:"senderId"`
	ReceiverID string       `json:"receiverId"`
	ThreadID   string       `json:"threadId,omitempty"`
	Type       string       `json:"type,omitempty"`
	IsRead     bool         `json:"isRead"`
	Timestamp  int64        `json:"timestamp"` // Unix timestamp (seconds)
	Meta       *MessageMeta `json:"metadata,omitempty"`
}

// Thread returns the grouping key of the message. Messages without an
// explicit thread fall back to the counterparty id.
func (m Message) Thread() string {
	if m.ThreadID != "" {
		return m.ThreadID
	}
	return m.ReceiverID
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
