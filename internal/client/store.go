package client

import (
	"sync"

	"staychat/internal/models"
)

// Store holds the session's conversation state: the message list, the
// agent roster and the derived unread counter. It is written to from
// the socket read loop and from API calls on the facade, so every
// method takes the lock.
type Store struct {
	mu       sync.RWMutex
	userID   string
	messages []models.Message
	byID     map[string]int
	agents   []models.SupportAgent
	agentIdx map[string]int
	unread   int
}

func NewStore(userID string) *Store {
	return &Store{
		userID:   userID,
		byID:     make(map[string]int),
		agentIdx: make(map[string]int),
	}
}

// Hydrate replaces the message list and roster wholesale with the
// durable snapshot fetched at session start.
func (s *Store) Hydrate(messages []models.Message, agents []models.SupportAgent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]models.Message, len(messages))
	copy(s.messages, messages)
	s.byID = make(map[string]int, len(messages))
	for i, msg := range s.messages {
		if msg.ID != "" {
			s.byID[msg.ID] = i
		}
	}

	s.agents = make([]models.SupportAgent, len(agents))
	copy(s.agents, agents)
	s.agentIdx = make(map[string]int, len(agents))
	for i, agent := range s.agents {
		s.agentIdx[agent.ID] = i
	}

	s.recountLocked()
}

// ApplyIncomingMessage merges a message into the list. Duplicate ids are
// dropped, which makes socket echo plus durable persist converge on a
// single entry. Returns whether the message was new.
func (s *Store) ApplyIncomingMessage(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID != "" {
		if _, ok := s.byID[msg.ID]; ok {
			return false
		}
		s.byID[msg.ID] = len(s.messages)
	}
	s.messages = append(s.messages, msg)
	s.recountLocked()
	return true
}

// ApplyPresence updates the status of a roster agent. Presence for an
// identity that is not on the roster is dropped silently: regular
// customers going on and off line are not roster events.
func (s *Store) ApplyPresence(userID string, status models.AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.agentIdx[userID]
	if !ok {
		return
	}
	s.agents[i].Status = status
}

// ApplyReadReceipt marks the user's own messages in the given thread as
// read by the counterparty.
func (s *Store) ApplyReadReceipt(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].SenderID == s.userID && s.messages[i].Thread() == threadID {
			s.messages[i].IsRead = true
		}
	}
	s.recountLocked()
}

// MarkAllRead flips every message to read locally. Returns how many
// messages changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.messages {
		if !s.messages[i].IsRead {
			s.messages[i].IsRead = true
			changed++
		}
	}
	s.recountLocked()
	return changed
}

// Messages returns a copy of the message list in arrival order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Agents returns a copy of the roster.
func (s *Store) Agents() []models.SupportAgent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SupportAgent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Unread returns the number of unread messages addressed to the user.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// unread is never tracked incrementally; it is recomputed from the
// message list on every mutation so it cannot drift.
func (s *Store) recountLocked() {
	n := 0
	for i := range s.messages {
		if s.messages[i].ReceiverID == s.userID && !s.messages[i].IsRead {
			n++
		}
	}
	s.unread = n
}
