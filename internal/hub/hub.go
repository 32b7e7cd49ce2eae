package hub

import (
	"sync"

	"staychat/internal/models"
	"staychat/internal/protocol"
	"staychat/internal/telemetry"

	"github.com/google/uuid"
)

// Notifier is the fallback delivery path for receivers without a live
// socket session.
type Notifier interface {
	NotifyOffline(userID string, msg models.Message)
}

// AgentDirectory tells the hub which session ids belong to support
// agents, whose presence transitions are broadcast to everyone.
type AgentDirectory interface {
	GetAgent(id string) (models.SupportAgent, error)
}

// Hub routes envelopes between connected sessions. One outbound channel
// per session; presence of agents is tracked here for the roster overlay.
type Hub struct {
	mu sync.RWMutex

	// Map of userID -> session outbound channel
	sessions map[string]chan protocol.Envelope

	// Live agent presence, overlaid on the stored roster
	agentStatus map[string]models.AgentStatus

	agents   AgentDirectory
	notifier Notifier
}

func New(agents AgentDirectory, notifier Notifier) *Hub {
	return &Hub{
		sessions:    make(map[string]chan protocol.Envelope),
		agentStatus: make(map[string]models.AgentStatus),
		agents:      agents,
		notifier:    notifier,
	}
}

// Join registers a session and returns its outbound channel. Agents
// joining flips their presence to online for everyone connected.
func (h *Hub) Join(userID string) chan protocol.Envelope {
	h.mu.Lock()
	old, replaced := h.sessions[userID]
	if replaced {
		// One socket per session; a newer connection replaces the old one.
		close(old)
	}
	ch := make(chan protocol.Envelope, 100)
	h.sessions[userID] = ch
	h.mu.Unlock()

	if !replaced {
		telemetry.SessionsConnected.Inc()
	}

	if h.isAgent(userID) {
		h.setAgentStatus(userID, models.AgentStatusOnline)
	}

	return ch
}

// Leave unregisters the caller's session. The channel identifies the
// caller: a connection whose socket was already replaced by a newer
// dial no longer owns the registration and must not tear down the
// replacement, so its late Leave is a no-op.
func (h *Hub) Leave(userID string, ch chan protocol.Envelope) {
	h.mu.Lock()
	cur, ok := h.sessions[userID]
	if !ok || cur != ch {
		h.mu.Unlock()
		return
	}
	close(cur)
	delete(h.sessions, userID)
	h.mu.Unlock()

	telemetry.SessionsConnected.Dec()

	if h.isAgent(userID) {
		h.setAgentStatus(userID, models.AgentStatusOffline)
	}
}

// Dispatch routes one inbound envelope from the given session. The
// sender identity always comes from the session, never from the wire.
func (h *Hub) Dispatch(senderID string, env protocol.Envelope) {
	env.SenderID = senderID

	switch env.Type {
	case protocol.TypeMessage:
		if env.ID == "" {
			env.ID = uuid.NewString()
		}
		if env.ThreadID == "" {
			env.ThreadID = env.ReceiverID
		}
		delivered := h.send(env.ReceiverID, env)
		// Echo to the sender so every connected party shares one view.
		h.send(senderID, env)
		if !delivered && h.notifier != nil {
			h.notifier.NotifyOffline(env.ReceiverID, env.Message())
		}

	case protocol.TypeTyping, protocol.TypeRead:
		receiver := env.ReceiverID
		if receiver == "" {
			// Thread key doubles as the counterparty id.
			receiver = env.ThreadID
		}
		h.send(receiver, env)

	case protocol.TypePresence:
		status := env.Status
		if status == "" {
			status = models.AgentStatus(env.Content)
		}
		if h.isAgent(senderID) {
			h.setAgentStatus(senderID, status)
		}

	default:
		// Unknown variants are ignored without incident.
		return
	}

	telemetry.EnvelopesDispatched.WithLabelValues(string(env.Type)).Inc()
}

// OverlayStatus applies live presence on top of a stored roster snapshot.
func (h *Hub) OverlayStatus(agents []models.SupportAgent) []models.SupportAgent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := range agents {
		if status, ok := h.agentStatus[agents[i].ID]; ok {
			agents[i].Status = status
		}
	}
	return agents
}

func (h *Hub) AgentStatus(id string) models.AgentStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if status, ok := h.agentStatus[id]; ok {
		return status
	}
	return models.AgentStatusOffline
}

// IsOnline reports whether the user has a live session.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

func (h *Hub) isAgent(id string) bool {
	if h.agents == nil {
		return false
	}
	_, err := h.agents.GetAgent(id)
	return err == nil
}

// setAgentStatus records the transition and broadcasts it to every
// connected session in the inbound presence shape (userId + status).
func (h *Hub) setAgentStatus(agentID string, status models.AgentStatus) {
	h.mu.Lock()
	h.agentStatus[agentID] = status
	targets := make([]chan protocol.Envelope, 0, len(h.sessions))
	for userID, ch := range h.sessions {
		if userID == agentID {
			continue
		}
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	env := protocol.Envelope{
		Type:   protocol.TypePresence,
		UserID: agentID,
		Status: status,
	}
	for _, ch := range targets {
		select {
		case ch <- env:
		default:
			// Slow consumer, drop the presence update.
		}
	}
}

func (h *Hub) send(userID string, env protocol.Envelope) bool {
	h.mu.RLock()
	ch, online := h.sessions[userID]
	h.mu.RUnlock()

	if !online {
		return false
	}

	select {
	case ch <- env:
		return true
	default:
		// Drop rather than block the dispatching session.
		return false
	}
}
