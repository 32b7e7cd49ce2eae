package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"staychat/internal/auth"
	"staychat/internal/content"
	"staychat/internal/hub"
	"staychat/internal/models"
	"staychat/internal/storage"
	"staychat/internal/telemetry"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 50
	maxAvatarSize       = 1 << 20 // 1 MiB
)

type API struct {
	auth  *auth.Service
	hub   *hub.Hub
	store *storage.BboltStorage
}

func New(auth *auth.Service, hub *hub.Hub, store *storage.BboltStorage) *API {
	return &API{auth: auth, hub: hub, store: store}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

// RequireAuth rejects requests without a live session token.
func (a *API) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.auth.GetUserID(a.getToken(r)); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *API) currentUser(r *http.Request) string {
	userID, _ := a.auth.GetUserID(a.getToken(r))
	return userID
}

type MessagesPage struct {
	Messages []models.Message `json:"messages"`
}

// MessagesHandler returns the session user's message history, oldest
// first. ?limit= caps the page size, ?format=html renders the markdown
// bodies to sanitized HTML.
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUser(r)

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := a.store.ListMessagesFor(userID, limit)
	if err != nil {
		log.Printf("failed to list messages for %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		for i := range messages {
			rendered, err := content.RenderMessage(messages[i].Content)
			if err != nil {
				log.Printf("failed to render message %s: %v", messages[i].ID, err)
				continue
			}
			messages[i].Content = rendered
		}
	}

	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(MessagesPage{Messages: messages}); err != nil {
		log.Printf("failed to encode messages response: %v", err)
	}
}

// AgentsHandler returns the roster snapshot with live presence overlaid.
func (a *API) AgentsHandler(w http.ResponseWriter, r *http.Request) {
	agents, err := a.store.ListAgents()
	if err != nil {
		log.Printf("failed to list agents: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	agents = a.hub.OverlayStatus(agents)
	if agents == nil {
		agents = []models.SupportAgent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(agents); err != nil {
		log.Printf("failed to encode agents response: %v", err)
	}
}

type SendMessageRequest struct {
	ID         string `json:"id,omitempty"`
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId,omitempty"`
	ThreadID   string `json:"threadId,omitempty"`
	Type       string `json:"type,omitempty"`
}

// PostMessageHandler is the durable half of sending: it persists the
// message independently of whatever the socket broadcast did.
func (a *API) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUser(r)

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" || req.ReceiverID == "" {
		http.Error(w, "content and receiverId are required", http.StatusBadRequest)
		return
	}

	// Only agents may write under a different sender identity (the
	// "send as" routing decided by the caller); everyone else is pinned
	// to their session identity.
	senderID := userID
	if req.SenderID != "" && req.SenderID != userID {
		if _, err := a.store.GetAgent(userID); err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		senderID = req.SenderID
	}

	msg := models.Message{
		ID:         req.ID,
		Content:    content.Sanitize(req.Content),
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		ThreadID:   req.ThreadID,
		Type:       req.Type,
		Timestamp:  time.Now().Unix(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	if err := a.store.AppendMessage(msg); err != nil {
		log.Printf("failed to persist message from %s: %v", senderID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	telemetry.MessagesPersisted.Inc()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Printf("failed to encode message response: %v", err)
	}
}

// LogoffHandler revokes the session token.
func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logoff(a.getToken(r)); err != nil {
		log.Printf("failed to log off session: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.APIResponse{Success: true}); err != nil {
		log.Printf("failed to encode logoff response: %v", err)
	}
}

// ReadHandler marks every message addressed to the session user as read.
func (a *API) ReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUser(r)

	updated, err := a.store.MarkAllRead(userID)
	if err != nil {
		log.Printf("failed to mark messages read for %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		models.APIResponse
		Updated int `json:"updated"`
	}{APIResponse: models.APIResponse{Success: true}, Updated: updated}); err != nil {
		log.Printf("failed to encode read response: %v", err)
	}
}

// PushSubscribeHandler stores the browser's push subscription for the
// session user so offline deliveries can be nudged.
func (a *API) PushSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUser(r)

	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var probe struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Endpoint == "" {
		http.Error(w, "Invalid subscription", http.StatusBadRequest)
		return
	}

	if err := a.store.UpsertSubscription(userID, probe.Endpoint, raw); err != nil {
		log.Printf("failed to store subscription for %s: %v", userID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UploadAvatarHandler accepts an image for the agent's roster entry.
// Agents can only change their own avatar.
func (a *API) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUser(r)
	agentID := r.PathValue("id")

	if agentID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := a.store.GetAgent(agentID); err != nil {
		http.Error(w, "Not an agent", http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAvatarSize))
	if err != nil {
		http.Error(w, "Avatar too large", http.StatusRequestEntityTooLarge)
		return
	}

	mimeType, err := content.DetectImage(data)
	if err != nil {
		http.Error(w, "Unsupported image format", http.StatusBadRequest)
		return
	}

	if err := a.store.SaveAvatar(agentID, mimeType, data); err != nil {
		log.Printf("failed to save avatar for %s: %v", agentID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetAvatarHandler serves a stored agent avatar.
func (a *API) GetAvatarHandler(w http.ResponseWriter, r *http.Request) {
	avatar, err := a.store.GetAvatar(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", avatar.MimeType)
	if _, err := w.Write(avatar.Data); err != nil {
		log.Printf("failed to write avatar response: %v", err)
	}
}
