package api

import (
	"encoding/json"
	"log"
	"net/http"

	"staychat/internal/auth"
	"staychat/internal/models"
	"staychat/internal/storage"
)

// AdminHandler carries the operator surface: roster management and
// session issuance. The platform's identity layer calls these with the
// admin key after authenticating the user itself.
type AdminHandler struct {
	auth  *auth.Service
	store *storage.BboltStorage
}

func NewAdminHandler(auth *auth.Service, store *storage.BboltStorage) *AdminHandler {
	return &AdminHandler{auth: auth, store: store}
}

// RequireAdminKey gates a handler behind the configured admin key.
func (h *AdminHandler) RequireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.auth.CheckAdminKey(r.Header.Get("X-Admin-Key")); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// UpsertAgentHandler creates or updates a roster entry.
func (h *AdminHandler) UpsertAgentHandler(w http.ResponseWriter, r *http.Request) {
	var agent models.SupportAgent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if agent.ID == "" || agent.Name == "" {
		http.Error(w, "id and name are required", http.StatusBadRequest)
		return
	}

	if err := h.store.UpsertAgent(agent); err != nil {
		log.Printf("failed to upsert agent %s: %v", agent.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.APIResponse{Success: true}); err != nil {
		log.Printf("failed to encode agent response: %v", err)
	}
}

type IssueSessionRequest struct {
	UserID string `json:"userId"`
}

type IssueSessionResponse struct {
	Token       string `json:"token"`
	TokenExpiry int64  `json:"tokenExpiry"`
}

// IssueSessionHandler mints a chat session token for an already
// authenticated platform user.
func (h *AdminHandler) IssueSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req IssueSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	token, expiry, err := h.auth.IssueToken(req.UserID)
	if err != nil {
		log.Printf("failed to issue session for %s: %v", req.UserID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(IssueSessionResponse{
		Token:       token,
		TokenExpiry: expiry,
	}); err != nil {
		log.Printf("failed to encode session response: %v", err)
	}
}
