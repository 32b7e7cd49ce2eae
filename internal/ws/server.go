package ws

import (
	"log"
	"net/http"

	"staychat/internal/auth"

	"github.com/gorilla/websocket"
)

type Server struct {
	auth     *auth.Service
	hub      messageHub
	upgrader *websocket.Upgrader
}

func NewServer(auth *auth.Service, hub messageHub) *Server {
	return &Server{
		auth: auth,
		hub:  hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.GetUserID(getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	conn := NewConnection(s.hub, ws, userID)
	if err := conn.Handle(r.Context()); err != nil {
		log.Printf("session %s closed with error: %v", userID, err)
	}
}

// getToken resolves the session token from header, query string (used by
// socket dials where headers are awkward) or cookie, in that order.
func getToken(r *http.Request) string {
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
