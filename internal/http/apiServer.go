package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"staychat/internal/api"
	"staychat/internal/auth"
	"staychat/internal/hub"
	"staychat/internal/storage"
	"staychat/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(authService *auth.Service, h *hub.Hub, store *storage.BboltStorage, addr string) *APIServer {
	server := ws.NewServer(authService, h)
	apiHandlers := api.New(authService, h, store)

	mux := http.NewServeMux()

	// Durable request/response API
	mux.HandleFunc("GET /api/messages", apiHandlers.RequireAuth(apiHandlers.MessagesHandler))
	mux.HandleFunc("POST /api/messages", apiHandlers.RequireAuth(apiHandlers.PostMessageHandler))
	mux.HandleFunc("POST /api/read", apiHandlers.RequireAuth(apiHandlers.ReadHandler))
	mux.HandleFunc("POST /api/logoff", apiHandlers.RequireAuth(apiHandlers.LogoffHandler))
	mux.HandleFunc("GET /api/agents", apiHandlers.RequireAuth(apiHandlers.AgentsHandler))
	mux.HandleFunc("POST /api/push/subscribe", apiHandlers.RequireAuth(apiHandlers.PushSubscribeHandler))
	mux.HandleFunc("POST /api/agents/{id}/avatar", apiHandlers.RequireAuth(apiHandlers.UploadAvatarHandler))
	mux.HandleFunc("GET /api/agents/{id}/avatar", apiHandlers.GetAvatarHandler)

	// WebSocket endpoint
	mux.HandleFunc("/api/chat", server.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
