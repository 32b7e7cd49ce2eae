package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"staychat/internal/api"
	"staychat/internal/auth"
	"staychat/internal/storage"
	"staychat/internal/telemetry"
)

type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAdminServer(authService *auth.Service, store *storage.BboltStorage, addr string) *AdminServer {
	adminHandler := api.NewAdminHandler(authService, store)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/agents", adminHandler.RequireAdminKey(adminHandler.UpsertAgentHandler))
	mux.HandleFunc("POST /admin/sessions", adminHandler.RequireAdminKey(adminHandler.IssueSessionHandler))
	mux.Handle("GET /metrics", telemetry.Handler())

	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *AdminServer) Start() error {
	log.Printf("Admin API started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
