package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"staychat/internal/auth"
	"staychat/internal/commands"
	"staychat/internal/config"
	"staychat/internal/http"
	"staychat/internal/hub"
	"staychat/internal/notify"
	"staychat/internal/storage"
	"staychat/internal/stubs"
)

func run(ctx context.Context, addAgent string) error {
	cfg, err := config.Load(addAgent != "")
	if err != nil {
		return err
	}

	if addAgent != "" {
		return commands.AddAgent(addAgent, cfg)
	}

	authConfig := auth.Config{
		Secret:       base64.StdEncoding.EncodeToString([]byte(cfg.AuthSecret)),
		TokenExpiry:  cfg.TokenExpiry,
		AdminKeyHash: cfg.AdminKeyHash,
	}

	authService, err := auth.NewService(ctx, authConfig)
	if err != nil {
		return err
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := seedRoster(store); err != nil {
		return err
	}

	pusher := notify.New(store, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushContact)
	h := hub.New(store, pusher)

	adminServer := http.NewAdminServer(authService, store, cfg.AdminAddr)
	apiServer := http.NewAPIServer(authService, h, store, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server shutdown error: %v", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

// seedRoster fills an empty agents bucket with the default roster so a
// fresh install is immediately usable.
func seedRoster(store *storage.BboltStorage) error {
	agents, err := store.ListAgents()
	if err != nil {
		return err
	}
	if len(agents) > 0 {
		return nil
	}
	for _, agent := range stubs.Agents {
		if err := store.UpsertAgent(agent); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	addAgent := flag.String("add-agent", "", "Agent to create as id:name or id:name:title (requires a running server and ADMIN_KEY)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *addAgent); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
