package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatgate/chatgate/internal/ai"
	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/chat"
	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/internal/db"
	"github.com/chatgate/chatgate/internal/httpapi"
	"github.com/chatgate/chatgate/internal/httpapi/handlers"
	"github.com/chatgate/chatgate/internal/quota"
	"github.com/chatgate/chatgate/internal/ratelimit"
	"github.com/chatgate/chatgate/internal/session"
	"github.com/chatgate/chatgate/internal/store/rabbitmq"
	"github.com/chatgate/chatgate/internal/store/redisstore"
	"github.com/chatgate/chatgate/internal/usage"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(
		&channel.Channel{},
		&auth.APIKey{},
		&chat.Message{},
		&usage.Log{},
		&usage.Rollup{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	channels := channel.NewRepo(gdb, rds)
	messages := chat.NewRepo(gdb)
	usageRepo := usage.NewRepo(gdb)

	sessions := session.NewStore(messages)
	limiter := ratelimit.New()
	quotas := quota.NewAccountant(usageRepo)
	resolver := channel.NewResolver(cfg.Public, cfg.Private)

	reg := ai.NewRegistry()
	reg.Register("pipeline", func() (ai.Provider, error) {
		return ai.NewPipelineProvider(cfg.AIServiceURL, cfg.AITimeout), nil
	})
	provider, err := reg.Get("pipeline")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	var publisher chat.UsagePublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	} else {
		log.Printf("rabbit disabled, usage rollups will lag until the worker backfills")
	}

	svc := chat.NewService(chat.Deps{
		Channels:  channels,
		Resolver:  resolver,
		Sessions:  sessions,
		Limiter:   limiter,
		Quotas:    quotas,
		Messages:  messages,
		Usage:     usageRepo,
		Provider:  provider,
		Publisher: publisher,
		AITimeout: cfg.AITimeout,
	})

	authn := auth.NewAuthenticator(gdb)
	admin := auth.NewAdminAuth(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPasswordHash)
	aiHealth, _ := provider.(handlers.HealthProber)
	h := handlers.NewHandler(svc, channels, authn, admin, usageRepo, aiHealth)
	r := httpapi.NewRouter(h, authn, admin)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background sweeps: drop idle sessions and stale rate windows.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.EvictIdle(cfg.SessionIdleTimeout); n > 0 {
					log.Printf("evicted idle sessions count=%d live=%d", n, sessions.Len())
				}
				limiter.Sweep()
			}
		}
	}()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		log.Printf("server listening addr=%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
