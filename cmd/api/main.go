package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/config"
	"contactdesk.org/internal/directory"
	"contactdesk.org/internal/httpapi"
	"contactdesk.org/internal/migrate"
	"contactdesk.org/internal/obs"
	"contactdesk.org/internal/store/pg"
	"contactdesk.org/internal/stream"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	defer obs.Sync()

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		mgr := migrate.NewManager(store.DB(), cfg.MigrationsDir, cfg.SeedsDir)
		if err := mgr.Up(ctx); err != nil {
			cancel()
			logger.Fatal("apply migrations", zap.Error(err))
		}
		if err := mgr.Seed(ctx); err != nil {
			cancel()
			logger.Fatal("apply seeds", zap.Error(err))
		}
		cancel()
	}

	svc, err := directory.NewService(store, directory.WithSessionTTL(cfg.SessionTTL))
	if err != nil {
		logger.Fatal("build directory service", zap.Error(err))
	}

	events := stream.New[audit.Entry]()
	recorder := audit.NewRecorder(store, audit.WithStream(events))
	tokens := directory.NewTokenIssuer(cfg.TokenSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
	if tokens == nil {
		logger.Warn("TOKEN_SECRET not set; bearer token issuance disabled")
	}

	api := httpapi.New(httpapi.Options{
		Service:    svc,
		Recorder:   recorder,
		AuditStore: store,
		Events:     events,
		Tokens:     tokens,
		Probe:      httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,

		SessionCookie:   cfg.SessionCookie,
		SecureCookies:   cfg.SecureCookies,
		AllowedOrigin:   cfg.AllowedOrigin,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderWindow,
		// No WriteTimeout: the audit stream endpoint holds its connection open.
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("starting contactdesk-api",
		zap.String("version", version),
		zap.String("addr", cfg.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}
