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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/config"
	"exam-server-go/db"
	"exam-server-go/handlers"
	"exam-server-go/logger"
	"exam-server-go/report"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logg, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.Database, logg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	store := db.NewStore(gdb, logg)

	// Initialize Redis Client
	redisClient, err := db.InitializeRedisClient(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()
	redisService := db.NewRedisService(redisClient, cfg.Session.TTL, logg)

	if _, err := store.CheckAndSeedData(ctx); err != nil {
		logg.Warn("Could not seed initial data", zap.Error(err))
	}

	analyzer, err := report.NewGeminiAnalyzer(ctx, cfg.Gemini, logg)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	apiHandler := handlers.NewAPIHandler(handlers.Deps{
		Store:    store,
		Sessions: redisService,
		Locker:   redisService,
		Reports:  report.NewGenerator(analyzer, logg),
		Server:   cfg.Server,
		Session:  cfg.Session,
		Logger:   logg,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
