package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/api"
	"github.com/review-agent/backend/internal/app"
	"github.com/review-agent/backend/pkg/config"
	appLogger "github.com/review-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting review question API server")

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to build question engine", zap.Error(err))
	}
	defer a.Close()

	server, stop := api.NewServer(cfg.Server, cfg.RateLimit, api.Deps{
		Engine:  a.Engine,
		Audit:   a.Audit,
		Catalog: a.Catalog,
		Ready:   a.Ready,
	})
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
