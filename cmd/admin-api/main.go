package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/vutran-dev/relay-be/internal/admin/handler"
	"github.com/vutran-dev/relay-be/internal/admin/router"
	"github.com/vutran-dev/relay-be/internal/app"
	"github.com/vutran-dev/relay-be/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := app.LoadConfig("ADMIN_API_CONFIG_PATH", "configs/admin-api/config.yaml")
	if err != nil {
		return err
	}
	if err := cfg.ValidateAdminConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	base, err := app.Setup(cfg, "admin-api")
	if err != nil {
		return err
	}
	defer base.Close()

	slogger := base.Logger.Logger

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:      slogger,
		DeadLetters: store.NewDeadLetterStore(base.DB.DB(), slogger),
		Queue:       base.Rabbit,
		DB:          base.DB,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	slogger.Info("Admin API is running", slog.String("address", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	slogger.Info("Server shutdown complete")
	return nil
}
