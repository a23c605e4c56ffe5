// Command agentlinker serves the AgentLinker API and runs its background jobs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentlinker/internal"
)

const shutdownGrace = 30 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app, err := internal.NewApp()
	if err != nil {
		fatal(logger, "create application", err)
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		fatal(logger, "migrate database", err)
	}
	logger.Info("database schema up to date")

	if err := app.StartAsync(); err != nil {
		fatal(logger, "start application", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	<-ctx.Done()
	stop()

	logger.Info("shutting down", slog.Duration("grace", shutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("stopped")
}

func fatal(logger *slog.Logger, step string, err error) {
	logger.Error("startup failed", slog.String("step", step), slog.Any("error", err))
	os.Exit(1)
}
