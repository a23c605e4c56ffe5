// Package internal wires the application together.
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"agentlinker/internal/config"
	"agentlinker/internal/database"
	"agentlinker/internal/jobs"
	"agentlinker/internal/notify"
)

// Application is the cartridge application plus the pieces shutdown needs.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager

	// Notifier is nil when the routes were mounted by a custom function.
	Notifier *notify.Notifier
}

// NewApp creates an application from the global config.
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates an application mounting the default routes.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)
	notifications := NewNotifications(cfg, logger)

	app, err := newApplication(cfg, logger, notifications.MountAppRoutes)
	if err != nil {
		return nil, err
	}
	app.Notifier = notifications.Notifier
	return app, nil
}

// NewAppWithRoutes creates an application with a custom route mounting function.
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	return newApplication(cfg, cartridge.NewLogger(cfg, nil), routeMount)
}

func newApplication(cfg *config.Config, logger *slog.Logger, routeMount func(*cartridge.Server)) (*Application, error) {
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}

// Shutdown stops the server and workers, then waits for notifications that
// are still being delivered. Both steps share ctx's deadline.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Application.Shutdown(ctx)
	if a.Notifier == nil {
		return err
	}
	if drainErr := a.Notifier.Drain(ctx); drainErr != nil {
		return fmt.Errorf("notifications still in flight: %w", drainErr)
	}
	return err
}
