package database

import (
	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"agentlinker/internal/agents"
	"agentlinker/internal/analytics"
	"agentlinker/internal/bookings"
	"agentlinker/internal/config"
	"agentlinker/internal/leads"
	"agentlinker/internal/listings"
	"agentlinker/internal/subscriptions"
)

// DBManager wraps cartridge's sqlite.Manager with the application's migrations.
type DBManager struct {
	*sqlite.Manager
	logger *slog.Logger
}

func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         cfg.DatabaseName,
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		logger:  logger,
	}
}

// Init opens the database connection.
func (dm *DBManager) Init() error {
	_, err := dm.Manager.Connect()
	return err
}

// Models lists every table the application owns, in migration order.
func Models() []any {
	return []any{
		&cache.CacheRecord{},
		&agents.Agent{},
		&listings.Listing{},
		&leads.Lead{},
		&bookings.Booking{},
		&subscriptions.Subscription{},
		&analytics.Event{},
	}
}

// MigrateDatabase creates or updates every table.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Models()...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}
