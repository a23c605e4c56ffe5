package http

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// HealthStatus is the /_health response body.
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	DBStatus      string    `json:"db_status"`
	Notifications string    `json:"notifications"`
}

// BreakerState reports the notification circuit state.
type BreakerState interface {
	State() string
}

// HealthIndexAction reports database connectivity and notification delivery state.
// An open notification breaker does not degrade the service status.
func HealthIndexAction(breaker BreakerState) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		dbStatus := "ok"

		db := ctx.DBManager.GetConnection()
		if db == nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection unavailable")
		} else {
			sqlDB, err := db.DB()
			if err != nil {
				dbStatus = "error"
				ctx.Logger.Error("Database connection error", slog.Any("error", err))
			} else if err := sqlDB.PingContext(ctx.Context()); err != nil {
				dbStatus = "error"
				ctx.Logger.Error("Database ping failed", slog.Any("error", err))
			}
		}

		health := HealthStatus{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			DBStatus:      dbStatus,
			Notifications: "unknown",
		}
		if breaker != nil {
			health.Notifications = breaker.State()
		}
		if dbStatus != "ok" {
			health.Status = "degraded"
		}

		return ctx.JSON(health)
	}
}
