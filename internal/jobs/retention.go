package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"agentlinker/internal/analytics"
	"agentlinker/internal/metrics"
	"agentlinker/internal/timeframe"
)

const retentionBatchSize = 1000

// EventRetentionJob deletes analytics events older than the retention period.
type EventRetentionJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	clock         timeframe.TimeProvider
}

func NewEventRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, retentionDays int, clock timeframe.TimeProvider) *EventRetentionJob {
	return &EventRetentionJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: retentionDays,
		clock:         clock,
	}
}

func (j *EventRetentionJob) Name() string            { return "event_retention" }
func (j *EventRetentionJob) Interval() time.Duration { return 24 * time.Hour }

func (j *EventRetentionJob) Run() error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Event retention disabled")
		return nil
	}

	cutoff := j.clock.Now(time.UTC).AddDate(0, 0, -j.retentionDays)
	j.logger.Info("Starting cleanup of old analytics events",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := analytics.PurgeOlderThan(j.dbManager.GetConnection(), j.logger, cutoff, retentionBatchSize)
	if err != nil {
		j.logger.Error("Failed to delete old analytics events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	metrics.RowsPurged.WithLabelValues(j.Name()).Add(float64(deleted))
	j.logger.Info("Cleaned up old analytics events", slog.Int64("deleted_count", deleted))
	return nil
}
