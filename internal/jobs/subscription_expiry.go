package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"agentlinker/internal/metrics"
	"agentlinker/internal/subscriptions"
	"agentlinker/internal/timeframe"
)

// SubscriptionExpiryJob moves agents whose paid period lapsed back to the free tier.
type SubscriptionExpiryJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	interval  time.Duration
	clock     timeframe.TimeProvider
}

func NewSubscriptionExpiryJob(dbManager cartridge.DBManager, logger *slog.Logger, interval time.Duration, clock timeframe.TimeProvider) *SubscriptionExpiryJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SubscriptionExpiryJob{
		dbManager: dbManager,
		logger:    logger,
		interval:  interval,
		clock:     clock,
	}
}

func (j *SubscriptionExpiryJob) Name() string            { return "subscription_expiry" }
func (j *SubscriptionExpiryJob) Interval() time.Duration { return j.interval }

func (j *SubscriptionExpiryJob) Run() error {
	downgraded, err := subscriptions.DowngradeExpired(j.dbManager.GetConnection(), j.logger, j.clock.Now(time.UTC))
	if downgraded > 0 {
		metrics.RowsPurged.WithLabelValues(j.Name()).Add(float64(downgraded))
		j.logger.Info("Downgraded expired subscriptions", slog.Int("count", downgraded))
	}
	return err
}
