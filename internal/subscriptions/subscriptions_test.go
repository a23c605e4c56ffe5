package subscriptions_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agentlinker/internal/agents"
	"agentlinker/internal/leads"
	"agentlinker/internal/subscriptions"
	"agentlinker/internal/testsupport"
	"agentlinker/internal/tiers"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"subscription.created"}`)
	sig := subscriptions.Sign("whsec", body)

	assert.NoError(t, subscriptions.VerifySignature("whsec", body, sig))
	assert.NoError(t, subscriptions.VerifySignature("whsec", body, "sha256="+sig))
	assert.ErrorIs(t, subscriptions.VerifySignature("whsec", body, "deadbeef"), subscriptions.ErrInvalidSignature)
	assert.ErrorIs(t, subscriptions.VerifySignature("other", body, sig), subscriptions.ErrInvalidSignature)
	assert.ErrorIs(t, subscriptions.VerifySignature("", body, sig), subscriptions.ErrInvalidSignature)
	assert.ErrorIs(t, subscriptions.VerifySignature("whsec", body, ""), subscriptions.ErrInvalidSignature)
}

func TestParseWebhook(t *testing.T) {
	event, err := subscriptions.ParseWebhook([]byte(`{"id":"evt_1","type":"subscription.updated","data":{"agent_id":7,"tier":"pro"}}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, uint(7), event.Data.AgentID)

	_, err = subscriptions.ParseWebhook([]byte(`not json`))
	assert.ErrorIs(t, err, subscriptions.ErrMalformedEvent)

	_, err = subscriptions.ParseWebhook([]byte(`{"type":"subscription.updated","data":{}}`))
	assert.ErrorIs(t, err, subscriptions.ErrMalformedEvent)
}

func webhook(kind string, agentID uint, tier string, periodEnd time.Time) *subscriptions.WebhookEvent {
	return &subscriptions.WebhookEvent{
		ID:   fmt.Sprintf("evt_%s_%d", kind, agentID),
		Type: kind,
		Data: subscriptions.WebhookData{
			AgentID:          agentID,
			Tier:             tier,
			CustomerID:       "cus_1",
			SubscriptionID:   "sub_1",
			CurrentPeriodEnd: periodEnd,
		},
	}
}

func TestApplyWebhook(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	agent := testsupport.CreateTestAgent(t, db, "billing@example.com", "billing")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()

	t.Run("created upgrades the agent", func(t *testing.T) {
		sub, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, agent.ID, "pro", periodEnd))
		require.NoError(t, err)
		assert.Equal(t, subscriptions.StatusActive, sub.Status)
		assert.Equal(t, "pro", sub.Tier)

		reloaded, err := agents.FindByID(db, agent.ID)
		require.NoError(t, err)
		assert.Equal(t, tiers.Pro, reloaded.CurrentTier())
	})

	t.Run("updated replaces the same row", func(t *testing.T) {
		_, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventUpdated, agent.ID, "business", periodEnd))
		require.NoError(t, err)

		var count int64
		db.Model(&subscriptions.Subscription{}).Where("agent_id = ?", agent.ID).Count(&count)
		assert.Equal(t, int64(1), count)

		reloaded, _ := agents.FindByID(db, agent.ID)
		assert.Equal(t, tiers.Business, reloaded.CurrentTier())
	})

	t.Run("deleted downgrades to free", func(t *testing.T) {
		sub, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventDeleted, agent.ID, "business", periodEnd))
		require.NoError(t, err)
		assert.Equal(t, subscriptions.StatusCanceled, sub.Status)

		reloaded, _ := agents.FindByID(db, agent.ID)
		assert.Equal(t, tiers.Free, reloaded.CurrentTier())
	})

	t.Run("rejects unknown tiers, events and agents", func(t *testing.T) {
		_, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, agent.ID, "platinum", periodEnd))
		assert.ErrorIs(t, err, subscriptions.ErrMalformedEvent)

		_, err = subscriptions.ApplyWebhook(db, logger, webhook("invoice.paid", agent.ID, "pro", periodEnd))
		assert.ErrorIs(t, err, subscriptions.ErrUnsupportedEvent)

		_, err = subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, 9999, "pro", periodEnd))
		assert.ErrorIs(t, err, agents.ErrAgentNotFound)
	})
}

func TestDowngradeExpired(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	now := time.Now().UTC()

	lapsed := testsupport.CreateTestAgent(t, db, "lapsed@example.com", "lapsed")
	grace := testsupport.CreateTestAgent(t, db, "grace@example.com", "grace")
	current := testsupport.CreateTestAgent(t, db, "current@example.com", "current")

	_, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, lapsed.ID, "pro", now.Add(-subscriptions.ExpiryGrace-time.Hour)))
	require.NoError(t, err)
	_, err = subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, grace.ID, "pro", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, current.ID, "business", now.Add(24*time.Hour)))
	require.NoError(t, err)

	downgraded, err := subscriptions.DowngradeExpired(db, logger, now)
	require.NoError(t, err)
	assert.Equal(t, 1, downgraded)

	for id, expected := range map[uint]tiers.Tier{lapsed.ID: tiers.Free, grace.ID: tiers.Pro, current.ID: tiers.Business} {
		agent, err := agents.FindByID(db, id)
		require.NoError(t, err)
		assert.Equal(t, expected, agent.CurrentTier(), "agent %d", id)
	}

	sub, err := subscriptions.FindByAgent(db, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusCanceled, sub.Status)

	again, err := subscriptions.DowngradeExpired(db, logger, now)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestDowngradeExpiredReportsPartialProgress(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	now := time.Now().UTC()
	lapsedAt := now.Add(-subscriptions.ExpiryGrace - time.Hour)

	first := testsupport.CreateTestAgent(t, db, "first@example.com", "first")
	second := testsupport.CreateTestAgent(t, db, "second@example.com", "second")
	for _, agent := range []*agents.Agent{first, second} {
		_, err := subscriptions.ApplyWebhook(db, logger, webhook(subscriptions.EventCreated, agent.ID, "pro", lapsedAt))
		require.NoError(t, err)
	}

	// Only the first agent row update goes through.
	const callback = "test:fail_agent_updates"
	agentUpdates := 0
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(callback, func(tx *gorm.DB) {
		if tx.Statement.Table != "agents" {
			return
		}
		agentUpdates++
		if agentUpdates > 1 {
			tx.AddError(errors.New("disk I/O error"))
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Update().Remove(callback) })

	downgraded, err := subscriptions.DowngradeExpired(db, logger, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("agent %d", second.ID))
	assert.Equal(t, 1, downgraded)

	for id, expected := range map[uint]tiers.Tier{first.ID: tiers.Free, second.ID: tiers.Pro} {
		agent, err := agents.FindByID(db, id)
		require.NoError(t, err)
		assert.Equal(t, expected, agent.CurrentTier(), "agent %d", id)
	}
}

func TestUsageFor(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "usage@example.com", "usage")
	now := time.Now().UTC()

	testsupport.CreateTestListing(t, db, agent, "One")
	testsupport.CreateTestListing(t, db, agent, "Two")
	_, err := leads.Create(db, agent.ID, tiers.Free, leads.Input{Name: "Lead", Phone: "1"}, now)
	require.NoError(t, err)

	usage, err := subscriptions.UsageFor(db, agent, now)
	require.NoError(t, err)
	assert.Equal(t, tiers.Free, usage.Tier)
	assert.Equal(t, subscriptions.Allowance{Used: 2, Limit: 3}, usage.Listings)
	assert.Equal(t, subscriptions.Allowance{Used: 1, Limit: 25}, usage.LeadsThisMonth)

	_, err = subscriptions.FindByAgent(db, agent.ID)
	assert.ErrorIs(t, err, subscriptions.ErrSubscriptionNotFound)
}
