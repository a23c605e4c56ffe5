package leads_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlinker/internal/leads"
	"agentlinker/internal/testsupport"
	"agentlinker/internal/tiers"
)

func TestCreate(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("stores a new lead", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		agent := testsupport.CreateTestAgent(t, db, "lead@example.com", "leader")

		lead, err := leads.Create(db, agent.ID, tiers.Free, leads.Input{
			Name:  " Jamie Buyer ",
			Email: "Jamie@Example.com",
		}, now)
		require.NoError(t, err)

		assert.Equal(t, "Jamie Buyer", lead.Name)
		assert.Equal(t, "jamie@example.com", lead.Email)
		assert.Equal(t, "profile", lead.Source)
		assert.Equal(t, leads.StatusNew, lead.Status)
		assert.Equal(t, now, lead.CreatedAt)
	})

	t.Run("requires a name and a way to reply", func(t *testing.T) {
		_, err := leads.Create(db, 1, tiers.Free, leads.Input{Email: "x@example.com"}, now)
		assert.Error(t, err)

		_, err = leads.Create(db, 1, tiers.Free, leads.Input{Name: "No Contact"}, now)
		assert.Error(t, err)

		_, err = leads.Create(db, 1, tiers.Free, leads.Input{Name: "Phone Only", Phone: "+1 555 0100"}, now)
		assert.NoError(t, err)
	})

	t.Run("monthly allowance resets with the month", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		agent := testsupport.CreateTestAgent(t, db, "quota@example.com", "quota")

		limit := tiers.For(tiers.Free).MaxLeadsPerMonth
		for i := 0; i < limit; i++ {
			_, err := leads.Create(db, agent.ID, tiers.Free, leads.Input{Name: "Lead", Phone: "1"}, now)
			require.NoError(t, err)
		}

		_, err := leads.Create(db, agent.ID, tiers.Free, leads.Input{Name: "Over", Phone: "1"}, now)
		assert.ErrorIs(t, err, leads.ErrLeadLimitReached)

		count, err := leads.CountThisMonth(db, agent.ID, now)
		require.NoError(t, err)
		assert.Equal(t, limit, count)

		nextMonth := time.Date(2024, 4, 1, 0, 0, 1, 0, time.UTC)
		_, err = leads.Create(db, agent.ID, tiers.Free, leads.Input{Name: "April", Phone: "1"}, nextMonth)
		assert.NoError(t, err)
	})
}

func TestStatusAndDelete(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	owner := testsupport.CreateTestAgent(t, db, "own@example.com", "own")
	other := testsupport.CreateTestAgent(t, db, "oth@example.com", "oth")

	lead, err := leads.Create(db, owner.ID, tiers.Pro, leads.Input{Name: "Sam", Email: "sam@example.com"}, time.Now())
	require.NoError(t, err)

	updated, err := leads.UpdateStatus(db, owner.ID, lead.ID, leads.StatusContacted)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusContacted, updated.Status)

	_, err = leads.UpdateStatus(db, owner.ID, lead.ID, "archived")
	assert.Error(t, err)

	_, err = leads.UpdateStatus(db, other.ID, lead.ID, leads.StatusClosed)
	assert.ErrorIs(t, err, leads.ErrLeadNotFound)

	assert.ErrorIs(t, leads.Delete(db, other.ID, lead.ID), leads.ErrLeadNotFound)
	require.NoError(t, leads.Delete(db, owner.ID, lead.ID))

	remaining, err := leads.ListForAgent(db, owner.ID, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestListSince(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "since@example.com", "since")

	now := time.Now().UTC()
	for _, age := range []time.Duration{40 * 24 * time.Hour, 2 * time.Hour, time.Hour} {
		_, err := leads.Create(db, agent.ID, tiers.Business, leads.Input{Name: "L", Phone: "1"}, now.Add(-age))
		require.NoError(t, err)
	}

	recent, err := leads.ListSince(db, agent.ID, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].CreatedAt.Before(recent[1].CreatedAt), "insertion order")
}
