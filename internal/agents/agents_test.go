package agents_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlinker/internal/agents"
	"agentlinker/internal/testsupport"
	"agentlinker/internal/tiers"
)

func TestCreate(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	t.Run("normalises and hashes", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		agent, err := agents.Create(db, agents.CreateInput{
			Email:    "  Maria@Example.COM ",
			Username: "Maria-Homes",
			Password: "secret-password",
		})
		require.NoError(t, err)

		assert.Equal(t, "maria@example.com", agent.Email)
		assert.Equal(t, "maria-homes", agent.Username)
		assert.Equal(t, "maria-homes", agent.DisplayName)
		assert.Equal(t, tiers.Free, agent.CurrentTier())
		assert.NotEqual(t, "secret-password", agent.EncryptedPassword)
		assert.NotEmpty(t, agent.EncryptedPassword)
	})

	t.Run("rejects duplicate email or username", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		testsupport.CreateTestAgent(t, db, "taken@example.com", "taken")

		_, err := agents.Create(db, agents.CreateInput{Email: "taken@example.com", Username: "other", Password: "x"})
		assert.ErrorIs(t, err, agents.ErrAgentExists)

		_, err = agents.Create(db, agents.CreateInput{Email: "other@example.com", Username: "TAKEN", Password: "x"})
		assert.ErrorIs(t, err, agents.ErrAgentExists)
	})

	t.Run("requires email, username and password", func(t *testing.T) {
		_, err := agents.Create(db, agents.CreateInput{Username: "u", Password: "p"})
		assert.Error(t, err)
		_, err = agents.Create(db, agents.CreateInput{Email: "e@example.com", Password: "p"})
		assert.Error(t, err)
		_, err = agents.Create(db, agents.CreateInput{Email: "e@example.com", Username: "u"})
		assert.Error(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "login@example.com", "login")

	found, err := agents.Authenticate(db, "LOGIN@example.com", testsupport.TestPassword)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, found.ID)

	_, err = agents.Authenticate(db, "login@example.com", "wrong")
	assert.ErrorIs(t, err, agents.ErrInvalidCredentials)

	_, err = agents.Authenticate(db, "nobody@example.com", testsupport.TestPassword)
	assert.ErrorIs(t, err, agents.ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "profile@example.com", "profile")

	bio := "  Helping families find homes since 2010 "
	country := "us"
	minutes := 45
	updated, err := agents.UpdateProfile(db, agent.ID, agents.ProfileUpdate{
		Bio:                 &bio,
		CountryCode:         &country,
		ResponseTimeMinutes: &minutes,
	})
	require.NoError(t, err)

	assert.Equal(t, "Helping families find homes since 2010", updated.Bio)
	assert.Equal(t, "US", updated.CountryCode)
	assert.Equal(t, 45, updated.ResponseTimeMinutes)
	assert.Equal(t, agent.DisplayName, updated.DisplayName, "nil fields stay unchanged")

	t.Run("empty update is a no-op", func(t *testing.T) {
		same, err := agents.UpdateProfile(db, agent.ID, agents.ProfileUpdate{})
		require.NoError(t, err)
		assert.Equal(t, updated.Bio, same.Bio)
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := agents.UpdateProfile(db, 9999, agents.ProfileUpdate{Bio: &bio})
		assert.ErrorIs(t, err, agents.ErrAgentNotFound)
	})
}

func TestChangePasswordAndTier(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "change@example.com", "change")

	require.NoError(t, agents.ChangePassword(db, "change@example.com", "new-password-1"))
	_, err := agents.Authenticate(db, "change@example.com", "new-password-1")
	assert.NoError(t, err)

	assert.Error(t, agents.ChangePassword(db, "change@example.com", ""))

	require.NoError(t, agents.UpdateTier(db, agent.ID, tiers.Business))
	reloaded, err := agents.FindByID(db, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.Business, reloaded.CurrentTier())

	assert.ErrorIs(t, agents.UpdateTier(db, 9999, tiers.Pro), agents.ErrAgentNotFound)
}

func TestDirectory(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	agent := testsupport.CreateTestAgent(t, db, "dir@example.com", "directory")

	dir := agents.NewDirectory(db, testsupport.GetLogger(), time.Minute)

	ok, err := dir.Exists(agent.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.Exists(agent.ID + 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dir.Exists(0)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("unknown ids are not cached", func(t *testing.T) {
		nextID := agent.ID + 1
		ok, err := dir.Exists(nextID)
		require.NoError(t, err)
		require.False(t, ok)

		late := testsupport.CreateTestAgent(t, db, "late@example.com", "late")
		require.Equal(t, nextID, late.ID)

		ok, err = dir.Exists(late.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestResponseTimeLabel(t *testing.T) {
	tests := []struct {
		minutes  int
		expected string
	}{
		{0, "Response time unknown"},
		{-5, "Response time unknown"},
		{10, "Usually responds within minutes"},
		{15, "Usually responds within minutes"},
		{16, "Usually responds within an hour"},
		{60, "Usually responds within an hour"},
		{180, "Usually responds within a few hours"},
		{1440, "Usually responds within a day"},
		{5000, "Usually responds within a few days"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, agents.ResponseTimeLabel(tt.minutes), "minutes=%d", tt.minutes)
	}
}
