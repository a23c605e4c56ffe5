package http_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlinker/internal/testsupport"
)

func TestSignupAndLogin(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	app := testsupport.CreateMinimalTestApp(t, db)

	resp := request(t, app, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":        "new@example.com",
		"username":     "new-agent",
		"password":     "long-enough-pw",
		"display_name": "New Agent",
	}, "")
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))
	assert.NotEmpty(t, resp.Body["token"])
	agent := resp.Body["agent"].(map[string]interface{})
	assert.Equal(t, "new-agent", agent["username"])
	assert.Equal(t, "free", agent["tier"])
	assert.NotContains(t, agent, "encrypted_password")

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		resp := request(t, app, http.MethodPost, "/api/auth/signup", map[string]string{
			"email":    "new@example.com",
			"username": "another",
			"password": "long-enough-pw",
		}, "")
		assert.Equal(t, http.StatusConflict, resp.Status)
	})

	t.Run("signup validation lists failing fields", func(t *testing.T) {
		resp := request(t, app, http.MethodPost, "/api/auth/signup", map[string]string{
			"email":    "not-an-email",
			"username": "X",
			"password": "short",
		}, "")
		require.Equal(t, http.StatusBadRequest, resp.Status)
		assert.ElementsMatch(t, []interface{}{"email", "username", "password"}, resp.Body["fields"])
	})

	t.Run("login returns a working token", func(t *testing.T) {
		resp := request(t, app, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "new@example.com",
			"password": "long-enough-pw",
		}, "")
		require.Equal(t, http.StatusOK, resp.Status)
		token := resp.Body["token"].(string)

		me := request(t, app, http.MethodGet, "/api/auth/me", nil, "Bearer "+token)
		require.Equal(t, http.StatusOK, me.Status)
		assert.Equal(t, "new-agent", me.Body["agent"].(map[string]interface{})["username"])
		assert.Equal(t, "Free", me.Body["plan"].(map[string]interface{})["name"])
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		resp := request(t, app, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "new@example.com",
			"password": "wrong-password",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("me requires a token", func(t *testing.T) {
		resp := request(t, app, http.MethodGet, "/api/auth/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("token for a deleted agent is unauthorized", func(t *testing.T) {
		ghost := testsupport.CreateTestAgent(t, db, "ghost@example.com", "ghost")
		header := testsupport.AuthHeader(t, ghost)
		require.NoError(t, db.Delete(ghost).Error)

		resp := request(t, app, http.MethodGet, "/api/auth/me", nil, header)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})
}

func TestProfile(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	app := testsupport.CreateMinimalTestApp(t, db)
	agent := testsupport.CreateTestAgent(t, db, "profile@example.com", "profile")
	auth := testsupport.AuthHeader(t, agent)

	resp := request(t, app, http.MethodPost, "/api/profile", map[string]interface{}{
		"display_name":          "Pat Realtor",
		"city":                  "Austin",
		"region":                "TX",
		"country_code":          "us",
		"response_time_minutes": 30,
		"brand_color":           "#1a73e8",
	}, auth)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))

	show := request(t, app, http.MethodGet, "/api/profile", nil, auth)
	require.Equal(t, http.StatusOK, show.Status)
	assert.Equal(t, "Usually responds within an hour", show.Body["responseTimeLabel"])
	assert.Equal(t, "Austin, TX, United States", show.Body["location"])

	t.Run("rejects unknown country and bad colour", func(t *testing.T) {
		resp := request(t, app, http.MethodPost, "/api/profile", map[string]interface{}{"country_code": "ZZ"}, auth)
		assert.Equal(t, http.StatusBadRequest, resp.Status)

		resp = request(t, app, http.MethodPost, "/api/profile", map[string]interface{}{"brand_color": "blue"}, auth)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})
}
