package http_test

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Status int
	Body   map[string]interface{}
	Raw    []byte
}

// request sends a JSON request the way the dashboard front end does.
func request(t *testing.T, app *fiber.App, method, path string, payload interface{}, authHeader string) apiResponse {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, ok := payload.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(payload)
			require.NoError(t, err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Test Browser)")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode, Raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.Body), "body: %s", raw)
	}
	return out
}
