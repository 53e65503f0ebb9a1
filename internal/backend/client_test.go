package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/httpclient"
)

func TestInvokePostsToFunctionPath(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pricing":{"vat":{"enabled":true,"rate":19}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	raw, err := c.PublicPricing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/functions/v1/public-get-pricing", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.NotNil(t, gotBody)
	assert.JSONEq(t, `{"pricing":{"vat":{"enabled":true,"rate":19}}}`, string(raw))
}

func TestInvokeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.AdminSettings(context.Background())
	require.Error(t, err)
	assert.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), FnAdminGetSettings)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestNotConfigured(t *testing.T) {
	var nilClient *Client
	assert.False(t, nilClient.Configured())

	c := NewClient("", "key")
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Invoke(context.Background(), FnPublicGetPricing, nil, nil), ErrNotConfigured)
}
