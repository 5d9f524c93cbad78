package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/tap-leaflink/pkg/auth"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

func TestGetSendsAuthAndDefaults(t *testing.T) {
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	key, err := auth.NewAppKey("secret")
	require.NoError(t, err)

	cfg := DefaultHTTPConfig()
	cfg.UserAgent = "tap-leaflink/test"
	cfg.Auth = key.Transport
	client := NewHTTPClient(cfg, zaptest.NewLogger(t))
	defer client.Close()

	resp, err := client.Get(context.Background(), srv.URL+"/products/", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "App secret", header.Get("Authorization"))
	assert.Equal(t, "application/json", header.Get("Accept"))
	assert.Equal(t, "tap-leaflink/test", header.Get("User-Agent"))

	stats := client.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestGetConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(DefaultHTTPConfig(), zaptest.NewLogger(t))
	_, err := client.Get(context.Background(), url, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, int64(1), client.GetStats().FailedRequests)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	client := NewHTTPClient(cfg, zaptest.NewLogger(t))

	resp, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
